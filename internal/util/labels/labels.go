package labels

import (
	"sort"
	"strings"
)

const (
	// KeyPlan identifies the plan a resource was provisioned for.
	KeyPlan = "ogc.io/plan"

	// KeyLayout identifies the layout that produced a node.
	KeyLayout = "ogc.io/layout"

	// KeyInstance carries the instance name.
	KeyInstance = "ogc.io/instance"

	// KeyManagedBy identifies the management system.
	KeyManagedBy = "ogc.io/managed-by"

	// TagPrefix prefixes encoded layout tags.
	TagPrefix = "ogc.io/tag."

	ManagedByOGC = "ogc"
)

const maxValueLen = 63

// LabelBuilder provides a fluent interface for building resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the plan and manager labels set.
func NewLabelBuilder(plan string) *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyPlan:      Sanitize(plan),
			KeyManagedBy: ManagedByOGC,
		},
	}
}

func (lb *LabelBuilder) WithLayout(layout string) *LabelBuilder {
	lb.labels[KeyLayout] = Sanitize(layout)
	return lb
}

func (lb *LabelBuilder) WithInstance(instance string) *LabelBuilder {
	lb.labels[KeyInstance] = Sanitize(instance)
	return lb
}

// WithTags encodes each tag as TagPrefix+tag=true.
func (lb *LabelBuilder) WithTags(tags []string) *LabelBuilder {
	for _, tag := range tags {
		if s := Sanitize(tag); s != "" {
			lb.labels[TagPrefix+s] = "true"
		}
	}
	return lb
}

// Merge adds user labels. Values are sanitized; reserved ogc.io keys
// are never overwritten.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if strings.HasPrefix(k, "ogc.io/") {
			continue
		}
		lb.labels[k] = Sanitize(v)
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

// TagsFrom decodes the tags encoded by WithTags, sorted.
func TagsFrom(labels map[string]string) []string {
	var tags []string
	for k := range labels {
		if tag, ok := strings.CutPrefix(k, TagPrefix); ok && tag != "" {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags
}

// UserLabels returns the labels that are not ogc.io bookkeeping.
func UserLabels(labels map[string]string) map[string]string {
	out := make(map[string]string)
	for k, v := range labels {
		if !strings.HasPrefix(k, "ogc.io/") {
			out[k] = v
		}
	}
	return out
}

// SelectorForPlan returns a label selector for every resource of a plan.
func SelectorForPlan(plan string) string {
	return KeyManagedBy + "=" + ManagedByOGC + "," + KeyPlan + "=" + Sanitize(plan)
}

// SelectorForLayout narrows SelectorForPlan to one layout.
func SelectorForLayout(plan, layout string) string {
	return SelectorForPlan(plan) + "," + KeyLayout + "=" + Sanitize(layout)
}

// Sanitize maps a value onto the character set accepted by cloud label
// APIs: alphanumerics plus '-', '_' and '.', at most 63 characters,
// starting and ending with an alphanumeric.
func Sanitize(v string) string {
	var b strings.Builder
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := b.String()
	if len(s) > maxValueLen {
		s = s[:maxValueLen]
	}
	return strings.Trim(s, "-_.")
}
