package naming

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Prefix starts every instance name.
const Prefix = "ogc-"

// SuffixLen is the length of generated suffixes. Names with shorter
// suffixes, down to minSuffixLen, still parse.
const SuffixLen = 8

const minSuffixLen = 4

// Instance returns a new, random instance name for layout. It carries no
// uniqueness guarantee; callers check it against the names in use.
func Instance(layout string) string {
	return InstanceWithSuffix(layout, uuid.NewString()[:SuffixLen])
}

// InstanceWithSuffix builds an instance name from an explicit suffix.
func InstanceWithSuffix(layout, suffix string) string {
	return fmt.Sprintf("%s%s-%s", Prefix, suffix, layout)
}

// LayoutOf recovers the layout name from an instance name. The suffix is
// the hex run up to the first dash.
func LayoutOf(instance string) (string, bool) {
	rest, ok := strings.CutPrefix(instance, Prefix)
	if !ok {
		return "", false
	}
	suffix, layout, ok := strings.Cut(rest, "-")
	if !ok || len(suffix) < minSuffixLen || layout == "" || !isHex(suffix) {
		return "", false
	}
	return layout, true
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}
	return true
}

// BelongsTo reports whether instance was produced by layout. The layout
// must match exactly, so "web" does not claim "ogc-1a2b-web-api".
func BelongsTo(instance, layout string) bool {
	l, ok := LayoutOf(instance)
	return ok && l == layout
}

func KeyPair(instance string) string {
	return instance
}

func Firewall(instance string) string {
	return fmt.Sprintf("%s-fw", instance)
}

func SecurityGroup(instance string) string {
	return fmt.Sprintf("%s-sg", instance)
}

func Container(instance string) string {
	return instance
}
