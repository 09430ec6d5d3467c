package inventory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adam-stokes/ogc-sub000/internal/util/naming"
)

// Field names a queryable node attribute.
type Field string

const (
	FieldName     Field = "name"
	FieldID       Field = "id"
	FieldProvider Field = "provider"
	FieldLayout   Field = "layout"
	FieldState    Field = "state"
	FieldTag      Field = "tag"
	FieldPublicIP Field = "public_ip"

	// LabelPrefix selects a layout label, as in "label.team".
	LabelPrefix = "label."
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpContains Op = "contains"
	OpPrefix   Op = "prefix"
)

var (
	ErrUnknownField = errors.New("unknown filter field")
	ErrUnknownOp    = errors.New("unknown filter operator")
)

// Condition is one field comparison.
type Condition struct {
	Field Field
	Op    Op
	Value string
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %q", c.Field, c.Op, c.Value)
}

// Filter is a conjunction of conditions. The zero Filter matches every node.
type Filter struct {
	conds []Condition
}

// Where starts a filter with one condition.
func Where(field Field, op Op, value string) Filter {
	return Filter{}.And(field, op, value)
}

// And returns a copy of f with another condition.
func (f Filter) And(field Field, op Op, value string) Filter {
	conds := make([]Condition, len(f.conds), len(f.conds)+1)
	copy(conds, f.conds)
	return Filter{conds: append(conds, Condition{Field: field, Op: op, Value: value})}
}

// ByLayout matches nodes whose instance name belongs to layout.
func ByLayout(layout string) Filter { return Where(FieldLayout, OpEq, layout) }

// ByProvider matches nodes on one provider.
func ByProvider(provider string) Filter { return Where(FieldProvider, OpEq, provider) }

// ByTag matches nodes whose layout carries tag.
func ByTag(tag string) Filter { return Where(FieldTag, OpEq, tag) }

// NameContains matches instance names containing substr.
func NameContains(substr string) Filter { return Where(FieldName, OpContains, substr) }

// Conditions returns the filter's conditions.
func (f Filter) Conditions() []Condition {
	return append([]Condition(nil), f.conds...)
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.conds) == 0
}

// Validate rejects unknown fields and operators.
func (f Filter) Validate() error {
	var errs []error
	for _, c := range f.conds {
		if !knownField(c.Field) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownField, c.Field))
		}
		switch c.Op {
		case OpEq, OpContains, OpPrefix:
		default:
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownOp, c.Op))
		}
	}
	return errors.Join(errs...)
}

func knownField(f Field) bool {
	switch f {
	case FieldName, FieldID, FieldProvider, FieldLayout, FieldState, FieldTag, FieldPublicIP:
		return true
	}
	key, ok := strings.CutPrefix(string(f), LabelPrefix)
	return ok && key != ""
}

// Match reports whether n satisfies every condition. A missing attribute
// never matches.
func (f Filter) Match(n *Node) bool {
	for _, c := range f.conds {
		if !c.match(n) {
			return false
		}
	}
	return true
}

func (c Condition) match(n *Node) bool {
	switch c.Field {
	case FieldName:
		return c.compare(n.Name)
	case FieldID:
		return c.compare(n.ID)
	case FieldProvider:
		return c.compare(n.Provider)
	case FieldState:
		return c.compare(string(n.State))
	case FieldPublicIP:
		return c.compare(n.PublicIP)
	case FieldLayout:
		layout, ok := naming.LayoutOf(n.Name)
		return ok && c.compare(layout)
	case FieldTag:
		for _, tag := range n.Layout.Tags {
			if c.compare(tag) {
				return true
			}
		}
		return false
	}
	if key, ok := strings.CutPrefix(string(c.Field), LabelPrefix); ok {
		v, present := n.Layout.Labels[key]
		return present && c.compare(v)
	}
	return false
}

func (c Condition) compare(v string) bool {
	if v == "" {
		return false
	}
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpContains:
		return strings.Contains(v, c.Value)
	case OpPrefix:
		return strings.HasPrefix(v, c.Value)
	}
	return false
}

// ParseFilter builds a filter from "field=value" (eq), "field~value"
// (contains) and "field^value" (prefix) expressions.
func ParseFilter(exprs []string) (Filter, error) {
	var f Filter
	for _, expr := range exprs {
		idx := strings.IndexAny(expr, "=~^")
		if idx <= 0 {
			return Filter{}, fmt.Errorf("invalid filter %q: expected field=value, field~value or field^value", expr)
		}
		op := map[byte]Op{'=': OpEq, '~': OpContains, '^': OpPrefix}[expr[idx]]
		f = f.And(Field(expr[:idx]), op, expr[idx+1:])
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}
