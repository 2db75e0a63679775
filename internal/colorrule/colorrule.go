// Package colorrule stores the color rules applied to table rows and cells.
package colorrule

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/conduit-lang/tablemeta/internal/kvs"
)

// Operator compares a cell value against a rule value
type Operator string

const (
	LessThan           Operator = "LESS_THAN"
	LessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	Equal              Operator = "EQUAL"
	GreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	GreaterThan        Operator = "GREATER_THAN"
	NoOp               Operator = "NO_OP"
)

// Symbol returns the comparison symbol for display
func (o Operator) Symbol() string {
	switch o {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Equal:
		return "="
	case GreaterThanOrEqual:
		return ">="
	case GreaterThan:
		return ">"
	default:
		return "operation value"
	}
}

// Rule colors a row or cell whose ElementKey value satisfies Operator/Value.
// Colors are ARGB.
type Rule struct {
	ID         string   `json:"id"`
	ElementKey string   `json:"elementKey"`
	Operator   Operator `json:"operator"`
	Value      string   `json:"value"`
	Foreground uint32   `json:"foreground"`
	Background uint32   `json:"background"`
}

// NewRule creates a rule with a fresh id.
func NewRule(elementKey string, op Operator, value string, foreground, background uint32) Rule {
	return Rule{
		ID:         uuid.NewString(),
		ElementKey: elementKey,
		Operator:   op,
		Value:      value,
		Foreground: foreground,
		Background: background,
	}
}

// Matches reports whether value satisfies the rule. Values that both parse
// as numbers are compared numerically, everything else lexically.
func (r Rule) Matches(value string) bool {
	var cmp int
	a, errA := strconv.ParseFloat(value, 64)
	b, errB := strconv.ParseFloat(r.Value, 64)
	if errA == nil && errB == nil {
		switch {
		case a < b:
			cmp = -1
		case a > b:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(value, r.Value)
	}

	switch r.Operator {
	case LessThan:
		return cmp < 0
	case LessThanOrEqual:
		return cmp <= 0
	case Equal:
		return cmp == 0
	case GreaterThanOrEqual:
		return cmp >= 0
	case GreaterThan:
		return cmp > 0
	default:
		return false
	}
}

// Kind selects which rule group a list of rules belongs to
type Kind int

const (
	// KindTable rules color whole rows
	KindTable Kind = iota
	// KindStatusColumn rules color the row status column
	KindStatusColumn
	// KindColumn rules color the cells of a single column
	KindColumn
)

// Partition returns the metadata partition the group is stored in
func (k Kind) Partition() string {
	switch k {
	case KindStatusColumn:
		return "StatusColumnColorRuleGroup"
	case KindColumn:
		return "ColumnColorRuleGroup"
	default:
		return "TableColorRuleGroup"
	}
}

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindStatusColumn:
		return "status"
	case KindColumn:
		return "column"
	default:
		return "table"
	}
}

// RulesKey is the metadata key holding a group's rule list
const RulesKey = "ColorRules"

// Group reads and writes one rule list in the metadata overlay.
type Group struct {
	kind   Kind
	helper *kvs.Helper
}

// NewGroup returns the rule group of tableID. elementKey selects the column
// for KindColumn and is ignored otherwise.
func NewGroup(store *kvs.Store, tableID string, kind Kind, elementKey string) *Group {
	aspect := kvs.DefaultAspect
	if kind == KindColumn {
		aspect = elementKey
	}
	return &Group{kind: kind, helper: store.Helper(tableID, kind.Partition(), aspect)}
}

// Kind returns the group kind
func (g *Group) Kind() Kind { return g.kind }

// Load returns the stored rules, or an empty list when none are stored.
func (g *Group) Load(ctx context.Context) ([]Rule, error) {
	var rules []Rule
	if _, err := g.helper.Object(ctx, RulesKey, &rules); err != nil {
		return nil, fmt.Errorf("failed to load %s color rules: %w", g.kind, err)
	}
	if rules == nil {
		rules = []Rule{}
	}
	return rules, nil
}

// Save replaces the stored rules.
func (g *Group) Save(ctx context.Context, rules []Rule) error {
	if rules == nil {
		rules = []Rule{}
	}
	if err := g.helper.SetObject(ctx, RulesKey, rules); err != nil {
		return fmt.Errorf("failed to save %s color rules: %w", g.kind, err)
	}
	return nil
}
