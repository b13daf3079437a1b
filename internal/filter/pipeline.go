package filter

import (
	"github.com/worktrack/worktrack/pkg/model"
)

// FieldAccessor extracts the value of an abstract column from an item.
type FieldAccessor[T any] func(item T, column string) model.Value

// ColumnEvaluator overrides generic evaluation for one column. ok is false
// when the evaluator defers to the generic path.
type ColumnEvaluator[T any] func(item T, c model.Condition) (matched bool, ok bool)

// Pipeline applies a list of conditions joined by AND/OR operators to items.
// Conditions combine strictly left to right: "A AND B OR C" is
// "(A AND B) OR C".
type Pipeline[T any] struct {
	// Evaluator defaults to Default() when nil.
	Evaluator *Evaluator
	Field     FieldAccessor[T]
	Columns   map[string]ColumnEvaluator[T]
}

// ApplyFilters filters items with the default evaluator.
func ApplyFilters[T any](items []T, conditions []model.Condition, operators []model.LogicalOp, field FieldAccessor[T], columns map[string]ColumnEvaluator[T]) []T {
	p := Pipeline[T]{Field: field, Columns: columns}
	return p.Apply(items, conditions, operators)
}

// Apply returns the items matching the conditions. With no conditions items
// is returned as is; otherwise a new slice is built and items is untouched.
func (p Pipeline[T]) Apply(items []T, conditions []model.Condition, operators []model.LogicalOp) []T {
	if len(conditions) == 0 {
		return items
	}

	out := make([]T, 0, len(items))
	for _, item := range items {
		if p.Match(item, conditions, operators) {
			out = append(out, item)
		}
	}
	return out
}

// Match evaluates the conditions for one item.
func (p Pipeline[T]) Match(item T, conditions []model.Condition, operators []model.LogicalOp) bool {
	if len(conditions) == 0 {
		return true
	}

	result := p.evaluate(item, conditions[0])
	for i := 1; i < len(conditions); i++ {
		// Missing or empty operators are AND; anything else but AND is OR.
		op := model.LogicAnd
		if i-1 < len(operators) && operators[i-1] != "" && operators[i-1] != model.LogicAnd {
			op = model.LogicOr
		}

		// Evaluators are pure, so a decided result can skip the next one.
		if op == model.LogicAnd {
			result = result && p.evaluate(item, conditions[i])
		} else {
			result = result || p.evaluate(item, conditions[i])
		}
	}
	return result
}

func (p Pipeline[T]) evaluate(item T, c model.Condition) bool {
	if eval, ok := p.Columns[c.Column]; ok && eval != nil {
		if matched, decided := eval(item, c); decided {
			return matched
		}
	}

	field := model.Undefined
	if p.Field != nil {
		field = p.Field(item, c.Column)
	}
	return p.evaluator().EvaluateCondition(field, c)
}

func (p Pipeline[T]) evaluator() *Evaluator {
	if p.Evaluator != nil {
		return p.Evaluator
	}
	return defaultEvaluator
}
