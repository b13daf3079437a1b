package model

// Operator defines the comparison applied by a Condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpBefore      Operator = "before"      // dates
	OpAfter       Operator = "after"       // dates
	OpGreaterThan Operator = "greaterThan" // numbers
	OpLessThan    Operator = "lessThan"    // numbers
)

// KnownOperators returns all operators the evaluator special-cases.
func KnownOperators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith,
		OpBefore, OpAfter, OpGreaterThan, OpLessThan,
	}
}

// IsKnown checks if the operator is one the evaluator special-cases.
// Unknown operators are still accepted and evaluate as matching.
func (op Operator) IsKnown() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpStartsWith, OpEndsWith,
		OpBefore, OpAfter, OpGreaterThan, OpLessThan:
		return true
	}
	return false
}

// LogicalOp joins condition i with the result of conditions 0..i-1.
type LogicalOp string

const (
	LogicAnd LogicalOp = "AND"
	LogicOr  LogicalOp = "OR"
)

// IsValid checks if the logical operator is AND or OR.
func (op LogicalOp) IsValid() bool {
	return op == LogicAnd || op == LogicOr
}

// Condition is a single column/operator/value predicate.
type Condition struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    Value    `json:"value,omitzero"`
}

// SortDirection represents sort order.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// IsValid checks if the direction is asc or desc.
func (d SortDirection) IsValid() bool {
	return d == SortAsc || d == SortDesc
}

// SortSpec sorts by one column.
type SortSpec struct {
	Column    string        `json:"column"`
	Direction SortDirection `json:"direction"`
}

// FilterSet is what a saved filter or an ad-hoc request carries: the
// conditions, the operators joining them and the sort order.
type FilterSet struct {
	Conditions []Condition `json:"conditions"`
	Operators  []LogicalOp `json:"operators"`
	Sort       []SortSpec  `json:"sort,omitempty"`
}

// IsEmpty reports whether the set neither filters nor sorts.
func (fs FilterSet) IsEmpty() bool {
	return len(fs.Conditions) == 0 && len(fs.Sort) == 0
}

// Columns returns the distinct column ids referenced by conditions and sort.
func (fs FilterSet) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range fs.Conditions {
		add(c.Column)
	}
	for _, s := range fs.Sort {
		add(s.Column)
	}
	return cols
}
