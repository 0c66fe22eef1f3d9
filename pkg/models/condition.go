package models

type ConditionOperator string

const (
	OpEquals              ConditionOperator = "equals"
	OpNotEquals           ConditionOperator = "not_equals"
	OpContains            ConditionOperator = "contains"
	OpNotContains         ConditionOperator = "not_contains"
	OpGreaterThan         ConditionOperator = "greater_than"
	OpLessThan            ConditionOperator = "less_than"
	OpGreaterThanOrEquals ConditionOperator = "greater_than_or_equals"
	OpLessThanOrEquals    ConditionOperator = "less_than_or_equals"
	OpExists              ConditionOperator = "exists"
	OpNotExists           ConditionOperator = "not_exists"
	OpIn                  ConditionOperator = "in"
)

// Condition is a single field/operator/value predicate. Lists of conditions
// are always combined with AND semantics.
type Condition struct {
	Field    string            `json:"field"`
	Operator ConditionOperator `json:"operator"`
	Value    interface{}       `json:"value,omitempty"`
}
