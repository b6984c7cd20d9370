package model

import "fmt"

// Alert condition operators. Equality and inequality compare with a
// 1e-6 tolerance on absolute difference.
const (
	CondGT  = ">"
	CondLT  = "<"
	CondGTE = ">="
	CondLTE = "<="
	CondEQ  = "=="
	CondNEQ = "!="
)

// Alert is a threshold predicate over a snapshot metric. Alerts are
// created through the store, then only deactivated or deleted — never
// rewritten in place.
type Alert struct {
	ID        int64   `json:"id"`
	Metric    string  `json:"metric"`
	Condition string  `json:"condition"`
	Threshold float64 `json:"threshold"`
	Active    bool    `json:"active"`
	CreatedAt int64   `json:"created_at"` // ms
}

// ValidateCondition rejects unknown comparison operators.
func ValidateCondition(cond string) error {
	switch cond {
	case CondGT, CondLT, CondGTE, CondLTE, CondEQ, CondNEQ:
		return nil
	}
	return fmt.Errorf("invalid alert condition: %q", cond)
}
