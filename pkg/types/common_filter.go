package types

import (
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

type CommonFilterOperator string

const (
	CommonFilterOperatorEq        CommonFilterOperator = "eq"
	CommonFilterOperatorNotEq     CommonFilterOperator = "not_eq"
	CommonFilterOperatorLt        CommonFilterOperator = "lt"
	CommonFilterOperatorLte       CommonFilterOperator = "lte"
	CommonFilterOperatorGt        CommonFilterOperator = "gt"
	CommonFilterOperatorGte       CommonFilterOperator = "gte"
	CommonFilterOperatorDateRange CommonFilterOperator = "date_range"
	CommonFilterOperatorRange     CommonFilterOperator = "range"
	CommonFilterOperatorIn        CommonFilterOperator = "in"
	// CommonFilterOperatorOr matches when any nested filter matches; Field is unused.
	CommonFilterOperatorOr CommonFilterOperator = "or"
)

var comparisons = map[CommonFilterOperator]func(col string, v any) clause.Expression{
	CommonFilterOperatorEq:    func(col string, v any) clause.Expression { return clause.Eq{Column: col, Value: v} },
	CommonFilterOperatorNotEq: func(col string, v any) clause.Expression { return clause.Neq{Column: col, Value: v} },
	CommonFilterOperatorLt:    func(col string, v any) clause.Expression { return clause.Lt{Column: col, Value: v} },
	CommonFilterOperatorLte:   func(col string, v any) clause.Expression { return clause.Lte{Column: col, Value: v} },
	CommonFilterOperatorGt:    func(col string, v any) clause.Expression { return clause.Gt{Column: col, Value: v} },
	CommonFilterOperatorGte:   func(col string, v any) clause.Expression { return clause.Gte{Column: col, Value: v} },
}

// CommonFilter is one admin filter condition. Values holds one operand, two for
// the range operators and any number for in.
type CommonFilter struct {
	Field    string               `json:"field"`
	Operator CommonFilterOperator `json:"operator"`
	Values   []any                `json:"values"`
	Filters  []CommonFilter       `json:"filters"`
}

// CheckFields rejects filters (nested ones included) whose field is not in allowed
// or whose operator is unknown. Field names are written into SQL unquoted, so
// admin queries must call this first.
func (f *CommonFilter) CheckFields(allowed map[string]bool) error {
	switch {
	case f.Operator == CommonFilterOperatorOr:
		if len(f.Filters) == 0 {
			return fmt.Errorf("filter operator %q needs nested filters", f.Operator)
		}
	case !allowed[f.Field]:
		return fmt.Errorf("filter field %q is not allowed", f.Field)
	case comparisons[f.Operator] == nil && !lo.Contains([]CommonFilterOperator{
		CommonFilterOperatorDateRange, CommonFilterOperatorRange, CommonFilterOperatorIn,
	}, f.Operator):
		return fmt.Errorf("filter operator %q is not supported", f.Operator)
	}
	for i := range f.Filters {
		if err := f.Filters[i].CheckFields(allowed); err != nil {
			return err
		}
	}
	return nil
}

// Expression returns the condition, or nil when the filter has no operands.
func (f *CommonFilter) Expression() clause.Expression {
	if f.Operator == CommonFilterOperatorOr {
		exprs := lo.FilterMap(f.Filters, func(sub CommonFilter, _ int) (clause.Expression, bool) {
			e := sub.Expression()
			return e, e != nil
		})
		if len(exprs) == 0 {
			return nil
		}
		return clause.Or(exprs...)
	}
	if len(f.Values) == 0 {
		return nil
	}
	switch f.Operator {
	case CommonFilterOperatorRange, CommonFilterOperatorDateRange:
		if len(f.Values) < 2 {
			return nil
		}
		return clause.And(clause.Gte{Column: f.Field, Value: f.Values[0]}, clause.Lte{Column: f.Field, Value: f.Values[1]})
	case CommonFilterOperatorIn:
		return clause.IN{Column: f.Field, Values: f.Values}
	}
	if cmp, ok := comparisons[f.Operator]; ok {
		return cmp(f.Field, f.Values[0])
	}
	return nil
}

// Build constructs a GORM expression. An empty filter matches every row.
func (f *CommonFilter) Build(builder clause.Builder) {
	e := f.Expression()
	if e == nil {
		builder.WriteString("1=1")
		return
	}
	e.Build(builder)
}
