// Package specification pushes order specifications down to SQL.
package specification

import (
	"order-service/domain/order"
	"order-service/domain/shared"
)

// Condition is a WHERE fragment with its bind arguments.
type Condition struct {
	SQL  string
	Args []any
}

// Translator converts domain specifications to SQL conditions for the orders table.
type Translator interface {
	// Translate reports false when any part of spec has no SQL form; the
	// caller then filters in memory instead.
	Translate(spec shared.Specification[*order.Order]) (Condition, bool)
}

// GormTranslator produces conditions for gorm's Where.
type GormTranslator struct{}

func NewGormTranslator() *GormTranslator {
	return &GormTranslator{}
}

func (t *GormTranslator) Translate(spec shared.Specification[*order.Order]) (Condition, bool) {
	if spec == nil {
		return Condition{}, false
	}

	switch s := spec.(type) {
	case shared.AndSpecification[*order.Order]:
		return t.combine("AND", s.Left, s.Right)
	case shared.OrSpecification[*order.Order]:
		return t.combine("OR", s.Left, s.Right)
	case shared.NotSpecification[*order.Order]:
		inner, ok := t.Translate(s.Spec)
		if !ok {
			return Condition{}, false
		}
		return Condition{SQL: "NOT (" + inner.SQL + ")", Args: inner.Args}, true
	}

	return t.translateConcrete(spec)
}

func (t *GormTranslator) combine(op string, left, right shared.Specification[*order.Order]) (Condition, bool) {
	l, ok := t.Translate(left)
	if !ok {
		return Condition{}, false
	}
	r, ok := t.Translate(right)
	if !ok {
		return Condition{}, false
	}
	args := make([]any, 0, len(l.Args)+len(r.Args))
	args = append(append(args, l.Args...), r.Args...)
	return Condition{SQL: "(" + l.SQL + ") " + op + " (" + r.SQL + ")", Args: args}, true
}

func (t *GormTranslator) translateConcrete(spec shared.Specification[*order.Order]) (Condition, bool) {
	switch s := spec.(type) {
	case order.ByUserIDSpecification:
		return Condition{SQL: "user_id = ?", Args: []any{s.UserID.String()}}, true
	case order.ByStatusSpecification:
		return Condition{SQL: "status = ?", Args: []any{s.Status.String()}}, true
	case order.ByDateRangeSpecification:
		switch {
		case !s.Start.IsZero() && !s.End.IsZero():
			return Condition{SQL: "created_at BETWEEN ? AND ?", Args: []any{s.Start, s.End}}, true
		case !s.Start.IsZero():
			return Condition{SQL: "created_at >= ?", Args: []any{s.Start}}, true
		case !s.End.IsZero():
			return Condition{SQL: "created_at <= ?", Args: []any{s.End}}, true
		default:
			return Condition{SQL: "1 = 1"}, true
		}
	}

	return Condition{}, false
}
