package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// ConditionEvaluator evaluates workflow conditions against an event
type ConditionEvaluator struct {
	resolver *Resolver
	logger   zerolog.Logger
}

// NewConditionEvaluator creates a new condition evaluator
func NewConditionEvaluator(resolver *Resolver, logger zerolog.Logger) *ConditionEvaluator {
	return &ConditionEvaluator{resolver: resolver, logger: logger}
}

// Evaluate evaluates a single condition. Misconfigured conditions never match.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, condition Condition, event *DomainEvent) bool {
	if err := CheckConditionValue(condition.Operator, condition.Value); err != nil {
		e.logger.Warn().Err(err).
			Str("condition_id", condition.ID.String()).
			Str("field", condition.Field).
			Msg("invalid condition configuration, treating as not matched")
		return false
	}

	switch condition.Operator {
	case OpIsNull:
		v, found := e.resolver.Resolve(ctx, condition.Field, event)
		return !found || v == nil
	case OpIsNotNull:
		v, found := e.resolver.Resolve(ctx, condition.Field, event)
		return found && v != nil
	case OpIsTrue:
		v, _ := e.resolver.Resolve(ctx, condition.Field, event)
		return truthy(v)
	case OpIsFalse:
		v, _ := e.resolver.Resolve(ctx, condition.Field, event)
		return !truthy(v)
	case OpChanged:
		return e.changed(ctx, condition.Field, event)
	}

	fieldValue, found := e.resolver.Resolve(ctx, condition.Field, event)
	if !found {
		return false
	}

	switch condition.Operator {
	case OpEquals:
		return looseEqual(fieldValue, condition.Value)
	case OpNotEquals:
		return !looseEqual(fieldValue, condition.Value)
	case OpGreaterThan, OpGreaterOrEqual, OpLessThan, OpLessOrEqual:
		return compareNumbers(condition.Operator, fieldValue, condition.Value)
	case OpContains:
		return compareContains(fieldValue, condition.Value)
	case OpStartsWith:
		s, ok := scalarString(fieldValue)
		return ok && strings.HasPrefix(s, condition.Value.(string))
	case OpEndsWith:
		s, ok := scalarString(fieldValue)
		return ok && strings.HasSuffix(s, condition.Value.(string))
	}
	return false
}

// changed compares the current value of path against the previous payload
func (e *ConditionEvaluator) changed(ctx context.Context, path string, event *DomainEvent) bool {
	if !event.HasPrevious() || !e.resolver.TracksPrevious(path, event) {
		return false
	}
	current, currentFound := e.resolver.Resolve(ctx, path, event)
	previous, previousFound := e.resolver.ResolvePrevious(path, event)
	if !currentFound && !previousFound {
		return false
	}
	if currentFound != previousFound {
		return true
	}
	return !looseEqual(current, previous)
}

// CheckConditionValue reports whether value fits the operator's declared value type
func CheckConditionValue(op Operator, value any) error {
	if !op.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}
	if op.RequiresValue() && value == nil {
		return fmt.Errorf("%w: operator %s requires a value", ErrValueTypeMismatch, op)
	}
	switch op.ValueType() {
	case ValueNumeric:
		if _, ok := toFloat64(value); !ok {
			return fmt.Errorf("%w: operator %s expects a number, got %T", ErrValueTypeMismatch, op, value)
		}
	case ValueString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: operator %s expects a string, got %T", ErrValueTypeMismatch, op, value)
		}
	case ValueBoolean:
		if _, ok := toBool(value); !ok {
			return fmt.Errorf("%w: operator %s expects a boolean, got %T", ErrValueTypeMismatch, op, value)
		}
	}
	return nil
}

// looseEqual compares numerically when both sides are numbers (or numeric
// strings), as booleans when both are booleans, and by string form otherwise
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := toFloat64(a); ok {
		if bf, ok := toFloat64(b); ok {
			return af == bf
		}
	}
	if ab, ok := toBool(a); ok {
		if bb, ok := toBool(b); ok {
			return ab == bb
		}
	}
	return Stringify(a) == Stringify(b)
}

func compareNumbers(op Operator, fieldValue, conditionValue any) bool {
	left, ok := toFloat64(fieldValue)
	if !ok {
		return false
	}
	right, ok := toFloat64(conditionValue)
	if !ok {
		return false
	}
	switch op {
	case OpGreaterThan:
		return left > right
	case OpGreaterOrEqual:
		return left >= right
	case OpLessThan:
		return left < right
	case OpLessOrEqual:
		return left <= right
	}
	return false
}

// compareContains checks substring containment, or membership when the field is a list
func compareContains(fieldValue, conditionValue any) bool {
	needle := conditionValue.(string)
	switch v := fieldValue.(type) {
	case []any:
		for _, item := range v {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range v {
			if item == needle {
				return true
			}
		}
		return false
	}
	s, ok := scalarString(fieldValue)
	return ok && strings.Contains(s, needle)
}

// scalarString returns the string form of non-container values
func scalarString(v any) (string, bool) {
	switch v.(type) {
	case nil, map[string]any, []any, map[string]string, []string:
		return "", false
	}
	return Stringify(v), true
}

// truthy coerces a resolved value to a boolean
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "", "0", "false", "no", "off":
			return false
		}
		return true
	case map[string]any:
		return len(val) > 0
	case []any:
		return len(val) > 0
	}
	if f, ok := toFloat64(v); ok {
		return f != 0
	}
	return true
}

// toFloat64 converts numbers and numeric strings to float64
func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int16:
		return float64(v), true
	case int8:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func toBool(value any) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}
