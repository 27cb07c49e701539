package workflow

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEvaluator() *ConditionEvaluator {
	return NewConditionEvaluator(testResolver(), zerolog.Nop())
}

func TestConditionEvaluator_Operators(t *testing.T) {
	e := newEvaluator()
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{
		"speed":         float64(95),
		"speed_text":    "95",
		"ignition":      false,
		"geofence_name": "Zone A",
		"tags":          []any{"refrigerated", "hazmat"},
		"note":          nil,
		"zero":          0,
		"flag":          "yes",
	}, nil)

	tests := []struct {
		name  string
		field string
		op    Operator
		value any
		want  bool
	}{
		{"equals number", "event.speed", OpEquals, 95, true},
		{"equals numeric string", "event.speed_text", OpEquals, float64(95), true},
		{"equals string", "geofence_name", OpEquals, "Zone A", true},
		{"equals is case sensitive", "geofence_name", OpEquals, "zone a", false},
		{"equals bool against string", "ignition", OpEquals, "false", true},
		{"not equals", "event.speed", OpNotEquals, 80, true},
		{"greater than", "speed", OpGreaterThan, 80, true},
		{"greater than numeric string value", "speed", OpGreaterThan, "100", false},
		{"greater or equal boundary", "speed", OpGreaterOrEqual, 95, true},
		{"less than", "speed", OpLessThan, 95, false},
		{"less or equal", "speed", OpLessOrEqual, 95.0, true},
		{"ordering on non numeric field", "geofence_name", OpGreaterThan, 1, false},
		{"contains substring", "geofence_name", OpContains, "one", true},
		{"contains is case sensitive", "geofence_name", OpContains, "ZONE", false},
		{"contains list member", "tags", OpContains, "hazmat", true},
		{"contains list non member", "tags", OpContains, "frozen", false},
		{"starts with", "vehicle.registration", OpStartsWith, "AB-", true},
		{"ends with", "vehicle.registration", OpEndsWith, "-CD", true},
		{"ends with mismatch", "vehicle.registration", OpEndsWith, "XX", false},
		{"is null on missing", "event.heading", OpIsNull, nil, true},
		{"is null on explicit null", "note", OpIsNull, nil, true},
		{"is null on value", "speed", OpIsNull, nil, false},
		{"is not null", "speed", OpIsNotNull, nil, true},
		{"is not null on explicit null", "note", OpIsNotNull, nil, false},
		{"is true on string", "flag", OpIsTrue, nil, true},
		{"is true on false", "ignition", OpIsTrue, nil, false},
		{"is false on false", "ignition", OpIsFalse, nil, true},
		{"is false on zero", "zero", OpIsFalse, nil, true},
		{"is false on missing", "event.heading", OpIsFalse, nil, true},
		{"is true on missing", "event.heading", OpIsTrue, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Evaluate(context.Background(), cond(tt.field, tt.op, tt.value, LogicalAnd, ""), &ev)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionEvaluator_NotFoundIsFalseForValueOperators(t *testing.T) {
	e := newEvaluator()
	ev := vehicleEvent(EventVehicleLocationUpdated, map[string]any{}, nil)

	values := map[ValueType]any{ValueAny: "x", ValueNumeric: 1, ValueString: "x", ValueBoolean: true}
	for _, op := range Operators() {
		if !op.RequiresValue() {
			continue
		}
		c := cond("event.missing", op, values[op.ValueType()], LogicalAnd, "")
		assert.False(t, e.Evaluate(context.Background(), c, &ev), op)
	}
}

func TestConditionEvaluator_Changed(t *testing.T) {
	e := newEvaluator()
	c := cond("event.speed", OpChanged, nil, LogicalAnd, "")
	ctx := context.Background()

	changed := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, map[string]any{"speed": 30})
	assert.True(t, e.Evaluate(ctx, c, &changed))

	same := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, map[string]any{"speed": float64(50)})
	assert.False(t, e.Evaluate(ctx, c, &same))

	noPrevious := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, nil)
	assert.False(t, e.Evaluate(ctx, c, &noPrevious))

	appeared := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, map[string]any{})
	assert.True(t, e.Evaluate(ctx, c, &appeared))

	neither := vehicleEvent(EventVehicleLocationUpdated, map[string]any{}, map[string]any{})
	assert.False(t, e.Evaluate(ctx, c, &neither))
}

func TestConditionEvaluator_ChangedIgnoresPathsWithoutPreviousState(t *testing.T) {
	e := newEvaluator()
	ctx := context.Background()
	ev := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, map[string]any{"speed": 50})

	for _, field := range []string{"vehicle.registration", "subject.registration", "vehicle.driver.name", "timestamp"} {
		assert.False(t, e.Evaluate(ctx, cond(field, OpChanged, nil, LogicalAnd, ""), &ev), field)
	}
}

func TestConditionEvaluator_MissingValueNeverMatches(t *testing.T) {
	e := newEvaluator()
	ctx := context.Background()

	speeding := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": 95}, nil)
	assert.False(t, e.Evaluate(ctx, cond("event.speed", OpNotEquals, nil, LogicalAnd, ""), &speeding))

	nullSpeed := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": nil}, nil)
	assert.False(t, e.Evaluate(ctx, cond("event.speed", OpEquals, nil, LogicalAnd, ""), &nullSpeed))
	assert.True(t, e.Evaluate(ctx, cond("event.speed", OpIsNull, nil, LogicalAnd, ""), &nullSpeed))
}

func TestConditionEvaluator_ConfigurationErrorsNeverMatch(t *testing.T) {
	e := newEvaluator()
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": 95, "name": "Zone A"}, nil)
	ctx := context.Background()

	assert.False(t, e.Evaluate(ctx, cond("speed", "between", 10, LogicalAnd, ""), &ev))
	assert.False(t, e.Evaluate(ctx, cond("speed", OpGreaterThan, "fast", LogicalAnd, ""), &ev))
	assert.False(t, e.Evaluate(ctx, cond("name", OpContains, 5, LogicalAnd, ""), &ev))
	assert.False(t, e.Evaluate(ctx, cond("speed", OpGreaterThan, nil, LogicalAnd, ""), &ev))
}

func TestCheckConditionValue(t *testing.T) {
	require.NoError(t, CheckConditionValue(OpEquals, "x"))
	require.NoError(t, CheckConditionValue(OpGreaterThan, "12.5"))
	require.NoError(t, CheckConditionValue(OpIsNull, nil))
	assert.ErrorIs(t, CheckConditionValue(Operator("nope"), 1), ErrUnknownOperator)
	assert.ErrorIs(t, CheckConditionValue(OpStartsWith, 1), ErrValueTypeMismatch)
	assert.ErrorIs(t, CheckConditionValue(OpLessThan, true), ErrValueTypeMismatch)
	assert.ErrorIs(t, CheckConditionValue(OpEquals, nil), ErrValueTypeMismatch)
	assert.ErrorIs(t, CheckConditionValue(OpNotEquals, nil), ErrValueTypeMismatch)
}
