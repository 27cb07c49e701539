package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCatalogue(t *testing.T) {
	c := BuildCatalogue()

	require.Len(t, c.EventTypes, len(EventTypes()))
	assert.Equal(t, EventVehicleLocationUpdated, c.EventTypes[0].Value)
	assert.Equal(t, "vehicle", c.EventTypes[0].SubjectType)

	require.Len(t, c.Operators, 14)
	for _, op := range c.Operators {
		assert.True(t, op.Value.Valid())
		assert.Equal(t, op.ValueType != ValueNone, op.RequiresValue, op.Value)
	}
	assert.Equal(t, OpEquals, c.Operators[0].Value)
	assert.Equal(t, ValueNumeric, c.Operators[2].ValueType)

	require.Len(t, c.ActionTypes, 4)
	assert.Equal(t, ActionCreateAlert, c.ActionTypes[0].Value)
	assert.Equal(t, []string{"title", "content", "severity"}, c.ActionTypes[0].RequiredParameters)
	assert.Contains(t, c.ActionTypes[0].ApplicableModels, "vehicle")

	assert.Equal(t, []Severity{SeverityInfo, SeverityWarning, SeverityCritical, SeverityEmergency}, c.Severities)
	assert.Equal(t, []LogicalOperator{LogicalAnd, LogicalOr}, c.LogicalOperators)
}

func TestEnumerations(t *testing.T) {
	assert.False(t, EventType("vehicle.flying").Valid())
	assert.Equal(t, "device", EventDeviceLowBattery.SubjectType())
	assert.False(t, Operator("between").RequiresValue())
	assert.True(t, OpContains.RequiresValue())
	assert.False(t, OpChanged.RequiresValue())
	assert.False(t, Severity("minor").Valid())
	assert.Equal(t, LogicalOr, ParseLogicalOperator(" OR "))
	assert.Equal(t, LogicalAnd, ParseLogicalOperator("xor"))

	// metadata accessors return copies
	params := ActionCreateAlert.RequiredParameters()
	params[0] = "changed"
	assert.Equal(t, "title", ActionCreateAlert.RequiredParameters()[0])
}
