package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	r := testResolver()
	ev := vehicleEvent(EventVehicleSpeedExceeded,
		map[string]any{"speed": float64(95), "location": map[string]any{"lat": 51.5}, "tags": []any{"a", "b"}, "note": nil},
		map[string]any{"speed": float64(70)},
	)
	ev.Subject.TenantID = tenantA

	tests := []struct {
		name      string
		path      string
		want      any
		wantFound bool
	}{
		{"event payload", "event.speed", float64(95), true},
		{"nested payload", "event.location.lat", 51.5, true},
		{"slice index", "event.tags.1", "b", true},
		{"explicit null is found", "event.note", nil, true},
		{"missing payload key", "event.heading", nil, false},
		{"event type attribute", "event.type", "vehicle.speed_exceeded", true},
		{"previous payload", "previous.speed", float64(70), true},
		{"timestamp", "timestamp", "2026-03-01T12:30:00Z", true},
		{"subject property", "vehicle.registration", "AB-123-CD", true},
		{"subject relation", "vehicle.driver.name", "Sam Rivera", true},
		{"subject alias", "subject.make", "Volvo", true},
		{"subject id", "vehicle.id", "veh-1", true},
		{"subject tenant", "subject.tenant_id", tenantA.String(), true},
		{"missing entity property", "vehicle.colour", nil, false},
		{"bare path reads payload", "speed", float64(95), true},
		{"empty path", "", nil, false},
		{"namespace only", "event", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := r.Resolve(context.Background(), tt.path, &ev)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_AccessorErrorIsNotFound(t *testing.T) {
	r := NewResolver(&fakeAccessor{err: errors.New("db down")}, zerolog.Nop())
	ev := vehicleEvent(EventVehicleIgnitionOn, nil, nil)

	v, found := r.Resolve(context.Background(), "vehicle.registration", &ev)
	assert.False(t, found)
	assert.Nil(t, v)
}

func TestResolver_NilAccessor(t *testing.T) {
	r := NewResolver(nil, zerolog.Nop())
	ev := vehicleEvent(EventVehicleIgnitionOn, map[string]any{"speed": 3}, nil)

	_, found := r.Resolve(context.Background(), "vehicle.registration", &ev)
	assert.False(t, found)

	v, found := r.Resolve(context.Background(), "event.speed", &ev)
	assert.True(t, found)
	assert.Equal(t, 3, v)
}

func TestResolver_ResolvePrevious(t *testing.T) {
	r := testResolver()
	ev := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, map[string]any{"speed": 30})

	for _, path := range []string{"event.speed", "previous.speed", "speed"} {
		v, found := r.ResolvePrevious(path, &ev)
		assert.True(t, found, path)
		assert.Equal(t, 30, v, path)
	}

	noPrev := vehicleEvent(EventVehicleLocationUpdated, map[string]any{"speed": 50}, nil)
	_, found := r.ResolvePrevious("event.speed", &noPrev)
	assert.False(t, found)

	for _, path := range []string{"vehicle.registration", "subject.make", "driver.name", "timestamp"} {
		_, found := r.ResolvePrevious(path, &ev)
		assert.False(t, found, path)
		assert.False(t, r.TracksPrevious(path, &ev), path)
	}
}

func TestResolver_Interpolate(t *testing.T) {
	r := testResolver()
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": float64(95.5), "limit": float64(80)}, nil)
	ctx := context.Background()

	assert.Equal(t, "Vehicle AB-123-CD Alert", r.Interpolate(ctx, "Vehicle {vehicle.registration} Alert", &ev))
	assert.Equal(t, "95.5 km/h over 80", r.Interpolate(ctx, "{event.speed} km/h over { event.limit }", &ev))
	assert.Equal(t, "at 2026-03-01T12:30:00Z", r.Interpolate(ctx, "at {timestamp}", &ev))
	assert.Equal(t, "missing: []", r.Interpolate(ctx, "missing: [{event.nope}]", &ev))
	assert.Equal(t, `{"raw": "json"}`, r.Interpolate(ctx, `{"raw": "json"}`, &ev))
	assert.Equal(t, "no placeholders", r.Interpolate(ctx, "no placeholders", &ev))
}

func TestResolver_InterpolateNested(t *testing.T) {
	r := testResolver()
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": float64(95)}, nil)

	params := map[string]any{
		"title":    "Speeding {vehicle.registration}",
		"count":    3,
		"list":     []any{"{event.speed}", map[string]any{"deep": "{vehicle.make}"}, true},
		"headers":  map[string]string{"X-Plate": "{vehicle.registration}"},
		"metadata": map[string]any{"speed": "{event.speed}"},
	}

	out := r.InterpolateParameters(context.Background(), params, &ev)

	assert.Equal(t, "Speeding AB-123-CD", out["title"])
	assert.Equal(t, 3, out["count"])
	assert.Equal(t, []any{"95", map[string]any{"deep": "Volvo"}, true}, out["list"])
	assert.Equal(t, map[string]string{"X-Plate": "AB-123-CD"}, out["headers"])
	assert.Equal(t, map[string]any{"speed": "95"}, out["metadata"])
	// input is not mutated
	assert.Equal(t, "Speeding {vehicle.registration}", params["title"])
}

func TestResolver_ResolveIsStableAcrossModes(t *testing.T) {
	r := testResolver()
	ev := vehicleEvent(EventVehicleSpeedExceeded, map[string]any{"speed": float64(95)}, nil)
	ctx := context.Background()

	first, found := r.Resolve(ctx, "vehicle.registration", &ev)
	require.True(t, found)
	_ = r.InterpolateParameters(ctx, map[string]any{"t": []any{"{vehicle.registration}"}}, &ev)
	second, found := r.Resolve(ctx, "vehicle.registration", &ev)
	require.True(t, found)

	assert.Equal(t, first, second)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "95", Stringify(float64(95)))
	assert.Equal(t, "0.25", Stringify(0.25))
	assert.Equal(t, "12", Stringify(12))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `["a",1]`, Stringify([]any{"a", 1}))
	assert.Equal(t, `{"k":"v"}`, Stringify(map[string]any{"k": "v"}))
}
