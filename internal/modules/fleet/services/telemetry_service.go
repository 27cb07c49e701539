package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/fleettrack/telematics-be/internal/core/events"
	"github.com/fleettrack/telematics-be/internal/core/workflow"
	"github.com/fleettrack/telematics-be/internal/modules/fleet/repositories"
)

// PositionRequest is one telemetry sample from a vehicle's device
type PositionRequest struct {
	VehicleID  string    `json:"vehicle_id" validate:"required"`
	Latitude   float64   `json:"latitude" validate:"latitude"`
	Longitude  float64   `json:"longitude" validate:"longitude"`
	Speed      float64   `json:"speed" validate:"gte=0"`
	Heading    float64   `json:"heading" validate:"gte=0,lt=360"`
	Ignition   *bool     `json:"ignition"`
	SpeedLimit *float64  `json:"speed_limit" validate:"omitempty,gt=0"`
	RecordedAt time.Time `json:"recorded_at"`
}

// TelemetryService turns raw position samples into domain events. It compares
// each sample with the vehicle's previous one and publishes what changed.
type TelemetryService struct {
	states     repositories.PositionStateStore
	publisher  events.Publisher
	validate   *validator.Validate
	speedLimit float64
	now        func() time.Time
	logger     zerolog.Logger
}

func NewTelemetryService(
	states repositories.PositionStateStore,
	publisher events.Publisher,
	validate *validator.Validate,
	speedLimit float64,
	logger zerolog.Logger,
) *TelemetryService {
	if validate == nil {
		validate = NewValidator()
	}
	if speedLimit <= 0 {
		speedLimit = 90
	}
	return &TelemetryService{
		states:     states,
		publisher:  publisher,
		validate:   validate,
		speedLimit: speedLimit,
		now:        time.Now,
		logger:     logger,
	}
}

// RecordPosition publishes vehicle.location_updated for every sample, plus
// ignition_on/off when ignition flips and speed_exceeded when speed crosses
// the limit. Every event carries the previous sample as its previous payload.
func (s *TelemetryService) RecordPosition(ctx context.Context, req PositionRequest) ([]workflow.DomainEvent, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, validationError(err)
	}
	if req.RecordedAt.IsZero() {
		req.RecordedAt = s.now().UTC()
	}

	current := repositories.PositionState{
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Speed:      req.Speed,
		Heading:    req.Heading,
		Ignition:   req.Ignition,
		RecordedAt: req.RecordedAt,
	}
	prev, err := s.states.Swap(ctx, req.VehicleID, current)
	if err != nil {
		return nil, err
	}

	limit := s.speedLimit
	if req.SpeedLimit != nil {
		limit = *req.SpeedLimit
	}

	subject := workflow.EntityRef{Type: "vehicle", ID: req.VehicleID}
	payload := positionPayload(current)
	var previous map[string]any
	if prev != nil {
		previous = positionPayload(*prev)
	}

	detected := []workflow.EventType{workflow.EventVehicleLocationUpdated}
	if prev != nil && prev.Ignition != nil && current.Ignition != nil && *prev.Ignition != *current.Ignition {
		if *current.Ignition {
			detected = append(detected, workflow.EventVehicleIgnitionOn)
		} else {
			detected = append(detected, workflow.EventVehicleIgnitionOff)
		}
	}
	if current.Speed > limit && (prev == nil || prev.Speed <= limit) {
		detected = append(detected, workflow.EventVehicleSpeedExceeded)
	}

	published := make([]workflow.DomainEvent, 0, len(detected))
	for _, eventType := range detected {
		eventPayload := payload
		if eventType == workflow.EventVehicleSpeedExceeded {
			eventPayload = copyPayload(payload)
			eventPayload["speed_limit"] = limit
		}
		event := workflow.NewDomainEvent(eventType, subject, eventPayload, previous)
		event.OccurredAt = req.RecordedAt
		if err := s.publisher.Publish(ctx, event); err != nil {
			return published, fmt.Errorf("failed to publish %s: %w", eventType, err)
		}
		published = append(published, event)
	}

	s.logger.Debug().
		Str("vehicle_id", req.VehicleID).
		Int("events", len(published)).
		Msg("position recorded")

	return published, nil
}

func positionPayload(state repositories.PositionState) map[string]any {
	payload := map[string]any{
		"latitude":    state.Latitude,
		"longitude":   state.Longitude,
		"speed":       state.Speed,
		"heading":     state.Heading,
		"recorded_at": state.RecordedAt.UTC().Format(time.RFC3339),
	}
	if state.Ignition != nil {
		payload["ignition"] = *state.Ignition
	}
	return payload
}

func copyPayload(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}
