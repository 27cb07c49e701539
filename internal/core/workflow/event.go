package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event a workflow can be triggered by
type EventType string

const (
	EventVehicleLocationUpdated EventType = "vehicle.location_updated"
	EventVehicleIgnitionOn      EventType = "vehicle.ignition_on"
	EventVehicleIgnitionOff     EventType = "vehicle.ignition_off"
	EventVehicleSpeedExceeded   EventType = "vehicle.speed_exceeded"
	EventVehicleEnteredGeofence EventType = "vehicle.entered_geofence"
	EventVehicleExitedGeofence  EventType = "vehicle.exited_geofence"
	EventVehicleIdleStarted     EventType = "vehicle.idle_started"
	EventVehicleIdleEnded       EventType = "vehicle.idle_ended"
	EventDeviceOnline           EventType = "device.online"
	EventDeviceOffline          EventType = "device.offline"
	EventDeviceLowBattery       EventType = "device.low_battery"
	EventDriverAssigned         EventType = "driver.assigned"
	EventDriverUnassigned       EventType = "driver.unassigned"
)

type eventTypeInfo struct {
	label   string
	subject string
}

// eventTypeOrder is the declaration order used by the catalogue
var eventTypeOrder = []EventType{
	EventVehicleLocationUpdated,
	EventVehicleIgnitionOn,
	EventVehicleIgnitionOff,
	EventVehicleSpeedExceeded,
	EventVehicleEnteredGeofence,
	EventVehicleExitedGeofence,
	EventVehicleIdleStarted,
	EventVehicleIdleEnded,
	EventDeviceOnline,
	EventDeviceOffline,
	EventDeviceLowBattery,
	EventDriverAssigned,
	EventDriverUnassigned,
}

var eventTypeInfos = map[EventType]eventTypeInfo{
	EventVehicleLocationUpdated: {label: "Vehicle location updated", subject: "vehicle"},
	EventVehicleIgnitionOn:      {label: "Vehicle ignition on", subject: "vehicle"},
	EventVehicleIgnitionOff:     {label: "Vehicle ignition off", subject: "vehicle"},
	EventVehicleSpeedExceeded:   {label: "Vehicle speed exceeded", subject: "vehicle"},
	EventVehicleEnteredGeofence: {label: "Vehicle entered geofence", subject: "vehicle"},
	EventVehicleExitedGeofence:  {label: "Vehicle exited geofence", subject: "vehicle"},
	EventVehicleIdleStarted:     {label: "Vehicle idle started", subject: "vehicle"},
	EventVehicleIdleEnded:       {label: "Vehicle idle ended", subject: "vehicle"},
	EventDeviceOnline:           {label: "Device online", subject: "device"},
	EventDeviceOffline:          {label: "Device offline", subject: "device"},
	EventDeviceLowBattery:       {label: "Device low battery", subject: "device"},
	EventDriverAssigned:         {label: "Driver assigned", subject: "driver"},
	EventDriverUnassigned:       {label: "Driver unassigned", subject: "driver"},
}

// EventTypes returns every known event type in declaration order
func EventTypes() []EventType {
	out := make([]EventType, len(eventTypeOrder))
	copy(out, eventTypeOrder)
	return out
}

// Valid reports whether t is a known event type
func (t EventType) Valid() bool {
	_, ok := eventTypeInfos[t]
	return ok
}

// Label returns the human readable name of the event type
func (t EventType) Label() string {
	if info, ok := eventTypeInfos[t]; ok {
		return info.label
	}
	return string(t)
}

// SubjectType returns the entity type the event is about (e.g. "vehicle")
func (t EventType) SubjectType() string {
	return eventTypeInfos[t].subject
}

// EntityRef points at the entity an event is about.
// TenantID may be left empty by producers; the engine resolves it.
type EntityRef struct {
	Type     string    `json:"type"`
	ID       string    `json:"id"`
	TenantID uuid.UUID `json:"tenant_id,omitempty"`
}

func (r EntityRef) String() string {
	return r.Type + ":" + r.ID
}

// DomainEvent is a state change reported by the rest of the system.
// Previous is nil when the producer has no earlier state to compare against.
type DomainEvent struct {
	ID          uuid.UUID      `json:"id"`
	Type        EventType      `json:"type"`
	Subject     EntityRef      `json:"subject"`
	Payload     map[string]any `json:"payload"`
	Previous    map[string]any `json:"previous,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
	ProcessedAt time.Time      `json:"-"`
}

// NewDomainEvent builds an event with a fresh id stamped at now
func NewDomainEvent(eventType EventType, subject EntityRef, payload, previous map[string]any) DomainEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return DomainEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Subject:    subject,
		Payload:    payload,
		Previous:   previous,
		OccurredAt: time.Now().UTC(),
	}
}

// HasPrevious reports whether the producer supplied a previous payload
func (e *DomainEvent) HasPrevious() bool {
	return e.Previous != nil
}

// Describe returns the trigger source text stored on executions
func (e *DomainEvent) Describe() string {
	return fmt.Sprintf("%s (%s)", e.Type.Label(), e.Subject)
}
