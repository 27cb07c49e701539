package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EntityAccessor reads properties of persisted entities.
// path is relative to ref and may traverse relations (e.g. "vehicle.registration"
// from a device). found is false when the entity or property does not exist.
type EntityAccessor interface {
	Property(ctx context.Context, ref EntityRef, path string) (value any, found bool, err error)
}

// entityNamespaces are path prefixes served by the entity accessor
var entityNamespaces = map[string]bool{
	"vehicle":  true,
	"device":   true,
	"driver":   true,
	"geofence": true,
	"group":    true,
	"tenant":   true,
}

// placeholderPattern matches {path} where path is a dotted identifier, so JSON
// braces and other literal text inside parameters are left alone
var placeholderPattern = regexp.MustCompile(`\{\s*([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z0-9_]+)*)\s*\}`)

// Resolver maps dotted variable paths to values from an event and its subject entity
type Resolver struct {
	accessor EntityAccessor
	logger   zerolog.Logger
}

// NewResolver creates a resolver. accessor may be nil, in which case entity
// paths never resolve.
func NewResolver(accessor EntityAccessor, logger zerolog.Logger) *Resolver {
	return &Resolver{accessor: accessor, logger: logger}
}

// Resolve returns the value at path, or found=false when any segment is missing
func (r *Resolver) Resolve(ctx context.Context, path string, event *DomainEvent) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" || event == nil {
		return nil, false
	}

	segments := strings.Split(path, ".")
	head, rest := segments[0], segments[1:]

	switch {
	case head == "timestamp" && len(rest) == 0:
		return processingTime(event).Format(time.RFC3339), true

	case head == "event":
		if len(rest) == 0 {
			return nil, false
		}
		if v, ok := lookupPath(event.Payload, rest); ok {
			return v, true
		}
		return eventAttribute(event, rest)

	case head == "previous":
		if len(rest) == 0 {
			return nil, false
		}
		return lookupPath(event.Previous, rest)

	case head == "subject" || (head == event.Subject.Type && head != ""):
		if len(rest) == 0 {
			return nil, false
		}
		return r.subjectProperty(ctx, event, strings.Join(rest, "."))

	case entityNamespaces[head]:
		return r.property(ctx, event.Subject, path)
	}

	// bare paths address the payload directly
	return lookupPath(event.Payload, segments)
}

// TracksPrevious reports whether path addresses payload data, the only state
// an event carries a previous version of. Entity properties and timestamp
// are only known as they are now.
func (r *Resolver) TracksPrevious(path string, event *DomainEvent) bool {
	path = strings.TrimSpace(path)
	if path == "" || event == nil {
		return false
	}
	head, _, _ := strings.Cut(path, ".")
	switch {
	case head == "event" || head == "previous":
		return true
	case head == "timestamp", head == "subject", head == event.Subject.Type, entityNamespaces[head]:
		return false
	}
	return true
}

// ResolvePrevious returns the value the same path had in the previous payload.
// Namespace prefixes event. and previous. are stripped. Paths without previous
// state never resolve.
func (r *Resolver) ResolvePrevious(path string, event *DomainEvent) (any, bool) {
	if event == nil || event.Previous == nil || !r.TracksPrevious(path, event) {
		return nil, false
	}
	path = strings.TrimSpace(path)
	for _, prefix := range []string{"event.", "previous."} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if path == "" {
		return nil, false
	}
	return lookupPath(event.Previous, strings.Split(path, "."))
}

// Interpolate replaces every {path} placeholder in s with the resolved value's
// string form. Paths that do not resolve become an empty string.
func (r *Resolver) Interpolate(ctx context.Context, s string, event *DomainEvent) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		sub := placeholderPattern.FindStringSubmatch(match)
		value, found := r.Resolve(ctx, sub[1], event)
		if !found {
			return ""
		}
		return Stringify(value)
	})
}

// InterpolateValue applies Interpolate to strings nested anywhere inside v.
// Maps and slices are copied; non-string scalars are returned unchanged.
func (r *Resolver) InterpolateValue(ctx context.Context, v any, event *DomainEvent) any {
	switch val := v.(type) {
	case string:
		return r.Interpolate(ctx, val, event)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = r.InterpolateValue(ctx, item, event)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = r.Interpolate(ctx, item, event)
		}
		return out
	case map[string]any:
		return r.InterpolateParameters(ctx, val, event)
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, item := range val {
			out[k] = r.Interpolate(ctx, item, event)
		}
		return out
	default:
		return v
	}
}

// InterpolateParameters returns a copy of params with every string interpolated
func (r *Resolver) InterpolateParameters(ctx context.Context, params map[string]any, event *DomainEvent) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = r.InterpolateValue(ctx, v, event)
	}
	return out
}

func (r *Resolver) subjectProperty(ctx context.Context, event *DomainEvent, path string) (any, bool) {
	switch path {
	case "id":
		return event.Subject.ID, event.Subject.ID != ""
	case "type":
		return event.Subject.Type, event.Subject.Type != ""
	case "tenant_id":
		if event.Subject.TenantID != uuid.Nil {
			return event.Subject.TenantID.String(), true
		}
	}
	return r.property(ctx, event.Subject, path)
}

func (r *Resolver) property(ctx context.Context, ref EntityRef, path string) (any, bool) {
	if r.accessor == nil || ref.ID == "" {
		return nil, false
	}
	value, found, err := r.accessor.Property(ctx, ref, path)
	if err != nil {
		r.logger.Warn().Err(err).
			Str("subject", ref.String()).
			Str("path", path).
			Msg("entity property lookup failed, treating as not found")
		return nil, false
	}
	return value, found
}

func processingTime(event *DomainEvent) time.Time {
	if !event.ProcessedAt.IsZero() {
		return event.ProcessedAt
	}
	if !event.OccurredAt.IsZero() {
		return event.OccurredAt
	}
	return time.Now().UTC()
}

// eventAttribute serves event.* paths that are not part of the payload
func eventAttribute(event *DomainEvent, rest []string) (any, bool) {
	if len(rest) != 1 {
		return nil, false
	}
	switch rest[0] {
	case "id":
		return event.ID.String(), true
	case "type":
		return string(event.Type), true
	case "name", "label":
		return event.Type.Label(), true
	case "occurred_at":
		return event.OccurredAt.Format(time.RFC3339), !event.OccurredAt.IsZero()
	}
	return nil, false
}

// lookupPath walks nested maps and slices. A key that is present with a nil
// value is found.
// LookupPath walks nested maps and list indices. An explicit nil counts as found.
func LookupPath(data map[string]any, segments []string) (any, bool) {
	return lookupPath(data, segments)
}

func lookupPath(data map[string]any, segments []string) (any, bool) {
	if data == nil || len(segments) == 0 {
		return nil, false
	}
	var current any = data
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]string:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// Stringify renders a resolved value for interpolation
func Stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	case map[string]any, []any, map[string]string, []string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}
