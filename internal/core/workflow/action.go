package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fleettrack/telematics-be/internal/core/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActionResult is the structured outcome of one action
type ActionResult struct {
	Success bool           `json:"success"`
	Data    map[string]any `json:"data,omitempty"`
	Error   string         `json:"error,omitempty"`
}

func succeeded(data map[string]any) ActionResult {
	return ActionResult{Success: true, Data: data}
}

func failed(format string, args ...any) ActionResult {
	return ActionResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ActionHandler performs the effect of one action type.
// Validate receives parameters after interpolation and runs before Execute.
type ActionHandler interface {
	Type() ActionType
	Validate(params map[string]any) error
	Execute(ctx context.Context, params map[string]any, event *DomainEvent) (map[string]any, error)
}

type executionKey struct{}

// WithExecution stores the running execution on ctx for handlers that record its id
func WithExecution(ctx context.Context, execution *Execution) context.Context {
	return context.WithValue(ctx, executionKey{}, execution)
}

// ExecutionFromContext returns the execution stored by WithExecution
func ExecutionFromContext(ctx context.Context) (*Execution, bool) {
	x, ok := ctx.Value(executionKey{}).(*Execution)
	return x, ok && x != nil
}

// ActionExecutor dispatches actions to their registered handlers
type ActionExecutor struct {
	handlers map[ActionType]ActionHandler
	resolver *Resolver
	logger   zerolog.Logger
	timeout  time.Duration
	tracer   trace.Tracer
}

// NewActionExecutor creates an executor with the given handlers. timeout bounds
// each handler call; zero disables the bound.
func NewActionExecutor(resolver *Resolver, logger zerolog.Logger, timeout time.Duration, handlers ...ActionHandler) *ActionExecutor {
	e := &ActionExecutor{
		handlers: make(map[ActionType]ActionHandler, len(handlers)),
		resolver: resolver,
		logger:   logger,
		timeout:  timeout,
		tracer:   telemetry.Tracer("workflow.actions"),
	}
	for _, h := range handlers {
		e.Register(h)
	}
	return e
}

// Register adds or replaces the handler for its action type
func (e *ActionExecutor) Register(h ActionHandler) {
	e.handlers[h.Type()] = h
}

// Supports reports whether a handler is registered for t
func (e *ActionExecutor) Supports(t ActionType) bool {
	_, ok := e.handlers[t]
	return ok
}

// Registered lists registered action types, sorted
func (e *ActionExecutor) Registered() []ActionType {
	out := make([]ActionType, 0, len(e.handlers))
	for t := range e.handlers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Execute runs one action for event. Failures of any kind, including handler
// panics and timeouts, come back as an unsuccessful result.
func (e *ActionExecutor) Execute(ctx context.Context, action Action, event *DomainEvent, execution *Execution) (result ActionResult) {
	ctx, span := telemetry.StartSpan(ctx, e.tracer, "workflow.action",
		attribute.String(telemetry.ActionIDKey, action.ID.String()),
		attribute.String(telemetry.ActionTypeKey, string(action.Type)),
	)
	defer func() {
		if !result.Success {
			telemetry.SetError(span, errors.New(result.Error))
		}
		span.End()
	}()

	handler, ok := e.handlers[action.Type]
	if !ok {
		return failed("Unsupported action type: %s", action.Type)
	}

	for _, key := range action.Type.RequiredParameters() {
		if missingParameter(action.Parameters, key) {
			return failed("Missing required parameter: %s", key)
		}
	}

	params := e.resolver.InterpolateParameters(ctx, action.Parameters, event)

	if err := handler.Validate(params); err != nil {
		return failed("%s", err.Error())
	}

	if execution != nil {
		ctx = WithExecution(ctx, execution)
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	data, err := e.invoke(ctx, handler, params, event)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed("Action timed out after %s: %s", e.timeout, err.Error())
		}
		return failed("%s", err.Error())
	}
	return succeeded(data)
}

// invoke calls the handler, converting a panic into an error
func (e *ActionExecutor) invoke(ctx context.Context, handler ActionHandler, params map[string]any, event *DomainEvent) (data map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("action_type", string(handler.Type())).
				Interface("panic", r).
				Msg("action handler panicked")
			err = fmt.Errorf("action handler panicked: %v", r)
		}
	}()
	return handler.Execute(ctx, params, event)
}

func missingParameter(params map[string]any, key string) bool {
	v, ok := params[key]
	if !ok || v == nil {
		return true
	}
	if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
		return true
	}
	return false
}

// stringParam returns params[key] rendered as a string, or "" when absent
func stringParam(params map[string]any, key string) string {
	v, ok := params[key]
	if !ok || v == nil {
		return ""
	}
	return Stringify(v)
}
