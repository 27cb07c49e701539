package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	tenantA = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tenantB = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// fakeAccessor serves entity properties from a map keyed by "type:id"
type fakeAccessor struct {
	entities map[string]map[string]any
	err      error
}

func (a *fakeAccessor) Property(_ context.Context, ref EntityRef, path string) (any, bool, error) {
	if a.err != nil {
		return nil, false, a.err
	}
	entity, ok := a.entities[ref.String()]
	if !ok {
		return nil, false, nil
	}
	v, found := lookupPath(entity, strings.Split(path, "."))
	return v, found, nil
}

// memStore is an in-memory WorkflowSource, ExecutionStore and TenantResolver
type memStore struct {
	mu         sync.Mutex
	workflows  []Workflow
	executions map[uuid.UUID]*Execution
	order      []uuid.UUID
	tenants    map[string]uuid.UUID
	loadErr    error
	createErr  error
}

func newMemStore(workflows ...Workflow) *memStore {
	return &memStore{
		workflows:  workflows,
		executions: make(map[uuid.UUID]*Execution),
		tenants:    make(map[string]uuid.UUID),
	}
}

func (s *memStore) FindActiveForEvent(_ context.Context, tenantID uuid.UUID, eventType EventType) ([]Workflow, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	var out []Workflow
	for _, wf := range s.workflows {
		if wf.TenantID == tenantID && wf.Active && len(wf.TriggersFor(eventType)) > 0 {
			out = append(out, wf)
		}
	}
	return out, nil
}

func (s *memStore) CreateExecution(_ context.Context, x *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.executions[x.ID]; exists {
		return errors.New("duplicate execution id")
	}
	s.executions[x.ID] = cloneExecution(x)
	s.order = append(s.order, x.ID)
	return nil
}

func (s *memStore) UpdateExecution(_ context.Context, x *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.executions[x.ID]
	if !ok {
		return errors.New("execution not found")
	}
	if stored.Status.IsTerminal() {
		return ErrExecutionTerminal
	}
	s.executions[x.ID] = cloneExecution(x)
	return nil
}

func (s *memStore) TenantOf(_ context.Context, ref EntityRef) (uuid.UUID, error) {
	if id, ok := s.tenants[ref.String()]; ok {
		return id, nil
	}
	return uuid.Nil, ErrTenantNotFound
}

func (s *memStore) all() []*Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Execution, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.executions[id])
	}
	return out
}

func cloneExecution(x *Execution) *Execution {
	c := *x
	c.Log = append([]LogEntry(nil), x.Log...)
	return &c
}

// stubHandler is a configurable ActionHandler
type stubHandler struct {
	actionType ActionType
	validate   func(map[string]any) error
	execute    func(context.Context, map[string]any, *DomainEvent) (map[string]any, error)
	mu         sync.Mutex
	calls      []map[string]any
}

func (h *stubHandler) Type() ActionType { return h.actionType }

func (h *stubHandler) Validate(params map[string]any) error {
	if h.validate != nil {
		return h.validate(params)
	}
	return nil
}

func (h *stubHandler) Execute(ctx context.Context, params map[string]any, event *DomainEvent) (map[string]any, error) {
	h.mu.Lock()
	h.calls = append(h.calls, params)
	h.mu.Unlock()
	if h.execute != nil {
		return h.execute(ctx, params, event)
	}
	return map[string]any{"ok": true}, nil
}

func (h *stubHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// recordingAlerts captures created alerts
type recordingAlerts struct {
	mu     sync.Mutex
	alerts []AlertAttributes
	err    error
}

func (r *recordingAlerts) CreateAlert(_ context.Context, attrs AlertAttributes) (uuid.UUID, error) {
	if r.err != nil {
		return uuid.Nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, attrs)
	return uuid.New(), nil
}

func vehicleEvent(eventType EventType, payload, previous map[string]any) DomainEvent {
	ev := NewDomainEvent(eventType, EntityRef{Type: "vehicle", ID: "veh-1"}, payload, previous)
	ev.ProcessedAt = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	return ev
}

func testAccessor() *fakeAccessor {
	return &fakeAccessor{entities: map[string]map[string]any{
		"vehicle:veh-1": {
			"registration": "AB-123-CD",
			"make":         "Volvo",
			"odometer":     float64(120500),
			"driver":       map[string]any{"name": "Sam Rivera"},
		},
	}}
}

func testResolver() *Resolver {
	return NewResolver(testAccessor(), zerolog.Nop())
}

func cond(field string, op Operator, value any, logical LogicalOperator, group string) Condition {
	return Condition{ID: uuid.New(), Field: field, Operator: op, Value: value, LogicalOperator: logical, Group: group}
}
