package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// PositionState is the last reported telemetry of a vehicle
type PositionState struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	Ignition   *bool     `json:"ignition,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// PositionStateStore swaps in the latest state and returns the one it replaced
type PositionStateStore interface {
	Swap(ctx context.Context, vehicleID string, state PositionState) (*PositionState, error)
}

// MemoryPositionStore keeps state in process; used when Redis is not configured
type MemoryPositionStore struct {
	mu     sync.Mutex
	states map[string]PositionState
}

func NewMemoryPositionStore() *MemoryPositionStore {
	return &MemoryPositionStore{states: map[string]PositionState{}}
}

func (s *MemoryPositionStore) Swap(_ context.Context, vehicleID string, state PositionState) (*PositionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.states[vehicleID]
	s.states[vehicleID] = state
	if !ok {
		return nil, nil
	}
	return &prev, nil
}

type getSetClient interface {
	GetSet(ctx context.Context, key string, value interface{}) *redis.StringCmd
}

// RedisPositionStore shares state across API instances using GETSET
type RedisPositionStore struct {
	client getSetClient
}

func NewRedisPositionStore(client redis.UniversalClient) *RedisPositionStore {
	return &RedisPositionStore{client: client}
}

func (s *RedisPositionStore) Swap(ctx context.Context, vehicleID string, state PositionState) (*PositionState, error) {
	encoded, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	raw, err := s.client.GetSet(ctx, "fleet:position:"+vehicleID, encoded).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to swap position state of %s: %w", vehicleID, err)
	}
	var prev PositionState
	if err := json.Unmarshal(raw, &prev); err != nil {
		return nil, nil
	}
	return &prev, nil
}
