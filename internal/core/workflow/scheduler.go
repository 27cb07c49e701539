package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs periodic maintenance tasks (retention purges and the like)
type Scheduler struct {
	cron    *cron.Cron
	tasks   map[string]cron.EntryID // task name -> entry id
	tasksMu sync.RWMutex
	logger  zerolog.Logger
}

// NewScheduler creates a scheduler accepting six-field cron expressions (with seconds)
func NewScheduler(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		tasks:  make(map[string]cron.EntryID),
		logger: logger,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("tasks", len(s.Tasks())).Msg("maintenance scheduler started")
}

// Stop stops scheduling and waits for running tasks
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("maintenance scheduler stopped")
}

// AddTask schedules task under name, replacing any task with the same name
func (s *Scheduler) AddTask(name, schedule string, task func()) error {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	if entryID, exists := s.tasks[name]; exists {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}

	entryID, err := s.cron.AddFunc(schedule, s.guard(name, task))
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.tasks[name] = entryID
	s.logger.Info().Str("task", name).Str("schedule", schedule).Msg("scheduled maintenance task")
	return nil
}

// RemoveTask unschedules a task
func (s *Scheduler) RemoveTask(name string) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()

	if entryID, exists := s.tasks[name]; exists {
		s.cron.Remove(entryID)
		delete(s.tasks, name)
	}
}

// Tasks returns the names of scheduled tasks, sorted
func (s *Scheduler) Tasks() []string {
	s.tasksMu.RLock()
	defer s.tasksMu.RUnlock()

	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) guard(name string, task func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("task", name).Interface("panic", r).Msg("maintenance task panicked")
			}
		}()
		task()
	}
}
