package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/classnotify/pkg/logger"
)

// Scheduler keeps pending triggers in memory, each with its own timer, and
// hands every trigger to the Handler exactly once when its fire time comes.
//
// Status changes (register, cancel, fire) happen under one mutex so a trigger
// is either fired or cancelled, never both. Repository writes and handler
// calls run outside the lock.
type Scheduler struct {
	repo    Repository
	handler Handler
	logger  *slog.Logger
	now     func() time.Time

	fireTimeout time.Duration
	sem         chan struct{}
	wg          sync.WaitGroup

	mu      sync.Mutex
	entries map[string]*entry
	related map[string]map[string]struct{}
	settled map[string]Status // terminal status not yet confirmed by the repository
	closed  bool
}

const (
	persistRetries = 2
	persistBackoff = 50 * time.Millisecond
)

type entry struct {
	trigger Trigger
	timer   *time.Timer
}

// New creates a scheduler. Triggers registered before Start are armed right away;
// Start additionally restores pending triggers from the repository.
func New(repo Repository, handler Handler, opts ...Option) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Scheduler{
		repo:        repo,
		handler:     handler,
		logger:      o.logger.With(logger.Component("scheduler")),
		now:         o.now,
		fireTimeout: o.fireTimeout,
		sem:         make(chan struct{}, o.maxConcurrentFires),
		entries:     make(map[string]*entry),
		related:     make(map[string]map[string]struct{}),
		settled:     make(map[string]Status),
	}, nil
}

// Register persists t as pending and arms its timer. A fire time in the past
// fires as soon as possible. An empty ID is replaced with a fresh UUID.
func (s *Scheduler) Register(ctx context.Context, t Trigger) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.validate(); err != nil {
		return "", err
	}
	t.Status = StatusPending
	t.SettledAt = nil
	t.CreatedAt = s.now()
	t.Channels = slices.Clone(t.Channels)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrSchedulerStopped
	}
	if s.known(t.ID) {
		s.mu.Unlock()
		return "", ErrDuplicateTrigger
	}
	s.mu.Unlock()

	if err := s.repo.Save(ctx, t); err != nil {
		return "", fmt.Errorf("save trigger: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		// stays pending in the repository and is restored on next start
		return t.ID, nil
	}
	if s.known(t.ID) {
		return "", ErrDuplicateTrigger
	}
	s.arm(t)

	s.logger.LogAttrs(ctx, slog.LevelDebug, "trigger registered",
		logger.TriggerID(t.ID),
		logger.RelatedID(t.Draft.RelatedID),
		logger.FireAt(t.FireAt),
		slog.Any("channels", t.Channels),
	)
	return t.ID, nil
}

// Cancel moves a pending trigger to cancelled. It reports true when the trigger
// is (now or already) cancelled and false when it has already fired.
// Unknown ids fail with ErrTriggerNotFound.
func (s *Scheduler) Cancel(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		at := s.now()
		if err := e.trigger.transition(StatusCancelled, at); err != nil {
			s.mu.Unlock()
			return false, errors.Join(ErrSchedulerFault, err)
		}
		if e.timer != nil {
			e.timer.Stop()
		}
		s.forget(e.trigger)
		s.settled[id] = StatusCancelled
		s.mu.Unlock()

		if err := s.persist(ctx, id, StatusCancelled, at); err != nil {
			return true, fmt.Errorf("persist cancelled trigger: %w", err)
		}
		s.logger.LogAttrs(ctx, slog.LevelDebug, "trigger cancelled", logger.TriggerID(id))
		return true, nil
	}
	if status, ok := s.settled[id]; ok {
		s.mu.Unlock()
		return status == StatusCancelled, nil
	}
	s.mu.Unlock()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return false, err
	}
	switch t.Status {
	case StatusCancelled:
		return true, nil
	case StatusFired:
		return false, nil
	}

	// Pending in the repository but not armed here, e.g. registered while stopped.
	s.mu.Lock()
	s.settled[id] = StatusCancelled
	s.mu.Unlock()
	if err := s.persist(ctx, id, StatusCancelled, s.now()); err != nil {
		return true, fmt.Errorf("persist cancelled trigger: %w", err)
	}
	return true, nil
}

// PendingRelated returns the ids of pending triggers created for relatedID,
// both armed here and pending only in the repository.
func (s *Scheduler) PendingRelated(ctx context.Context, relatedID string) ([]string, error) {
	if relatedID == "" {
		return nil, nil
	}

	stored, err := s.repo.ListPendingRelated(ctx, relatedID)
	if err != nil {
		return nil, fmt.Errorf("list related triggers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.related[relatedID])+len(stored))
	for id := range s.related[relatedID] {
		ids = append(ids, id)
	}
	for _, t := range stored {
		if _, armed := s.related[relatedID][t.ID]; armed {
			continue
		}
		if _, settled := s.settled[t.ID]; settled {
			continue
		}
		ids = append(ids, t.ID)
	}
	slices.Sort(ids)
	return ids, nil
}

// CancelRelated cancels every pending trigger created for relatedID and
// returns how many were cancelled.
func (s *Scheduler) CancelRelated(ctx context.Context, relatedID string) (int, error) {
	ids, err := s.PendingRelated(ctx, relatedID)
	if err != nil {
		return 0, err
	}
	return s.CancelAll(ctx, relatedID, ids)
}

// CancelAll cancels the given triggers of relatedID and returns how many were
// cancelled. Ids that already fired are skipped.
func (s *Scheduler) CancelAll(ctx context.Context, relatedID string, ids []string) (int, error) {
	var errs []error
	cancelled := 0
	for _, id := range ids {
		ok, err := s.Cancel(ctx, id)
		if ok {
			cancelled++
		}
		if err != nil && !errors.Is(err, ErrTriggerNotFound) {
			errs = append(errs, err)
		}
	}
	if cancelled > 0 {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "related triggers cancelled",
			logger.RelatedID(relatedID),
			slog.Int("count", cancelled),
		)
	}
	return cancelled, errors.Join(errs...)
}

// Get returns the trigger from the registry or, for settled ones, from the repository.
func (s *Scheduler) Get(ctx context.Context, id string) (Trigger, error) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		t := e.trigger
		s.mu.Unlock()
		return t, nil
	}
	s.mu.Unlock()
	return s.repo.Get(ctx, id)
}

// Pending returns a snapshot of armed triggers ordered by fire time.
func (s *Scheduler) Pending() []Trigger {
	s.mu.Lock()
	out := make([]Trigger, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.trigger)
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Trigger) int {
		return a.FireAt.Compare(b.FireAt)
	})
	return out
}

// Start re-arms every pending trigger found in the repository.
func (s *Scheduler) Start(ctx context.Context) error {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("restore pending triggers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSchedulerStopped
	}

	restored := 0
	for _, t := range pending {
		if s.known(t.ID) {
			continue
		}
		s.arm(t)
		restored++
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduler started",
		slog.Int("restored", restored),
		slog.Int("max_concurrent_fires", cap(s.sem)),
	)
	return nil
}

// Stop disarms all timers without firing them and waits for in-flight handlers.
// Disarmed triggers remain pending in the repository.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for id, e := range s.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(s.entries, id)
	}
	clear(s.related)
	s.mu.Unlock()

	s.logger.Info("scheduler stopping, waiting for in-flight fires")
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
	return nil
}

// Run starts the scheduler and returns a function suitable for errgroup.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

// arm must be called with s.mu held.
func (s *Scheduler) arm(t Trigger) {
	e := &entry{trigger: t}
	s.entries[t.ID] = e
	if rid := t.Draft.RelatedID; rid != "" {
		if s.related[rid] == nil {
			s.related[rid] = make(map[string]struct{})
		}
		s.related[rid][t.ID] = struct{}{}
	}

	delay := max(t.FireAt.Sub(s.now()), 0)
	id := t.ID
	e.timer = time.AfterFunc(delay, func() { s.fire(id) })
}

// forget removes t from the registry indexes. Must be called with s.mu held.
func (s *Scheduler) forget(t Trigger) {
	delete(s.entries, t.ID)
	if rid := t.Draft.RelatedID; rid != "" {
		delete(s.related[rid], t.ID)
		if len(s.related[rid]) == 0 {
			delete(s.related, rid)
		}
	}
}

// known must be called with s.mu held.
func (s *Scheduler) known(id string) bool {
	_, armed := s.entries[id]
	_, settled := s.settled[id]
	return armed || settled
}

// persist writes a terminal status to the repository with a few retries. The
// in-memory status is dropped afterwards even when every attempt failed.
func (s *Scheduler) persist(ctx context.Context, id string, status Status, at time.Time) error {
	defer s.confirm(id)

	b := retry.WithMaxRetries(persistRetries, retry.NewExponential(persistBackoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := s.repo.UpdateStatus(ctx, id, status, at)
		if err == nil || errors.Is(err, ErrTriggerNotFound) || errors.Is(err, ErrInvalidTransition) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// confirm drops the in-memory terminal status.
func (s *Scheduler) confirm(id string) {
	s.mu.Lock()
	delete(s.settled, id)
	s.mu.Unlock()
}

func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	e, ok := s.entries[id]
	if !ok {
		status, settled := s.settled[id]
		s.mu.Unlock()
		if settled && status == StatusFired {
			s.logger.LogAttrs(context.Background(), slog.LevelError, "trigger fired twice",
				logger.TriggerID(id),
				logger.Error(ErrSchedulerFault),
			)
		}
		return
	}

	at := s.now()
	if err := e.trigger.transition(StatusFired, at); err != nil {
		s.mu.Unlock()
		s.logger.LogAttrs(context.Background(), slog.LevelError, "illegal fire",
			logger.TriggerID(id),
			logger.Error(errors.Join(ErrSchedulerFault, err)),
		)
		return
	}
	t := e.trigger
	s.forget(t)
	s.settled[id] = StatusFired
	s.wg.Add(1)
	s.mu.Unlock()

	go s.dispatch(t)
}

func (s *Scheduler) dispatch(t Trigger) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.LogAttrs(context.Background(), slog.LevelError, "trigger dispatch panicked",
				logger.TriggerID(t.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	if err := s.persist(ctx, t.ID, StatusFired, *t.SettledAt); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "failed to persist fired trigger",
			logger.TriggerID(t.ID),
			logger.Error(err),
		)
	}

	start := s.now()
	if err := s.handler.Handle(ctx, t); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "trigger handler failed",
			logger.TriggerID(t.ID),
			logger.Error(err),
		)
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelDebug, "trigger fired",
		logger.TriggerID(t.ID),
		logger.FireAt(t.FireAt),
		logger.Duration(s.now().Sub(start)),
	)
}
