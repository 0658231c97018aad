package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/classnotify/pkg/notifications"
	"github.com/dmitrymomot/classnotify/pkg/scheduler"
)

type recorder struct {
	mu    sync.Mutex
	fired map[string]int
}

func newRecorder() *recorder {
	return &recorder{fired: make(map[string]int)}
}

func (r *recorder) Handle(_ context.Context, t scheduler.Trigger) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired[t.ID]++
	return nil
}

func (r *recorder) count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fired[id]
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.fired {
		n += c
	}
	return n
}

func trigger(fireAt time.Time, relatedID string) scheduler.Trigger {
	return scheduler.Trigger{
		Draft: notifications.Draft{
			Type:      notifications.TypeOnlineLesson,
			Title:     "Lesson starts soon",
			UserID:    "s1",
			UserRole:  "student",
			RelatedID: relatedID,
		},
		FireAt:   fireAt,
		Channels: []notifications.Channel{notifications.ChannelSystem},
	}
}

func newScheduler(t *testing.T, repo scheduler.Repository, h scheduler.Handler, opts ...scheduler.Option) *scheduler.Scheduler {
	t.Helper()
	s, err := scheduler.New(repo, h, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := scheduler.New(nil, newRecorder())
	assert.ErrorIs(t, err, scheduler.ErrRepositoryNil)

	_, err = scheduler.New(scheduler.NewMemoryRepository(), nil)
	assert.ErrorIs(t, err, scheduler.ErrHandlerNil)
}

func TestScheduler_FiresOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := newRecorder()
	repo := scheduler.NewMemoryRepository()
	s := newScheduler(t, repo, rec)

	id, err := s.Register(ctx, trigger(time.Now().Add(30*time.Millisecond), "lesson-1"))
	require.NoError(t, err)
	assert.Len(t, s.Pending(), 1)
	assert.Zero(t, rec.count(id))

	require.Eventually(t, func() bool { return rec.count(id) == 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		got, err := repo.Get(ctx, id)
		return err == nil && got.Status == scheduler.StatusFired
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count(id))
	assert.Empty(t, s.Pending())
}

func TestScheduler_PastDueFiresImmediately(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	s := newScheduler(t, scheduler.NewMemoryRepository(), rec)

	id, err := s.Register(context.Background(), trigger(time.Now().Add(-time.Hour), ""))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count(id) == 1 }, 200*time.Millisecond, 2*time.Millisecond)
}

func TestScheduler_Cancel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("pending trigger never fires", func(t *testing.T) {
		rec := newRecorder()
		repo := scheduler.NewMemoryRepository()
		s := newScheduler(t, repo, rec)

		id, err := s.Register(ctx, trigger(time.Now().Add(50*time.Millisecond), ""))
		require.NoError(t, err)

		ok, err := s.Cancel(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Cancel(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "cancel is idempotent")

		time.Sleep(100 * time.Millisecond)
		assert.Zero(t, rec.count(id))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, scheduler.StatusCancelled, got.Status)
		assert.NotNil(t, got.SettledAt)
	})

	t.Run("fired trigger reports false", func(t *testing.T) {
		rec := newRecorder()
		s := newScheduler(t, scheduler.NewMemoryRepository(), rec)

		id, err := s.Register(ctx, trigger(time.Now(), ""))
		require.NoError(t, err)
		require.Eventually(t, func() bool { return rec.count(id) == 1 }, time.Second, 2*time.Millisecond)

		ok, err := s.Cancel(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown trigger", func(t *testing.T) {
		s := newScheduler(t, scheduler.NewMemoryRepository(), newRecorder())
		_, err := s.Cancel(ctx, "missing")
		assert.ErrorIs(t, err, scheduler.ErrTriggerNotFound)
	})
}

func TestScheduler_CancelRaceIsExclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := newRecorder()
	s := newScheduler(t, scheduler.NewMemoryRepository(), rec)

	const n = 200
	ids := make([]string, n)
	for i := range n {
		id, err := s.Register(ctx, trigger(time.Now().Add(time.Duration(i%5)*time.Millisecond), ""))
		require.NoError(t, err)
		ids[i] = id
	}

	cancelled := make([]bool, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.Cancel(ctx, id)
			assert.NoError(t, err)
			cancelled[i] = ok
		}()
	}
	wg.Wait()

	// let any fire that won the race finish
	time.Sleep(100 * time.Millisecond)

	for i, id := range ids {
		fired := rec.count(id)
		assert.LessOrEqual(t, fired, 1, "trigger %s fired more than once", id)
		assert.NotEqual(t, cancelled[i], fired == 1, "trigger %s must be either fired or cancelled", id)
	}
}

func TestScheduler_CancelRelated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec := newRecorder()
	s := newScheduler(t, scheduler.NewMemoryRepository(), rec)

	future := time.Now().Add(time.Hour)
	for range 3 {
		_, err := s.Register(ctx, trigger(future, "lesson-1"))
		require.NoError(t, err)
	}
	keep, err := s.Register(ctx, trigger(future, "lesson-2"))
	require.NoError(t, err)

	n, err := s.CancelRelated(ctx, "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, keep, pending[0].ID)

	n, err = s.CancelRelated(ctx, "lesson-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_CancelRelatedIncludesStoredPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := scheduler.NewMemoryRepository()

	stored := trigger(time.Now().Add(time.Hour), "lesson-1")
	stored.ID = "stored-only"
	stored.Status = scheduler.StatusPending
	require.NoError(t, repo.Save(ctx, stored))

	s := newScheduler(t, repo, newRecorder())
	armed, err := s.Register(ctx, trigger(time.Now().Add(time.Hour), "lesson-1"))
	require.NoError(t, err)

	ids, err := s.PendingRelated(ctx, "lesson-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{armed, "stored-only"}, ids)

	n, err := s.CancelRelated(ctx, "lesson-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := repo.Get(ctx, "stored-only")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusCancelled, got.Status)

	require.NoError(t, s.Start(ctx))
	assert.Empty(t, s.Pending(), "cancelled triggers are not restored")
}

func TestScheduler_CancelRelatedWhileStopped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := scheduler.NewMemoryRepository()

	s := newScheduler(t, repo, newRecorder())
	id, err := s.Register(ctx, trigger(time.Now().Add(time.Hour), "lesson-9"))
	require.NoError(t, err)
	require.NoError(t, s.Stop())

	n, err := s.CancelRelated(ctx, "lesson-9")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusCancelled, got.Status)
}

func TestScheduler_RegisterValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newScheduler(t, scheduler.NewMemoryRepository(), newRecorder())

	bad := []scheduler.Trigger{
		trigger(time.Time{}, ""),
		func() scheduler.Trigger { tr := trigger(time.Now(), ""); tr.Channels = nil; return tr }(),
		func() scheduler.Trigger { tr := trigger(time.Now(), ""); tr.Draft.UserID, tr.Draft.UserRole = "", ""; return tr }(),
		func() scheduler.Trigger {
			tr := trigger(time.Now(), "")
			tr.Channels = []notifications.Channel{"pigeon"}
			return tr
		}(),
	}
	for i, tr := range bad {
		_, err := s.Register(ctx, tr)
		assert.ErrorIs(t, err, scheduler.ErrInvalidTrigger, "case %d", i)
	}

	tr := trigger(time.Now().Add(time.Hour), "")
	tr.ID = "fixed"
	_, err := s.Register(ctx, tr)
	require.NoError(t, err)
	_, err = s.Register(ctx, tr)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateTrigger)
}

func TestScheduler_StopAndRestore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := scheduler.NewMemoryRepository()

	first := newRecorder()
	s1 := newScheduler(t, repo, first)
	id, err := s1.Register(ctx, trigger(time.Now().Add(80*time.Millisecond), ""))
	require.NoError(t, err)
	require.NoError(t, s1.Stop())

	_, err = s1.Register(ctx, trigger(time.Now(), ""))
	assert.ErrorIs(t, err, scheduler.ErrSchedulerStopped)

	time.Sleep(120 * time.Millisecond)
	assert.Zero(t, first.count(id), "stopped scheduler must not fire")

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusPending, got.Status)

	second := newRecorder()
	s2 := newScheduler(t, repo, second)
	require.NoError(t, s2.Start(ctx))
	require.Eventually(t, func() bool { return second.count(id) == 1 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_CancelWhileStopped(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := scheduler.NewMemoryRepository()

	s1 := newScheduler(t, repo, newRecorder())
	id, err := s1.Register(ctx, trigger(time.Now().Add(time.Hour), ""))
	require.NoError(t, err)
	require.NoError(t, s1.Stop())

	ok, err := s1.Cancel(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	s2 := newScheduler(t, repo, newRecorder())
	require.NoError(t, s2.Start(ctx))
	assert.Empty(t, s2.Pending())
}

func TestScheduler_HandlerPanicIsRecovered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var calls atomic.Int32
	h := scheduler.HandlerFunc(func(context.Context, scheduler.Trigger) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	s := newScheduler(t, scheduler.NewMemoryRepository(), h)

	_, err := s.Register(ctx, trigger(time.Now(), ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 2*time.Millisecond)

	_, err = s.Register(ctx, trigger(time.Now(), ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 2*time.Millisecond)
}

// brokenRepository wraps MemoryRepository and breaks UpdateStatus.
type brokenRepository struct {
	*scheduler.MemoryRepository
	panics  bool
	updates atomic.Int32
}

func (r *brokenRepository) UpdateStatus(context.Context, string, scheduler.Status, time.Time) error {
	r.updates.Add(1)
	if r.panics {
		panic("connection reset")
	}
	return errors.New("connection reset")
}

func TestScheduler_RepositoryPanicOnFireIsRecovered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &brokenRepository{MemoryRepository: scheduler.NewMemoryRepository(), panics: true}
	rec := newRecorder()
	s := newScheduler(t, repo, rec)

	_, err := s.Register(ctx, trigger(time.Now(), ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return repo.updates.Load() == 1 }, time.Second, 2*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.Zero(t, rec.total())
}

func TestScheduler_FiresWhenStatusCannotBePersisted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := &brokenRepository{MemoryRepository: scheduler.NewMemoryRepository()}
	rec := newRecorder()
	s := newScheduler(t, repo, rec)

	id, err := s.Register(ctx, trigger(time.Now(), ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count(id) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 3, repo.updates.Load(), "status write is retried before giving up")
}

func TestScheduler_BoundedConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var running, peak atomic.Int32
	release := make(chan struct{})
	h := scheduler.HandlerFunc(func(context.Context, scheduler.Trigger) error {
		cur := running.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		<-release
		running.Add(-1)
		return nil
	})
	s := newScheduler(t, scheduler.NewMemoryRepository(), h, scheduler.WithMaxConcurrentFires(2))

	for range 6 {
		_, err := s.Register(ctx, trigger(time.Now(), ""))
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 2*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(2), peak.Load())

	close(release)
	require.Eventually(t, func() bool { return running.Load() == 0 }, time.Second, 2*time.Millisecond)
}

func TestScheduler_Run(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	rec := newRecorder()
	s := newScheduler(t, scheduler.NewMemoryRepository(), rec)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx)() }()

	id, err := s.Register(context.Background(), trigger(time.Now(), ""))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count(id) == 1 }, time.Second, 2*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancel")
	}
	assert.Equal(t, 1, rec.total())
}

func TestStatus_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to scheduler.Status
		ok       bool
	}{
		{scheduler.StatusPending, scheduler.StatusFired, true},
		{scheduler.StatusPending, scheduler.StatusCancelled, true},
		{scheduler.StatusFired, scheduler.StatusCancelled, false},
		{scheduler.StatusCancelled, scheduler.StatusFired, false},
		{scheduler.StatusFired, scheduler.StatusFired, false},
		{scheduler.StatusPending, scheduler.StatusPending, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))
		})
	}
	assert.True(t, scheduler.StatusFired.Terminal())
	assert.False(t, scheduler.StatusPending.Terminal())
}

func TestMemoryRepository(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := scheduler.NewMemoryRepository()

	tr := trigger(time.Now(), "x")
	tr.ID = "t1"
	tr.Status = scheduler.StatusPending
	require.NoError(t, repo.Save(ctx, tr))
	assert.ErrorIs(t, repo.Save(ctx, tr), scheduler.ErrDuplicateTrigger)

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	require.NoError(t, repo.UpdateStatus(ctx, "t1", scheduler.StatusFired, time.Now()))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "t1", scheduler.StatusCancelled, time.Now()), scheduler.ErrInvalidTransition)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "nope", scheduler.StatusFired, time.Now()), scheduler.ErrTriggerNotFound)

	pending, err = repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
