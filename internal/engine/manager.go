package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/datallboy/execlogs/internal/app"
	"github.com/datallboy/execlogs/internal/domain"
	"github.com/datallboy/execlogs/internal/infra/logger"
)

// maxRecentRuns bounds the finished runs kept in memory when no store is configured.
const maxRecentRuns = 100

var ErrInvalidRequest = errors.New("invalid run request")

// RunQueue executes queued run requests one at a time.
type RunQueue struct {
	mu      sync.RWMutex
	service *Service
	store   app.RunStore
	log     *logger.Logger

	queue  []*domain.Run
	active *domain.Run
	recent []*domain.Run

	newRunChan chan struct{}
	done       chan struct{}
}

func NewRunQueue(ctx *app.Context, service *Service) *RunQueue {
	return &RunQueue{
		service:    service,
		store:      ctx.Store,
		log:        ctx.Logger,
		newRunChan: make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Add queues req and notifies the processing loop.
func (q *RunQueue) Add(ctx context.Context, req domain.RunRequest) (*domain.Run, error) {
	if req.AppID == "" {
		return nil, errors.Join(ErrInvalidRequest, errors.New("app_id is required"))
	}
	for _, t := range req.Targets {
		if t.Worker == "" || t.ExecutorID < 0 {
			return nil, errors.Join(ErrInvalidRequest, errors.New("targets need a worker and a non-negative executor_id"))
		}
	}

	run := NewRun(req)

	if err := q.service.Save(ctx, run); err != nil {
		return nil, err
	}

	q.mu.Lock()
	q.queue = append(q.queue, run)
	snapshot := *run
	q.mu.Unlock()

	// Signal the Start() loop that there is work to do
	select {
	case q.newRunChan <- struct{}{}:
	default:
	}

	q.log.Info("Queued run %s for %s", run.ID, req.AppID)
	return &snapshot, nil
}

// Start processes queued runs until ctx is done. A run active at that point
// is finished and recorded before Start returns. Start must be called once.
func (q *RunQueue) Start(ctx context.Context) {
	defer close(q.done)

	for {
		var next *domain.Run

		q.mu.RLock()
		for _, r := range q.queue {
			if r.Status == domain.StatusPending {
				next = r
				break
			}
		}
		q.mu.RUnlock()

		if next == nil {
			select {
			case <-q.newRunChan:
				continue
			case <-ctx.Done():
				return
			}
		}

		q.mu.Lock()
		q.active = next
		next.Status = domain.StatusRunning
		q.saveLocked(ctx, next)
		req := next.Request
		q.mu.Unlock()

		report, err := q.service.Execute(ctx, next.ID, req)
		if err != nil {
			q.log.Error("Run %s: %v", next.ID, err)
		}

		q.finalizeRun(context.WithoutCancel(ctx), next, report, err)
	}
}

// Done is closed when Start has returned.
func (q *RunQueue) Done() <-chan struct{} {
	return q.done
}

// Active returns the run currently executing, if any.
func (q *RunQueue) Active() *domain.Run {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.active == nil {
		return nil
	}
	snapshot := *q.active
	return &snapshot
}

// Get searches the live queue first and falls back to the store.
func (q *RunQueue) Get(ctx context.Context, id string) (*domain.Run, bool) {
	q.mu.RLock()
	for _, list := range [][]*domain.Run{q.queue, q.recent} {
		for _, r := range list {
			if r.ID == id {
				snapshot := *r
				q.mu.RUnlock()
				return &snapshot, true
			}
		}
	}
	q.mu.RUnlock()

	if q.store == nil {
		return nil, false
	}

	run, err := q.store.GetRun(ctx, id)
	if err != nil {
		q.log.Error("Failed to load run %s: %v", id, err)
		return nil, false
	}
	return run, run != nil
}

// List returns the live runs followed by stored history, newest first,
// at most limit entries when limit > 0.
func (q *RunQueue) List(ctx context.Context, limit int) ([]*domain.Run, error) {
	q.mu.RLock()
	seen := make(map[string]bool)
	var runs []*domain.Run
	for _, list := range [][]*domain.Run{q.queue, q.recent} {
		for _, r := range list {
			snapshot := *r
			runs = append(runs, &snapshot)
			seen[r.ID] = true
		}
	}
	q.mu.RUnlock()

	if q.store != nil {
		stored, err := q.store.ListRuns(ctx, limit)
		if err != nil {
			return nil, err
		}
		for _, r := range stored {
			if !seen[r.ID] {
				runs = append(runs, r)
			}
		}
	}

	// KSUIDs sort chronologically
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (q *RunQueue) finalizeRun(ctx context.Context, run *domain.Run, report *domain.Report, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.service.Finish(run, report, err)

	// Persist the final outcome
	q.saveLocked(ctx, run)

	q.active = nil
	q.removeFromLiveQueue(run.ID)

	if q.store == nil {
		q.recent = append(q.recent, run)
		if len(q.recent) > maxRecentRuns {
			q.recent = q.recent[len(q.recent)-maxRecentRuns:]
		}
	}

	q.log.Info("Run %s finished: %s", run.ID, run.Status)
}

func (q *RunQueue) saveLocked(ctx context.Context, run *domain.Run) {
	if err := q.service.Save(ctx, run); err != nil {
		q.log.Error("Failed to save run %s: %v", run.ID, err)
	}
}

// removeFromLiveQueue keeps the live slice small by removing finished runs
func (q *RunQueue) removeFromLiveQueue(id string) {
	for i, r := range q.queue {
		if r.ID == id {
			q.queue = append(q.queue[:i], q.queue[i+1:]...)
			break
		}
	}
}
