package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
)

// ErrWatchExhausted means a run was still active after the last allowed poll.
var ErrWatchExhausted = errors.New("run did not reach a terminal state within the poll budget")

// ProgressPoller is the read side of the run client.
type ProgressPoller interface {
	PollProgress(ctx context.Context, runID int) (*model.RunProgress, error)
}

// Watcher polls one run until it reaches a terminal state.
type Watcher struct {
	poller      ProgressPoller
	interval    time.Duration
	maxAttempts int // 0 = until terminal or ctx done
}

func NewWatcher(poller ProgressPoller, interval time.Duration, maxAttempts int) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		poller:      poller,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Watch polls runID, handing every observation to onProgress. Reported percent
// and processed counts never decrease, and the first terminal observation ends
// the watch. Failed polls are logged and retried on the next tick, except a 404
// which means the backend does not know the run.
func (w *Watcher) Watch(ctx context.Context, runID int, onProgress func(model.RunProgress)) (model.RunProgress, error) {
	rec := &model.RunRecord{ID: runID}
	var last model.RunProgress

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for attempt := 1; w.maxAttempts <= 0 || attempt <= w.maxAttempts; attempt++ {
		p, err := w.poller.PollProgress(ctx, runID)
		switch {
		case err != nil && ctx.Err() != nil:
			return last, ctx.Err()
		case err != nil:
			logger.Warn(ctx, "progress poll failed", "run_id", runID, "attempt", attempt, "error", err)
			if IsNotFound(err) {
				return last, err
			}
		default:
			last = rec.Apply(*p)
			if onProgress != nil {
				onProgress(last)
			}
			if last.State.IsTerminal() {
				logger.Info(ctx, "run finished", "run_id", runID, "state", last.State, "percent", last.Percent)
				return last, nil
			}
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}

	logger.Warn(ctx, "run watch exhausted", "run_id", runID, "attempts", w.maxAttempts, "state", last.State)
	return last, ErrWatchExhausted
}

// ProgressPublisher receives every reported observation, e.g. to push it to browsers.
type ProgressPublisher interface {
	PublishProgress(p model.RunProgress)
}

// RunTracker records runs in the store and watches them in the background.
type RunTracker struct {
	ctx       context.Context
	store     *RunStore
	watcher   *Watcher
	publisher ProgressPublisher
	wg        sync.WaitGroup

	mu       sync.Mutex
	watching map[int]bool
}

// NewRunTracker ties background watches to ctx: cancelling it stops them all.
// publisher may be nil.
func NewRunTracker(ctx context.Context, store *RunStore, watcher *Watcher, publisher ProgressPublisher) *RunTracker {
	return &RunTracker{
		ctx:       ctx,
		store:     store,
		watcher:   watcher,
		publisher: publisher,
		watching:  make(map[int]bool),
	}
}

func (t *RunTracker) Store() *RunStore {
	return t.store
}

// Track saves rec and starts watching it. A run that is already tracked keeps its
// stored record; it is watched again only if it has not ended and no watch is running.
func (t *RunTracker) Track(rec *model.RunRecord) {
	if rec.Progress.State == "" {
		rec.Progress = model.RunProgress{RunID: rec.ID, State: model.StatePending}
	}
	id := rec.ID
	if !t.store.Add(rec) {
		existing, ok := t.store.Get(id)
		if ok && existing.Progress.State.IsTerminal() {
			logger.Info(t.ctx, "run already tracked", "run_id", id, "state", existing.Progress.State)
			return
		}
	}
	if !t.claim(id) {
		logger.Info(t.ctx, "run already watched", "run_id", id)
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer t.release(id)
		ctx := logger.WithRunID(t.ctx, id)
		defer func() {
			if r := recover(); r != nil {
				logger.Error(ctx, "run watch panicked", "panic", r)
				t.store.SetError(id, "watch aborted")
			}
		}()

		_, err := t.watcher.Watch(ctx, id, func(p model.RunProgress) {
			reported, ok := t.store.ApplyProgress(id, p)
			if ok && t.publisher != nil {
				t.publisher.PublishProgress(reported)
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "run watch ended without terminal state", "error", err)
			t.store.SetError(id, err.Error())
		}
	}()
}

func (t *RunTracker) claim(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watching[id] {
		return false
	}
	t.watching[id] = true
	return true
}

func (t *RunTracker) release(id int) {
	t.mu.Lock()
	delete(t.watching, id)
	t.mu.Unlock()
}

// Wait blocks until every background watch has returned.
func (t *RunTracker) Wait() {
	t.wg.Wait()
}
