// Package batch runs synthesis jobs: it drives a queue of work items through
// the synthesis client one at a time, writes the results and reports
// progress through events and stats snapshots.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dgnsrekt/voxcast/internal/artifact"
	"github.com/dgnsrekt/voxcast/internal/queue"
	"github.com/dgnsrekt/voxcast/tts"
)

// Synthesizer performs one synthesis request including retries.
// *tts.Client implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, voiceID, text string, settings tts.VoiceSettings) (tts.Result, error)
	Policy() tts.RetryPolicy
}

// ArtifactWriter persists job output. *artifact.Writer implements it.
type ArtifactWriter interface {
	queue.DirCreator
	WriteAudio(dir, filename string, data []byte) (string, error)
	WriteMetadata(dir string, md artifact.Metadata) (string, error)
}

// InitResult describes a freshly initialized job.
type InitResult struct {
	JobID      string
	TotalItems int
	EpisodeDir string
	Skipped    []queue.Skipped
}

// Engine owns at most one job at a time. All methods are safe for
// concurrent use.
type Engine struct {
	client        Synthesizer
	writer        ArtifactWriter
	builder       *queue.Builder
	itemDelay     time.Duration
	maxChunkChars int
	logger        *log.Logger
	now           func() time.Time

	bus      *EventBus
	dispatch *dispatcher

	mu  sync.Mutex
	job *job
}

// job is the state of one Initialize call.
type job struct {
	id      string
	episode tts.EpisodeInfo
	dir     string
	logger  *log.Logger

	sm    *tts.StateMachine
	queue []*tts.WorkItem

	processed []*tts.WorkItem
	failed    []*tts.WorkItem

	// pass is the list being worked on: the queue, or the failed items
	// during a retry pass. cursor is the next item to attempt.
	pass    []*tts.WorkItem
	cursor  int
	current *tts.WorkItem

	startTime time.Time
	endTime   time.Time

	looping bool
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	fatal   error
}

// Option configures an Engine.
type Option func(*Engine)

// WithItemDelay sets the pause between consecutive items.
func WithItemDelay(d time.Duration) Option {
	return func(e *Engine) { e.itemDelay = d }
}

// WithMaxChunkChars sets the per-item character budget.
func WithMaxChunkChars(n int) Option {
	return func(e *Engine) { e.maxChunkChars = n }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithEventBuffer sets how many events Events keeps.
func WithEventBuffer(n int) Option {
	return func(e *Engine) { e.bus = NewEventBus(n) }
}

// New creates an engine.
func New(client Synthesizer, writer ArtifactWriter, opts ...Option) *Engine {
	e := &Engine{
		client:        client,
		writer:        writer,
		itemDelay:     tts.DefaultItemDelay,
		maxChunkChars: tts.DefaultMaxChunkChars,
		logger:        log.Default(),
		now:           time.Now,
		bus:           NewEventBus(0),
		dispatch:      newDispatcher(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.builder = queue.NewBuilder(writer,
		queue.WithMaxChunkChars(e.maxChunkChars),
		queue.WithLogger(e.logger),
		queue.WithClock(e.now))
	return e
}

// Initialize builds a new job from dialogues. It fails with tts.ErrJobActive
// while a job is running or paused, and with tts.ErrNoWorkItems when no
// dialogue has a mapped speaker. A previous finished job is discarded.
func (e *Engine) Initialize(dialogues []tts.Dialogue, mapping tts.SpeakerMapping, episode tts.EpisodeInfo) (InitResult, error) {
	defer e.dispatch.drain()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job != nil && e.job.sm.Current().IsActive() {
		return InitResult{}, tts.ErrJobActive
	}

	res, err := e.builder.Build(dialogues, mapping, episode)
	if err != nil {
		return InitResult{Skipped: res.Skipped}, fmt.Errorf("initialize: %w", err)
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:      id,
		episode: episode,
		dir:     res.EpisodeDir,
		logger:  e.logger.With("job", id[:8]),
		sm:      tts.NewStateMachine(),
		queue:   res.Items,
		pass:    res.Items,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	e.trackTime(j)
	if old := e.job; old != nil {
		old.cancel()
		// A job that never ran still has waiters to release.
		if !old.sm.Current().IsTerminal() {
			e.finishLocked(old)
		}
	}
	e.job = j

	j.logger.Info("Job initialized", "episode", episode.Name, "items", len(res.Items), "skipped", len(res.Skipped), "dir", res.EpisodeDir)

	return InitResult{
		JobID:      id,
		TotalItems: len(res.Items),
		EpisodeDir: res.EpisodeDir,
		Skipped:    res.Skipped,
	}, nil
}

// Start begins processing in the background and returns immediately.
// Starting a running job is a no-op; starting a paused job resumes it.
func (e *Engine) Start() error {
	e.mu.Lock()
	j := e.job
	if j == nil {
		e.mu.Unlock()
		return tts.ErrNotInitialized
	}

	switch state := j.sm.Current(); state {
	case tts.StateRunning:
		e.mu.Unlock()
		j.logger.Warn("Start called while already running")
		return nil
	case tts.StatePaused:
		e.mu.Unlock()
		e.Resume()
		return nil
	case tts.StateIdle:
	default:
		e.mu.Unlock()
		return fmt.Errorf("%w: cannot start a %s job", tts.ErrInvalidTransition, state)
	}

	j.sm.Transition(tts.StateRunning)
	e.publishLocked(j, Event{Type: EventStart})
	e.launchLocked(j)
	e.mu.Unlock()

	j.logger.Info("Processing started", "items", len(j.queue))
	e.dispatch.drain()
	return nil
}

// Pause stops the job at the next item boundary. The item in flight
// finishes. It is a no-op unless the job is running.
func (e *Engine) Pause() {
	e.mu.Lock()
	j := e.job
	if j == nil || !j.sm.Transition(tts.StatePaused) {
		e.mu.Unlock()
		return
	}
	e.publishLocked(j, Event{Type: EventPaused})
	j.logger.Info("Processing paused", "cursor", j.cursor)
	e.mu.Unlock()

	e.dispatch.drain()
}

// Resume continues a paused job from where it stopped. It is a no-op unless
// the job is paused.
func (e *Engine) Resume() {
	e.mu.Lock()
	j := e.job
	if j == nil || j.sm.Current() != tts.StatePaused {
		e.mu.Unlock()
		return
	}
	j.sm.Transition(tts.StateRunning)
	e.publishLocked(j, Event{Type: EventResumed})
	// The loop may still be finishing the item that was in flight when
	// the job was paused; it picks up the new state itself.
	if !j.looping {
		e.launchLocked(j)
	}
	j.logger.Info("Processing resumed", "cursor", j.cursor)
	e.mu.Unlock()

	e.dispatch.drain()
}

// Cancel stops the job for good. The request in flight, if any, is allowed
// to finish but no further item is started. Finished jobs are left as is.
func (e *Engine) Cancel() {
	e.mu.Lock()
	j := e.job
	if j == nil || !j.sm.Transition(tts.StateCancelled) {
		e.mu.Unlock()
		return
	}
	j.cancel()
	e.publishLocked(j, Event{Type: EventCancelled})
	e.finishLocked(j)
	e.mu.Unlock()

	j.logger.Info("Processing cancelled")
	e.dispatch.drain()
}

// RetryFailed re-queues every failed item of a completed job and processes
// them again, in their original order. It returns the number of items
// re-queued.
func (e *Engine) RetryFailed() (int, error) {
	e.mu.Lock()
	j := e.job
	if j == nil {
		e.mu.Unlock()
		return 0, tts.ErrNotInitialized
	}
	if state := j.sm.Current(); state != tts.StateCompleted {
		e.mu.Unlock()
		return 0, fmt.Errorf("%w: cannot retry a %s job", tts.ErrInvalidTransition, state)
	}
	if len(j.failed) == 0 {
		e.mu.Unlock()
		return 0, tts.ErrNothingToRetry
	}

	pass := append([]*tts.WorkItem(nil), j.failed...)
	sort.SliceStable(pass, func(a, b int) bool {
		if pass[a].OriginalIndex != pass[b].OriginalIndex {
			return pass[a].OriginalIndex < pass[b].OriginalIndex
		}
		return pass[a].ChunkIndex < pass[b].ChunkIndex
	})
	for _, item := range pass {
		item.Reset()
	}

	j.failed = nil
	j.pass = pass
	j.cursor = 0
	j.ctx, j.cancel = context.WithCancel(context.Background())
	j.done = make(chan struct{})
	j.sm.Transition(tts.StateRunning)
	e.publishLocked(j, Event{Type: EventStart, Retry: true})
	e.launchLocked(j)
	e.mu.Unlock()

	j.logger.Info("Retrying failed items", "items", len(pass))
	e.dispatch.drain()
	return len(pass), nil
}

// Stats returns a snapshot of the current job's progress.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		return Stats{}
	}
	return e.job.statsLocked(e.now())
}

// Items returns copies of the current job's work items in queue order.
func (e *Engine) Items() []tts.WorkItem {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		return nil
	}
	out := make([]tts.WorkItem, len(e.job.queue))
	for i, item := range e.job.queue {
		out[i] = *item
	}
	return out
}

// ID returns the current job id, or "".
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		return ""
	}
	return e.job.id
}

// State returns the current job state.
func (e *Engine) State() tts.JobState {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		return tts.StateIdle
	}
	return e.job.sm.Current()
}

// EpisodeDir returns the current job's output directory.
func (e *Engine) EpisodeDir() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job == nil {
		return ""
	}
	return e.job.dir
}

// Wait blocks until the current run completes, is cancelled or aborts. It
// returns the filesystem error that aborted the job, if any.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	j := e.job
	if j == nil {
		e.mu.Unlock()
		return tts.ErrNotInitialized
	}
	done := j.done
	e.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return j.fatal
}

// Subscribe registers h for every event. The returned function removes it.
func (e *Engine) Subscribe(h Handler) (unsubscribe func()) {
	return e.dispatch.subscribe(h)
}

// On registers h for events of type t.
func (e *Engine) On(t EventType, h Handler) (unsubscribe func()) {
	return e.Subscribe(func(ev Event) {
		if ev.Type == t {
			h(ev)
		}
	})
}

// Events returns the buffer of recent events for polling.
func (e *Engine) Events() *EventBus {
	return e.bus
}

// trackTime keeps j's run clock. Entering running from idle or from a
// finished pass starts a new clock; resuming from paused keeps it, so
// elapsed time includes pauses. Entering a terminal state stops it.
func (e *Engine) trackTime(j *job) {
	j.sm.OnEnter(tts.StateRunning, func() {
		if j.startTime.IsZero() || !j.endTime.IsZero() {
			j.startTime = e.now()
			j.endTime = time.Time{}
		}
	})
	stop := func() {
		if j.endTime.IsZero() {
			j.endTime = e.now()
		}
	}
	j.sm.OnEnter(tts.StateCompleted, stop)
	j.sm.OnEnter(tts.StateCancelled, stop)
	j.sm.OnEnter(tts.StateAborted, stop)
}

// publishLocked sequences ev and queues it for handlers. Callers hold e.mu
// and call e.dispatch.drain after unlocking.
func (e *Engine) publishLocked(j *job, ev Event) {
	ev.JobID = j.id
	ev.Time = e.now()
	ev.Stats = j.statsLocked(ev.Time)
	ev = e.bus.Publish(ev)
	e.dispatch.enqueue(ev)
}

func (e *Engine) launchLocked(j *job) {
	j.looping = true
	go e.run(j)
}

// run processes items until the pass is exhausted or the job leaves the
// running state.
func (e *Engine) run(j *job) {
	for {
		e.mu.Lock()
		if e.job != j || j.sm.Current() != tts.StateRunning {
			j.looping = false
			e.mu.Unlock()
			return
		}

		if j.cursor >= len(j.pass) {
			j.looping = false
			e.completeLocked(j)
			e.mu.Unlock()
			e.dispatch.drain()
			return
		}

		item := j.pass[j.cursor]
		position := indexOf(j.queue, item)
		ctx := j.ctx
		item.Status = tts.StatusProcessing
		j.current = item
		e.publishLocked(j, Event{Type: EventItemStart, Item: &ItemEvent{ID: item.ID, Speaker: item.Speaker, Position: position}})
		e.mu.Unlock()
		e.dispatch.drain()

		more := e.process(ctx, j, item, position)
		if more && e.itemDelay > 0 {
			sleepContext(ctx, e.itemDelay)
		}
	}
}

// process synthesizes one item and records the outcome. It reports whether
// more items are left in the pass.
func (e *Engine) process(ctx context.Context, j *job, item *tts.WorkItem, position int) bool {
	start := e.now()
	res, err := e.client.Synthesize(ctx, item.VoiceID, item.Text, item.Settings)

	var werr error
	if err == nil {
		_, werr = e.writer.WriteAudio(j.dir, tts.AudioFilename(item.ID), res.Audio)
	}
	took := e.now().Sub(start)

	e.mu.Lock()
	if e.job != j {
		// Discarded by a new Initialize.
		e.mu.Unlock()
		return false
	}
	j.current = nil

	switch {
	case err == nil && werr == nil:
		item.Status = tts.StatusCompleted
		item.Attempts = res.Attempts
		item.Filename = tts.AudioFilename(item.ID)
		item.AudioSize = len(res.Audio)
		item.ProcessingTime = took
		j.processed = append(j.processed, item)
		j.cursor++
		j.logger.Debug("Item completed", "item", item.ID, "attempts", res.Attempts, "bytes", len(res.Audio), "took", took)
		e.publishLocked(j, Event{Type: EventItemComplete, Item: &ItemEvent{
			ID: item.ID, Speaker: item.Speaker, Position: position, Attempts: item.Attempts,
			Filename: item.Filename, AudioSize: item.AudioSize, ProcessingTime: took,
		}})

	case werr != nil:
		item.Status = tts.StatusFailed
		item.Attempts = res.Attempts
		item.Error = werr.Error()
		item.ProcessingTime = took
		j.failed = append(j.failed, item)
		j.cursor++
		j.logger.Error("Writing audio failed", "item", item.ID, "err", werr)
		e.abortLocked(j, werr)

	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Cancelled between attempts: the item was not given all its
		// attempts, so it is not a failure.
		item.Reset()
		j.logger.Debug("Item interrupted by cancel", "item", item.ID)

	default:
		item.Status = tts.StatusFailed
		item.Attempts = tts.AttemptsOf(err)
		item.Error = err.Error()
		item.ProcessingTime = took
		j.failed = append(j.failed, item)
		j.cursor++
		j.logger.Warn("Item failed", "item", item.ID, "attempts", item.Attempts, "err", err)
		e.publishLocked(j, Event{Type: EventItemError, Item: &ItemEvent{
			ID: item.ID, Speaker: item.Speaker, Position: position, Attempts: item.Attempts,
			ProcessingTime: took, Error: item.Error,
			WillRetry: item.Attempts < e.client.Policy().MaxAttempts,
		}})
	}

	more := j.cursor < len(j.pass) && j.sm.Current() == tts.StateRunning
	e.mu.Unlock()

	e.dispatch.drain()
	return more
}

// completeLocked finishes a pass: metadata is written and the job moves to
// completed, or to aborted when the write fails.
func (e *Engine) completeLocked(j *job) {
	now := e.now()
	j.endTime = now

	stats := j.statsLocked(now)
	stats.State = tts.StateCompleted
	stats.IsProcessing = false
	stats.IsPaused = false

	md := artifact.Metadata{
		Episode:        j.episode.Name,
		JobID:          j.id,
		ProcessedAt:    now.UTC(),
		ProcessingTime: stats.Elapsed.Milliseconds(),
		Stats:          stats.Record(),
	}
	for _, item := range j.processed {
		md.Items.Processed = append(md.Items.Processed, artifact.NewItemRecord(item))
	}
	for _, item := range j.failed {
		md.Items.Failed = append(md.Items.Failed, artifact.NewItemRecord(item))
	}

	path, err := e.writer.WriteMetadata(j.dir, md)
	if err != nil {
		j.logger.Error("Writing metadata failed", "err", err)
		e.abortLocked(j, err)
		return
	}

	j.sm.Transition(tts.StateCompleted)
	j.cancel()
	e.publishLocked(j, Event{Type: EventComplete, Completion: &Completion{
		ProcessingTime: stats.Elapsed,
		EpisodeDir:     j.dir,
		MetadataPath:   path,
		Metadata:       md,
	}})
	e.finishLocked(j)

	j.logger.Info("Processing complete",
		"completed", stats.Completed,
		"failed", stats.Failed,
		"elapsed", stats.Elapsed.Round(time.Millisecond))
}

// abortLocked stops the job after a filesystem error. Files already
// written stay on disk. A job that is already finished is left alone.
func (e *Engine) abortLocked(j *job, err error) {
	if !j.sm.Transition(tts.StateAborted) {
		return
	}
	j.fatal = err
	j.cancel()
	e.publishLocked(j, Event{Type: EventError, Err: err})
	e.finishLocked(j)
}

// finishLocked releases Wait once the events published so far have been
// delivered. Each run's done channel is closed exactly once, by whichever
// of completion, abort or cancel ends the run.
func (e *Engine) finishLocked(j *job) {
	done := j.done
	e.dispatch.then(func() { close(done) })
}

func indexOf(items []*tts.WorkItem, item *tts.WorkItem) int {
	for i, it := range items {
		if it == item {
			return i
		}
	}
	return -1
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
