package progress

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/log"

	"go.uber.org/zap"
)

var (
	ErrUnknownJob  = errors.New("unknown job")
	ErrJobFinished = errors.New("job already finished")
	ErrJobExists   = errors.New("job already exists")
)

const subscriberBuffer = 16

// Tracker keeps one progress record per job. Reads go through an atomic
// pointer so polling never waits on a writer.
type Tracker struct {
	mu     sync.RWMutex
	jobs   map[string]*record
	order  []string
	retain int
	latest atomic.Pointer[record]
	now    func() time.Time
}

type record struct {
	snap atomic.Pointer[appcore.Snapshot]

	subMu   sync.Mutex
	subs    map[int]chan appcore.Snapshot
	nextSub int
	closed  bool
}

// NewTracker keeps at most retain finished jobs; running jobs are never evicted.
func NewTracker(retain int) *Tracker {
	if retain <= 0 {
		retain = 100
	}
	return &Tracker{
		jobs:   make(map[string]*record),
		retain: retain,
		now:    time.Now,
	}
}

// Begin registers a new processing job and makes it the latest one.
func (t *Tracker) Begin(jobID string, kind appcore.JobKind, message string) (appcore.Snapshot, error) {
	snap := appcore.Snapshot{
		JobID:     jobID,
		Kind:      kind,
		Status:    appcore.JobStatusProcessing,
		Step:      appcore.StepValidating,
		Message:   message,
		UpdatedAt: t.now(),
	}
	rec := &record{subs: make(map[int]chan appcore.Snapshot)}
	rec.snap.Store(&snap)

	t.mu.Lock()
	if _, exists := t.jobs[jobID]; exists {
		t.mu.Unlock()
		return appcore.Snapshot{}, fmt.Errorf("%w: %s", ErrJobExists, jobID)
	}
	t.jobs[jobID] = rec
	t.order = append(t.order, jobID)
	t.evictLocked()
	t.mu.Unlock()

	t.latest.Store(rec)
	return snap, nil
}

// Update moves a processing job forward. Updates to finished jobs are rejected.
func (t *Tracker) Update(jobID, step string, percent int, message string) error {
	return t.transition(jobID, appcore.JobStatusProcessing, step, percent, message)
}

// Finish freezes a job in a terminal status.
func (t *Tracker) Finish(jobID string, status appcore.JobStatus, message string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	step := appcore.StepComplete
	switch status {
	case appcore.JobStatusError:
		step = appcore.StepError
	case appcore.JobStatusCancelled:
		step = appcore.StepCancelled
	}
	percent := -1
	if status == appcore.JobStatusCompleted {
		percent = 100
	}
	return t.transition(jobID, status, step, percent, message)
}

func (t *Tracker) transition(jobID string, status appcore.JobStatus, step string, percent int, message string) error {
	rec, ok := t.lookup(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	rec.subMu.Lock()
	defer rec.subMu.Unlock()

	cur := rec.snap.Load()
	if !appcore.CanTransition(cur.Status, status) {
		return fmt.Errorf("%w: %s is %s", ErrJobFinished, jobID, cur.Status)
	}

	next := *cur
	next.Status = status
	next.Step = step
	if percent >= 0 {
		next.Percent = clamp(percent)
	}
	next.Message = message
	next.UpdatedAt = t.now()
	rec.snap.Store(&next)

	for _, ch := range rec.subs {
		select {
		case ch <- next:
		default:
			// slow subscriber; it can still poll Get for the newest value
		}
	}
	if status.IsTerminal() {
		for id, ch := range rec.subs {
			close(ch)
			delete(rec.subs, id)
		}
		rec.closed = true
	}
	return nil
}

// Reporter binds a Reporter to one job. Failed updates are logged and dropped.
func (t *Tracker) Reporter(jobID string) Reporter {
	return ReporterFunc(func(step string, percent int, message string) {
		if err := t.Update(jobID, step, percent, message); err != nil {
			log.GetLogger().Debug("progress update dropped", zap.String("jobId", jobID), zap.Error(err))
		}
	})
}

// Get returns the current snapshot of a job. Repeated calls without
// intervening updates return identical values.
func (t *Tracker) Get(jobID string) (appcore.Snapshot, bool) {
	rec, ok := t.lookup(jobID)
	if !ok {
		return appcore.Snapshot{}, false
	}
	return *rec.snap.Load(), true
}

// Latest is the snapshot of the most recently started job, or an idle snapshot.
func (t *Tracker) Latest() appcore.Snapshot {
	rec := t.latest.Load()
	if rec == nil {
		return appcore.IdleSnapshot()
	}
	return *rec.snap.Load()
}

// Active counts jobs that have not reached a terminal status.
func (t *Tracker) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.jobs {
		if !rec.snap.Load().Status.IsTerminal() {
			n++
		}
	}
	return n
}

// Subscribe streams every change of a job. The channel is closed once the job
// finishes; the returned func detaches early.
func (t *Tracker) Subscribe(jobID string) (<-chan appcore.Snapshot, func(), error) {
	rec, ok := t.lookup(jobID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobID)
	}

	rec.subMu.Lock()
	defer rec.subMu.Unlock()

	ch := make(chan appcore.Snapshot, subscriberBuffer)
	ch <- *rec.snap.Load()
	if rec.closed {
		close(ch)
		return ch, func() {}, nil
	}

	id := rec.nextSub
	rec.nextSub++
	rec.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			rec.subMu.Lock()
			defer rec.subMu.Unlock()
			if sub, ok := rec.subs[id]; ok {
				delete(rec.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel, nil
}

func (t *Tracker) lookup(jobID string) (*record, bool) {
	t.mu.RLock()
	rec, ok := t.jobs[jobID]
	t.mu.RUnlock()
	return rec, ok
}

func (t *Tracker) evictLocked() {
	finished := 0
	for _, id := range t.order {
		if t.jobs[id].snap.Load().Status.IsTerminal() {
			finished++
		}
	}
	if finished <= t.retain {
		return
	}

	kept := t.order[:0]
	for _, id := range t.order {
		rec := t.jobs[id]
		if finished > t.retain && rec.snap.Load().Status.IsTerminal() && rec != t.latest.Load() {
			delete(t.jobs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}
