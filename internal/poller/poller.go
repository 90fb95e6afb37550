// Package poller drives the watch loop: log in, seed, then poll the course
// table until the runtime budget runs out.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gradewatch/internal/components/assert"
	"gradewatch/internal/components/retry"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/course"
	"gradewatch/internal/reconcile"
	"gradewatch/internal/state"
	"gradewatch/internal/watcherr"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_poller_bootstrap = "poller.bootstrap"
	report_poller_cycle     = "poller.cycle"
	report_poller_pending   = "poller.pending"
	report_poller_deliver   = "poller.deliver"
	report_poller_save      = "poller.save"
	report_poller_load      = "poller.load"
)

var tracer = otel.Tracer("gradewatch.internal.poller")

// ErrBootstrap wraps anything that stops a run before polling starts.
var ErrBootstrap = errors.New("bootstrap failed")

type Phase int

const (
	Bootstrapping Phase = iota
	Polling
	Draining
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Bootstrapping:
		return "bootstrapping"
	case Polling:
		return "polling"
	case Draining:
		return "draining"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Session is the authenticated page source, see portal.Session.
type Session interface {
	Login(ctx context.Context) error
	Fetch(ctx context.Context) (string, error)
}

type Extractor interface {
	Extract(page string) ([]course.Record, error)
}

// Notifier is implemented by notify.Dispatcher.
type Notifier interface {
	Deliver(ctx context.Context, event course.PublicationEvent) bool
	Alert(ctx context.Context, text string) bool
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration)

func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type Options struct {
	PollInterval time.Duration
	MaxRuntime   time.Duration
	ErrorBackoff time.Duration
	// Retry bounds fetch+extract attempts within one cycle.
	Retry retry.Policy
	// RunID tags this run's logs, a random uuid when empty.
	RunID string
	// Sleep defaults to a timer that stops early on cancellation.
	Sleep Sleeper
}

type Poller struct {
	session   Session
	extractor Extractor
	store     state.Store
	notifier  Notifier
	opts      Options
	tel       telemetry.API

	mu    sync.Mutex
	phase Phase

	extractionStreak int
}

func New(
	session Session,
	extractor Extractor,
	store state.Store,
	notifier Notifier,
	opts Options,
	tel telemetry.API,
) *Poller {
	assert.NotNil(session)
	assert.NotNil(extractor)
	assert.NotNil(store)
	assert.NotNil(notifier)
	assert.NotNil(tel)
	assert.Positive("poll interval", opts.PollInterval)
	assert.Positive("max runtime", opts.MaxRuntime)

	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	if opts.Retry.Attempts < 1 {
		opts.Retry = retry.Default
	}

	return &Poller{
		session:   session,
		extractor: extractor,
		store:     store,
		notifier:  notifier,
		opts:      opts,
		tel:       telemetry.NewScopedAPI("poller", tel),
		phase:     Bootstrapping,
	}
}

func (p *Poller) State() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

func (p *Poller) RunID() string {
	return p.opts.RunID
}

func (p *Poller) setPhase(phase Phase) {
	p.mu.Lock()
	p.phase = phase
	p.mu.Unlock()
	p.tel.ReportDebug("phase", "phase", phase.String(), "run_id", p.opts.RunID)
}

// Run bootstraps and polls until the runtime budget elapses or ctx is
// cancelled, then saves once more and returns nil. Only bootstrap failures
// are returned, wrapped in ErrBootstrap.
//
// The budget is only checked between cycles, a cycle that has started runs
// to completion.
func (p *Poller) Run(ctx context.Context) error {
	budget, cancel := context.WithTimeout(ctx, p.opts.MaxRuntime)
	defer cancel()
	// cycles are never cut short, only the waits between them are
	work := context.WithoutCancel(ctx)

	p.setPhase(Bootstrapping)
	tracked, err := p.bootstrap(work)
	if err != nil {
		p.setPhase(Stopped)
		return err
	}

	p.setPhase(Polling)
	for budget.Err() == nil {
		wait := p.opts.PollInterval
		next, err := p.cycle(work, tracked)
		if err != nil {
			wait = p.opts.ErrorBackoff
		} else {
			tracked = next
		}
		if budget.Err() != nil {
			break
		}
		p.opts.Sleep(budget, wait)
	}

	p.setPhase(Draining)
	reason := "runtime budget exhausted"
	if ctx.Err() != nil {
		reason = "cancelled"
	}
	p.tel.ReportDebug("draining", "reason", reason, "pending", len(tracked.Pending))
	p.save(work, tracked)

	p.setPhase(Stopped)
	return nil
}

func (p *Poller) bootstrap(ctx context.Context) (course.TrackedState, error) {
	ctx, span := tracer.Start(ctx, "bootstrap")
	defer span.End()

	fail := func(err error) (course.TrackedState, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bootstrap failed")
		p.tel.ReportBroken(report_poller_bootstrap, err)
		return course.TrackedState{}, fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	err := p.session.Login(ctx)
	if err != nil {
		p.notifier.Alert(ctx, fmt.Sprintf("Login to the portal failed, gradewatch is not running: %v", err))
		return fail(err)
	}

	tracked, err := p.store.Load(ctx)
	if err != nil {
		p.tel.ReportWarning(report_poller_load, "starting from an empty state", err)
		tracked = course.TrackedState{}
	}

	if len(tracked.Pending) == 0 {
		records, err := p.fetchExtract(ctx)
		if err != nil {
			p.notifier.Alert(ctx, fmt.Sprintf("Could not read the course table to seed tracking: %v", err))
			return fail(err)
		}
		tracked.Pending = reconcile.Seed(records, tracked.Notified)
		p.tel.ReportDebug("seeded pending courses", "count", len(tracked.Pending))
		p.save(ctx, tracked)
	}

	span.SetAttributes(
		attribute.Int("pending", len(tracked.Pending)),
		attribute.Int("notified", len(tracked.Notified)),
	)
	p.tel.ReportCount(report_poller_pending, int64(len(tracked.Pending)))
	return tracked, nil
}

// fetchExtract retries transient fetch failures and extraction failures
// under the retry policy. A failed re-login is final, the session already
// retried it.
func (p *Poller) fetchExtract(ctx context.Context) ([]course.Record, error) {
	return retry.Value(ctx, p.opts.Retry, func(ctx context.Context) ([]course.Record, error) {
		page, err := p.session.Fetch(ctx)
		if err != nil {
			if !watcherr.Retryable(err) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		records, err := p.extractor.Extract(page)
		if err != nil && !watcherr.Retryable(err) {
			return nil, retry.Permanent(err)
		}
		return records, err
	}, func(attempt int, err error) {
		p.tel.ReportWarning(report_poller_cycle, fmt.Errorf("fetch attempt %d: %w", attempt, err))
	})
}

// cycle returns the state to carry into the next cycle. On error nothing
// was delivered and the previous state stands.
func (p *Poller) cycle(ctx context.Context, tracked course.TrackedState) (course.TrackedState, error) {
	ctx, span := tracer.Start(ctx, "cycle")
	defer span.End()

	records, err := p.fetchExtract(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		p.tel.ReportWarning(report_poller_cycle, err)
		if errors.Is(err, watcherr.ErrExtraction) {
			p.extractionStreak++
			if p.extractionStreak == 1 {
				p.notifier.Alert(ctx, fmt.Sprintf("The course table could not be read after %d attempts: %v", p.opts.Retry.Attempts, err))
			}
		}
		return tracked, err
	}
	p.extractionStreak = 0

	result := reconcile.Reconcile(records, tracked)
	next := tracked.Clone()
	next.Pending = result.NextPending

	delivered := 0
	for _, event := range result.Events {
		if !p.notifier.Deliver(ctx, event) {
			p.tel.ReportWarning(report_poller_deliver, "not delivered, retrying next cycle", event.Key.String())
			continue
		}
		next.Commit(event.Key)
		delivered++
		// persist each commit before the next send
		p.save(ctx, next)
	}

	p.save(ctx, next)

	span.SetAttributes(
		attribute.Int("events", len(result.Events)),
		attribute.Int("delivered", delivered),
		attribute.Int("pending", len(next.Pending)),
	)
	p.tel.ReportCount(report_poller_pending, int64(len(next.Pending)))
	return next, nil
}

// save reports failures and carries on, the in-memory state stays
// authoritative until the next save.
func (p *Poller) save(ctx context.Context, tracked course.TrackedState) {
	err := p.store.Save(ctx, tracked)
	if err != nil {
		p.tel.ReportBroken(report_poller_save, err)
	}
}
