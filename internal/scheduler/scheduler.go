package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/militrik/MKRschedule-bot/internal/notify"
	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// Options carries the timing knobs the service schedules by.
type Options struct {
	RefreshInterval   time.Duration
	ReconcileInterval time.Duration
	RefreshJitter     time.Duration
	ScanInterval      time.Duration
	RefreshTimeout    time.Duration

	EventRetentionDays        int
	NotificationRetentionDays int
	CleanupHour               int
	CleanupMinute             int
}

// EntityStatus is one scheduled entity's state, exposed via Snapshot.
type EntityStatus struct {
	Kind     timetable.EntityKind `json:"kind"`
	EntityID int64                `json:"entity_id"`
	NextRun  time.Time            `json:"next_run"`
	Failures int                  `json:"failures"`
}

// Snapshot is the service state reported on the ops surface.
type Snapshot struct {
	Entities []EntityStatus `json:"entities"`
	LastScan time.Time      `json:"last_scan"`
}

type entityJob struct {
	entry    cron.EntryID
	failures int
}

// Service owns the refresh cron, the notification scan tick, and the
// nightly retention sweep. Per-entity refresh jobs are created at startup
// with staggered first firings and kept in step with the subscription set
// by a periodic reconcile pass.
type Service struct {
	cron       *cron.Cron
	refreshers []Refresher
	scanner    *notify.Scanner
	store      Store
	clock      Clock
	opts       Options
	logger     *slog.Logger

	mu   sync.Mutex
	jobs map[timetable.EntityKind]map[int64]*entityJob
}

// New wires the service; Start begins scheduling.
func New(store Store, refreshers []Refresher, scanner *notify.Scanner, clk Clock, opts Options, logger *slog.Logger) *Service {
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = 2 * time.Minute
	}
	s := &Service{
		refreshers: refreshers,
		scanner:    scanner,
		store:      store,
		clock:      clk,
		opts:       opts,
		logger:     logger,
		jobs:       make(map[timetable.EntityKind]map[int64]*entityJob),
	}
	s.cron = cron.New(
		cron.WithLocation(clk.Location()),
		cron.WithChain(
			cron.SkipIfStillRunning(cronLogger{logger}),
			cron.Recover(cronLogger{logger}),
		),
	)
	for _, r := range refreshers {
		s.jobs[r.Kind()] = make(map[int64]*entityJob)
	}
	return s
}

// Start schedules the recurring jobs and seeds per-entity refreshes in the
// background so a slow subscription query cannot delay process startup.
func (s *Service) Start(ctx context.Context) error {
	if s.opts.ReconcileInterval > 0 {
		s.cron.Schedule(cron.Every(s.opts.ReconcileInterval), cron.FuncJob(func() {
			s.reconcileJobs(ctx)
		}))
	}
	if s.scanner != nil && s.opts.ScanInterval > 0 {
		s.cron.Schedule(cron.Every(s.opts.ScanInterval), cron.FuncJob(func() {
			s.runScan(ctx)
		}))
	}
	if s.opts.CleanupHour >= 0 {
		spec := cronSpecAt(s.opts.CleanupHour, s.opts.CleanupMinute)
		if _, err := s.cron.AddFunc(spec, func() { s.runCleanup(ctx) }); err != nil {
			return err
		}
	}
	s.cron.Start()

	go s.initJobs(ctx)
	return nil
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot reports the currently scheduled entities and the scan anchor.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap Snapshot
	for kind, byID := range s.jobs {
		for id, job := range byID {
			snap.Entities = append(snap.Entities, EntityStatus{
				Kind:     kind,
				EntityID: id,
				NextRun:  s.cron.Entry(job.entry).Next,
				Failures: job.failures,
			})
		}
	}
	slices.SortFunc(snap.Entities, func(a, b EntityStatus) int {
		if a.Kind != b.Kind {
			if a.Kind < b.Kind {
				return -1
			}
			return 1
		}
		switch {
		case a.EntityID < b.EntityID:
			return -1
		case a.EntityID > b.EntityID:
			return 1
		}
		return 0
	})
	if s.scanner != nil {
		snap.LastScan = s.scanner.LastScan()
	}
	return snap
}

// --------------------------------------------------------------------------
// Per-entity refresh jobs
// --------------------------------------------------------------------------

// initJobs spreads every subscribed entity's first refresh evenly across
// one full interval so a restart does not burst the upstream site.
func (s *Service) initJobs(ctx context.Context) {
	now := s.clock.Now()
	for _, r := range s.refreshers {
		ids, err := r.Subscribed(ctx)
		if err != nil {
			s.logger.Error("list subscribed entities", "kind", r.Kind(), "error", err)
			continue
		}
		slices.Sort(ids)
		offsets := staggerOffsets(len(ids), s.opts.RefreshInterval)
		for i, id := range ids {
			first := now.Add(offsets[i] + randomJitter(s.opts.RefreshJitter))
			s.scheduleEntity(ctx, r, id, first)
		}
		s.logger.Info("scheduled entity refreshes",
			"kind", r.Kind(), "count", len(ids), "interval", s.opts.RefreshInterval)
	}
}

// scheduleEntity registers (or replaces) the refresh job for one entity.
func (s *Service) scheduleEntity(ctx context.Context, r Refresher, id int64, first time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.jobs[r.Kind()][id]; ok {
		s.cron.Remove(old.entry)
	}
	sched := &staggerSchedule{
		interval:  s.opts.RefreshInterval,
		jitterMax: s.opts.RefreshJitter,
		first:     first,
	}
	kind, entityID := r.Kind(), id
	entry := s.cron.Schedule(sched, cron.FuncJob(func() {
		s.runRefresh(ctx, r, entityID)
	}))
	s.jobs[kind][id] = &entityJob{entry: entry}
}

func (s *Service) removeEntity(kind timetable.EntityKind, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[kind][id]
	if !ok {
		return
	}
	s.cron.Remove(job.entry)
	delete(s.jobs[kind], id)
}

// reconcileJobs diffs the live subscription set against the scheduled set.
// New entities start at a random point inside the interval; entities with
// no remaining subscribers are dropped.
func (s *Service) reconcileJobs(ctx context.Context) {
	for _, r := range s.refreshers {
		ids, err := r.Subscribed(ctx)
		if err != nil {
			s.logger.Error("reconcile subscriptions", "kind", r.Kind(), "error", err)
			continue
		}
		live := make(map[int64]bool, len(ids))
		for _, id := range ids {
			live[id] = true
		}

		s.mu.Lock()
		scheduled := make([]int64, 0, len(s.jobs[r.Kind()]))
		for id := range s.jobs[r.Kind()] {
			scheduled = append(scheduled, id)
		}
		s.mu.Unlock()

		for _, id := range scheduled {
			if !live[id] {
				s.removeEntity(r.Kind(), id)
				s.logger.Info("unscheduled entity", "kind", r.Kind(), "entity_id", id)
			}
		}

		known := make(map[int64]bool, len(scheduled))
		for _, id := range scheduled {
			known[id] = true
		}
		for _, id := range ids {
			if known[id] {
				continue
			}
			first := s.clock.Now().
				Add(randomOffset(s.opts.RefreshInterval)).
				Add(randomJitter(s.opts.RefreshJitter))
			s.scheduleEntity(ctx, r, id, first)
			s.logger.Info("scheduled new entity", "kind", r.Kind(), "entity_id", id, "first_run", first)
		}
	}
}

// runRefresh executes one entity refresh. Failures are logged and counted
// but never abort the schedule; the next firing retries naturally.
func (s *Service) runRefresh(ctx context.Context, r Refresher, id int64) {
	rctx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
	defer cancel()

	ch, err := r.Refresh(rctx, id)
	if err != nil {
		s.mu.Lock()
		if job, ok := s.jobs[r.Kind()][id]; ok {
			job.failures++
		}
		s.mu.Unlock()
		s.logger.Warn("refresh failed", "kind", r.Kind(), "entity_id", id, "error", err)
		return
	}

	s.mu.Lock()
	if job, ok := s.jobs[r.Kind()][id]; ok {
		job.failures = 0
	}
	s.mu.Unlock()

	if !ch.Empty() {
		s.logger.Info("refresh applied changes", "kind", r.Kind(), "entity_id", id, "changes", ch.Summary())
	}
}

// --------------------------------------------------------------------------
// Scan and retention jobs
// --------------------------------------------------------------------------

func (s *Service) runScan(ctx context.Context) {
	res := s.scanner.Scan(ctx)
	if res.Sent > 0 || res.Failed > 0 || len(res.Errors) > 0 {
		s.logger.Info("notification scan", "result", res.Summary())
	} else {
		s.logger.Debug("notification scan", "result", res.Summary())
	}
}

func (s *Service) runCleanup(ctx context.Context) {
	today := s.clock.Today()
	eventCutoff := today.AddDate(0, 0, -s.opts.EventRetentionDays)
	notifCutoff := s.clock.Now().AddDate(0, 0, -s.opts.NotificationRetentionDays)

	events, logs, err := s.store.CleanupOld(ctx, eventCutoff, notifCutoff)
	if err != nil {
		s.logger.Error("retention cleanup", "error", err)
		return
	}
	s.logger.Info("retention cleanup",
		"events_deleted", events, "logs_deleted", logs,
		"event_cutoff", eventCutoff.Format("2006-01-02"))
}

func cronSpecAt(hour, minute int) string {
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// cronLogger adapts cron's logging to slog. Routine chatter goes to Debug;
// panics recovered by the chain surface as errors.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...any)             { c.l.Debug(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...any) { c.l.Error(msg, append(kv, "error", err)...) }
