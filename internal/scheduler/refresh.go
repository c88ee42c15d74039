package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/militrik/MKRschedule-bot/internal/reconcile"
	"github.com/militrik/MKRschedule-bot/internal/timetable"
)

// Source fetches and extracts the external timetable for one entity.
type Source interface {
	FetchGroupEvents(ctx context.Context, g *timetable.Group) ([]timetable.Event, error)
	FetchTeacherEvents(ctx context.Context, t *timetable.Teacher) ([]timetable.Event, error)
}

// Store is the slice of the persistence layer the scheduler consumes.
type Store interface {
	DistinctEntityIDs(ctx context.Context, kind timetable.EntityKind) ([]int64, error)
	GroupByID(ctx context.Context, id int64) (*timetable.Group, error)
	TeacherByID(ctx context.Context, id int64) (*timetable.Teacher, error)
	EventsForEntitySince(ctx context.Context, kind timetable.EntityKind, entityID int64, cutoff time.Time) ([]timetable.Event, error)
	ApplySync(ctx context.Context, kind timetable.EntityKind, entityID int64, ch reconcile.Changes) error
	CleanupOld(ctx context.Context, eventCutoff, notifCutoff time.Time) (int64, int64, error)
}

// Clock supplies local-zone time; satisfied by internal/clock.Clock.
type Clock interface {
	Now() time.Time
	Today() time.Time
	Location() *time.Location
}

// Refresher runs one entity kind's fetch→extract→reconcile→commit cycle.
// The two kinds differ only in how they fetch and which owner reference
// they stamp; the scheduling mechanics are shared.
type Refresher interface {
	Kind() timetable.EntityKind
	Subscribed(ctx context.Context) ([]int64, error)
	Refresh(ctx context.Context, entityID int64) (reconcile.Changes, error)
}

// reconcileHorizon keeps yesterday's rows in scope so a fetch spanning the
// current week cannot resurrect or delete anything older.
const reconcileHorizonDays = 1

// --------------------------------------------------------------------------
// Group refresher
// --------------------------------------------------------------------------

type groupRefresher struct {
	store  Store
	source Source
	clock  Clock
}

// NewGroupRefresher builds the student-group refresher.
func NewGroupRefresher(store Store, source Source, clk Clock) Refresher {
	return &groupRefresher{store: store, source: source, clock: clk}
}

func (r *groupRefresher) Kind() timetable.EntityKind { return timetable.KindGroup }

func (r *groupRefresher) Subscribed(ctx context.Context) ([]int64, error) {
	return r.store.DistinctEntityIDs(ctx, timetable.KindGroup)
}

func (r *groupRefresher) Refresh(ctx context.Context, entityID int64) (reconcile.Changes, error) {
	g, err := r.store.GroupByID(ctx, entityID)
	if err != nil {
		return reconcile.Changes{}, err
	}
	fetched, err := r.source.FetchGroupEvents(ctx, g)
	if err != nil {
		return reconcile.Changes{}, fmt.Errorf("fetch group %d: %w", entityID, err)
	}
	return applyFetched(ctx, r.store, r.clock, timetable.KindGroup, entityID, fetched)
}

// --------------------------------------------------------------------------
// Teacher refresher
// --------------------------------------------------------------------------

type teacherRefresher struct {
	store  Store
	source Source
	clock  Clock
}

// NewTeacherRefresher builds the teacher refresher.
func NewTeacherRefresher(store Store, source Source, clk Clock) Refresher {
	return &teacherRefresher{store: store, source: source, clock: clk}
}

func (r *teacherRefresher) Kind() timetable.EntityKind { return timetable.KindTeacher }

func (r *teacherRefresher) Subscribed(ctx context.Context) ([]int64, error) {
	return r.store.DistinctEntityIDs(ctx, timetable.KindTeacher)
}

func (r *teacherRefresher) Refresh(ctx context.Context, entityID int64) (reconcile.Changes, error) {
	t, err := r.store.TeacherByID(ctx, entityID)
	if err != nil {
		return reconcile.Changes{}, err
	}
	fetched, err := r.source.FetchTeacherEvents(ctx, t)
	if err != nil {
		return reconcile.Changes{}, fmt.Errorf("fetch teacher %d: %w", entityID, err)
	}
	return applyFetched(ctx, r.store, r.clock, timetable.KindTeacher, entityID, fetched)
}

// applyFetched diffs the fetch against the stored horizon and commits the
// batch as one unit of work.
func applyFetched(ctx context.Context, store Store, clk Clock, kind timetable.EntityKind, entityID int64, fetched []timetable.Event) (reconcile.Changes, error) {
	reconcile.AttachOwner(fetched, kind, entityID)

	cutoff := clk.Today().AddDate(0, 0, -reconcileHorizonDays)
	stored, err := store.EventsForEntitySince(ctx, kind, entityID, cutoff)
	if err != nil {
		return reconcile.Changes{}, err
	}

	ch := reconcile.Diff(stored, fetched)
	if err := store.ApplySync(ctx, kind, entityID, ch); err != nil {
		return reconcile.Changes{}, err
	}
	return ch, nil
}
