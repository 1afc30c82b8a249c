package sync

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"studio/backend/internal/calendar"
	"studio/backend/internal/domain"
	"studio/backend/internal/store"
)

// DefaultMarker is the summary substring that identifies calendar events
// belonging to this system. Events without it are never imported.
const DefaultMarker = "Studio Booking"

// Reconciler pulls external calendar events for a forward window and
// reconciles them against the booking store: cancellations made on the
// calendar side are applied locally, and marker-matching events unknown to
// the store are imported as confirmed bookings.
//
// Re-running over an unchanged window is a no-op.
type Reconciler struct {
	repo        store.BookingRepository
	cal         calendar.Client
	loc         *time.Location
	monthsAhead int
	marker      string
	log         *slog.Logger

	now func() time.Time
}

func NewReconciler(repo store.BookingRepository, cal calendar.Client, loc *time.Location, monthsAhead int, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	if monthsAhead < 0 {
		monthsAhead = 0
	}
	return &Reconciler{
		repo:        repo,
		cal:         cal,
		loc:         loc,
		monthsAhead: monthsAhead,
		marker:      DefaultMarker,
		log:         log.With(slog.String("component", "service.sync")),
		now:         time.Now,
	}
}

type Summary struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

// Run performs one reconciliation pass over [today, end of the month
// monthsAhead months out]. A failure listing events aborts the run; a
// failure on one event is logged, counted, and does not stop the batch.
func (r *Reconciler) Run(ctx context.Context) (Summary, error) {
	now := r.now().In(r.loc)
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.loc)
	to := endOfMonth(from.AddDate(0, r.monthsAhead, 0))

	log := r.log.With(
		slog.String("window_start", from.Format(domain.DateLayout)),
		slog.String("window_end", to.Format(domain.DateLayout)),
	)
	log.Info("reconciliation started")

	events, err := r.cal.ListEvents(ctx, from, to)
	if err != nil {
		log.Error("event listing failed", slog.Any("err", err))
		return Summary{}, err
	}

	var sum Summary
	for _, ev := range events {
		if err := r.applyEvent(ctx, ev, &sum); err != nil {
			sum.Errors++
			log.Warn("event reconciliation failed",
				slog.String("external_event_id", ev.ID),
				slog.Any("err", err),
			)
		}
	}

	log.Info("reconciliation finished",
		slog.Int("created", sum.Created),
		slog.Int("updated", sum.Updated),
		slog.Int("skipped", sum.Skipped),
		slog.Int("errors", sum.Errors),
	)
	return sum, nil
}

func (r *Reconciler) applyEvent(ctx context.Context, ev calendar.Event, sum *Summary) error {
	existing, err := r.repo.FindByExternalEventID(ctx, ev.ID)
	switch {
	case err == nil:
		// Known mirror: the only mutation applied is an externally made
		// cancellation.
		if ev.Status != calendar.EventStatusCancelled || existing.Status != domain.BookingStatusConfirmed {
			return nil
		}
		if _, err := r.repo.MarkCancelled(ctx, existing.ID); err != nil {
			return err
		}
		sum.Updated++
		r.log.Info("booking cancelled from external calendar",
			slog.String("booking_id", existing.ID.String()),
			slog.String("external_event_id", ev.ID),
		)
		return nil
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	if !strings.Contains(ev.Summary, r.marker) {
		sum.Skipped++
		return nil
	}
	if ev.Status == calendar.EventStatusCancelled {
		// Nothing local to cancel and nothing to import.
		sum.Skipped++
		return nil
	}

	start := ev.Start.In(r.loc)
	date := start.Format(domain.DateLayout)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	slotStart := start.Format(domain.TimeLayout)
	slotEnd := ev.End.In(r.loc).Format(domain.TimeLayout)

	created := false
	err = r.repo.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		if _, err := tx.FindBySlot(ctx, day, slotStart); err == nil {
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		b, err := tx.CreateBooking(ctx, domain.Booking{
			Date:            day,
			SlotStart:       slotStart,
			SlotEnd:         slotEnd,
			Status:          domain.BookingStatusConfirmed,
			ExternalEventID: ev.ID,
		})
		if err != nil {
			return err
		}
		created = true
		r.log.Info("booking imported from external calendar",
			slog.String("booking_id", b.ID.String()),
			slog.String("date", date),
			slog.String("slot_start", slotStart),
			slog.String("external_event_id", ev.ID),
		)
		return nil
	})
	if err != nil {
		// A concurrent writer taking the slot first is not a batch failure.
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return err
	}
	if created {
		sum.Created++
	}
	return nil
}

func endOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNext.Add(-time.Second)
}
