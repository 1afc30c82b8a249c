package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"studio/backend/internal/calendar"
	"studio/backend/internal/domain"
	"studio/backend/internal/store"
)

// Service answers availability queries and orchestrates reservation
// creation and cancellation against the store and the external calendar.
//
// "Today" is resolved with the injected clock in the configured location,
// never with ambient server time.
type Service struct {
	repo  store.BookingRepository
	cal   calendar.Client
	slots domain.SlotConfig
	loc   *time.Location
	log   *slog.Logger

	now func() time.Time
}

func NewService(repo store.BookingRepository, cal calendar.Client, slots domain.SlotConfig, loc *time.Location, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:  repo,
		cal:   cal,
		slots: slots,
		loc:   loc,
		log:   log.With(slog.String("component", "service.bookings")),
		now:   time.Now,
	}
}

type SlotAvailability struct {
	Start  string
	End    string
	Booked bool
}

type Availability struct {
	Date  string
	Slots []SlotAvailability
}

// Availability enumerates the catalog slots for date and marks the ones
// covered by a confirmed booking with the same slot start. Cancelled rows
// never mark a slot.
func (s *Service) Availability(ctx context.Context, date string) (Availability, error) {
	day, err := parseDate(date)
	if err != nil {
		return Availability{}, err
	}

	slots, err := s.slots.Slots()
	if err != nil {
		return Availability{}, err
	}

	booked, err := s.repo.ListConfirmedByDate(ctx, day)
	if err != nil {
		return Availability{}, err
	}

	bookedStarts := make(map[string]struct{}, len(booked))
	for _, b := range booked {
		bookedStarts[b.SlotStart] = struct{}{}
	}

	out := Availability{Date: date, Slots: make([]SlotAvailability, 0, len(slots))}
	for _, slot := range slots {
		_, taken := bookedStarts[slot.Start]
		out.Slots = append(out.Slots, SlotAvailability{Start: slot.Start, End: slot.End, Booked: taken})
	}
	return out, nil
}

type PeriodBooking struct {
	ID        uuid.UUID
	SlotStart string
	SlotEnd   string
}

type PeriodDay struct {
	Date     string
	Bookings []PeriodBooking
}

type PeriodSummary struct {
	StartDate string
	EndDate   string
	Days      int
	Dates     []PeriodDay
}

// BookingsForPeriod lists confirmed bookings per date over
// [startDate, startDate+days], one entry per date even when empty, in
// chronological order.
func (s *Service) BookingsForPeriod(ctx context.Context, startDate string, days int) (PeriodSummary, error) {
	start, err := parseDate(startDate)
	if err != nil {
		return PeriodSummary{}, err
	}
	if days < 1 {
		return PeriodSummary{}, NewValidationError("days must be at least 1")
	}

	end := start.AddDate(0, 0, days)

	rows, err := s.repo.ListConfirmedInRange(ctx, start, end)
	if err != nil {
		return PeriodSummary{}, err
	}

	byDate := make(map[string][]PeriodBooking, len(rows))
	for _, b := range rows {
		key := b.Date.Format(domain.DateLayout)
		byDate[key] = append(byDate[key], PeriodBooking{
			ID:        b.ID,
			SlotStart: b.SlotStart,
			SlotEnd:   b.SlotEnd,
		})
	}

	summary := PeriodSummary{
		StartDate: start.Format(domain.DateLayout),
		EndDate:   end.Format(domain.DateLayout),
		Days:      days,
		Dates:     make([]PeriodDay, 0, days+1),
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(domain.DateLayout)
		bs := byDate[key]
		if bs == nil {
			bs = []PeriodBooking{}
		}
		summary.Dates = append(summary.Dates, PeriodDay{Date: key, Bookings: bs})
	}
	return summary, nil
}

// Create reserves the slot and mirrors it on the external calendar inside a
// single store transaction; a calendar failure rolls back the local insert,
// so a calendar outage blocks new bookings.
func (s *Service) Create(ctx context.Context, date, slotStart string) (domain.Booking, error) {
	day, err := parseDate(date)
	if err != nil {
		return domain.Booking{}, err
	}

	today := dateIn(s.now(), s.loc)
	if day.Before(today) {
		return domain.Booking{}, &PastDateError{Date: date}
	}

	slots, err := s.slots.Slots()
	if err != nil {
		return domain.Booking{}, err
	}
	slotEnd := ""
	for _, slot := range slots {
		if slot.Start == slotStart {
			slotEnd = slot.End
			break
		}
	}
	if slotEnd == "" {
		return domain.Booking{}, NewValidationError(fmt.Sprintf("slot %q is not a bookable slot", slotStart))
	}

	booked, err := s.repo.ListConfirmedByDate(ctx, day)
	if err != nil {
		return domain.Booking{}, err
	}
	for _, b := range booked {
		if b.SlotStart == slotStart {
			return domain.Booking{}, &SlotConflictError{Date: date, Slot: slotStart}
		}
	}

	var out domain.Booking
	err = s.repo.InTransaction(ctx, func(ctx context.Context, tx store.BookingTx) error {
		b, err := tx.CreateBooking(ctx, domain.Booking{
			Date:      day,
			SlotStart: slotStart,
			SlotEnd:   slotEnd,
			Status:    domain.BookingStatusConfirmed,
		})
		if err != nil {
			return err
		}

		eventID, err := s.cal.CreateEvent(ctx, date, slotStart, slotEnd, fmt.Sprintf("Studio Booking #%s", b.ID))
		if err != nil {
			return err
		}
		if err := tx.SetExternalEventID(ctx, b.ID, eventID); err != nil {
			return err
		}

		b.ExternalEventID = eventID
		out = b
		return nil
	})
	if err != nil {
		// The unique index is the final arbiter for races the availability
		// check above cannot see.
		if errors.Is(err, store.ErrConflict) {
			return domain.Booking{}, &SlotConflictError{Date: date, Slot: slotStart}
		}
		return domain.Booking{}, err
	}

	s.log.Info("booking created",
		slog.String("booking_id", out.ID.String()),
		slog.String("date", date),
		slog.String("slot_start", slotStart),
		slog.String("external_event_id", out.ExternalEventID),
	)
	return out, nil
}

// Cancel flips the booking to cancelled, then tries to delete the mirrored
// external event. The local cancellation is authoritative: a calendar
// failure here is logged and swallowed. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if b.Status == domain.BookingStatusCancelled {
		return b, nil
	}

	cancelled, err := s.repo.MarkCancelled(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}

	if cancelled.ExternalEventID != "" {
		if err := s.cal.DeleteEvent(ctx, cancelled.ExternalEventID); err != nil {
			s.log.Warn("external event delete failed",
				slog.String("booking_id", id.String()),
				slog.String("external_event_id", cancelled.ExternalEventID),
				slog.Any("err", err),
			)
		}
	}

	s.log.Info("booking cancelled", slog.String("booking_id", id.String()))
	return cancelled, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, NewValidationError(fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s))
	}
	return t, nil
}

func dateIn(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
