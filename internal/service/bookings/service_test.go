package bookings

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"studio/backend/internal/calendar"
	"studio/backend/internal/domain"
	"studio/backend/internal/store"
)

type fakeTx struct {
	createBookingFn      func(ctx context.Context, b domain.Booking) (domain.Booking, error)
	setExternalEventIDFn func(ctx context.Context, id uuid.UUID, eventID string) error
}

func (f *fakeTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if f.createBookingFn == nil {
		panic("CreateBooking not configured")
	}
	return f.createBookingFn(ctx, b)
}

func (f *fakeTx) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	panic("not used")
}

func (f *fakeTx) FindByExternalEventID(ctx context.Context, eventID string) (domain.Booking, error) {
	panic("not used")
}

func (f *fakeTx) FindBySlot(ctx context.Context, date time.Time, slotStart string) (domain.Booking, error) {
	panic("not used")
}

func (f *fakeTx) SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	if f.setExternalEventIDFn == nil {
		panic("SetExternalEventID not configured")
	}
	return f.setExternalEventIDFn(ctx, id, eventID)
}

func (f *fakeTx) MarkCancelled(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	panic("not used")
}

type fakeRepo struct {
	tx *fakeTx

	getBookingFn            func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	listConfirmedByDateFn   func(ctx context.Context, date time.Time) ([]domain.Booking, error)
	listConfirmedInRangeFn  func(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
	findByExternalEventIDFn func(ctx context.Context, eventID string) (domain.Booking, error)
	markCancelledFn         func(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

func (f *fakeRepo) InTransaction(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if f.tx == nil {
		panic("InTransaction not configured")
	}
	return fn(ctx, f.tx)
}

func (f *fakeRepo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if f.getBookingFn == nil {
		panic("GetBooking not configured")
	}
	return f.getBookingFn(ctx, id)
}

func (f *fakeRepo) ListConfirmedByDate(ctx context.Context, date time.Time) ([]domain.Booking, error) {
	if f.listConfirmedByDateFn == nil {
		panic("ListConfirmedByDate not configured")
	}
	return f.listConfirmedByDateFn(ctx, date)
}

func (f *fakeRepo) ListConfirmedInRange(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
	if f.listConfirmedInRangeFn == nil {
		panic("ListConfirmedInRange not configured")
	}
	return f.listConfirmedInRangeFn(ctx, from, to)
}

func (f *fakeRepo) FindByExternalEventID(ctx context.Context, eventID string) (domain.Booking, error) {
	if f.findByExternalEventIDFn == nil {
		panic("FindByExternalEventID not configured")
	}
	return f.findByExternalEventIDFn(ctx, eventID)
}

func (f *fakeRepo) MarkCancelled(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if f.markCancelledFn == nil {
		panic("MarkCancelled not configured")
	}
	return f.markCancelledFn(ctx, id)
}

type fakeCalendar struct {
	createEventFn func(ctx context.Context, date, startTime, endTime, title string) (string, error)
	deleteEventFn func(ctx context.Context, eventID string) error
	listEventsFn  func(ctx context.Context, from, to time.Time) ([]calendar.Event, error)
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, date, startTime, endTime, title string) (string, error) {
	if f.createEventFn == nil {
		panic("CreateEvent not configured")
	}
	return f.createEventFn(ctx, date, startTime, endTime, title)
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	if f.deleteEventFn == nil {
		panic("DeleteEvent not configured")
	}
	return f.deleteEventFn(ctx, eventID)
}

func (f *fakeCalendar) ListEvents(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	if f.listEventsFn == nil {
		panic("ListEvents not configured")
	}
	return f.listEventsFn(ctx, from, to)
}

var testSlots = domain.SlotConfig{StartTime: "09:00", EndTime: "21:00", SlotMinutes: 60}

func newTestService(repo *fakeRepo, cal *fakeCalendar) *Service {
	svc := NewService(repo, cal, testSlots, time.UTC, nil)
	svc.now = func() time.Time {
		return time.Date(2025, 5, 30, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

func TestServiceAvailability_MarksOnlyMatchingSlotStarts(t *testing.T) {
	repo := &fakeRepo{
		listConfirmedByDateFn: func(ctx context.Context, date time.Time) ([]domain.Booking, error) {
			return []domain.Booking{
				{
					ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
					Date:      date,
					SlotStart: "10:00",
					SlotEnd:   "11:00",
					Status:    domain.BookingStatusConfirmed,
				},
			}, nil
		},
	}
	svc := newTestService(repo, &fakeCalendar{})

	av, err := svc.Availability(context.Background(), "2025-06-01")
	if err != nil {
		t.Fatalf("Availability error: %v", err)
	}
	if av.Date != "2025-06-01" {
		t.Fatalf("date = %q", av.Date)
	}
	if len(av.Slots) != 12 {
		t.Fatalf("len(slots) = %d, want 12", len(av.Slots))
	}
	for _, s := range av.Slots {
		wantBooked := s.Start == "10:00"
		if s.Booked != wantBooked {
			t.Fatalf("slot %s booked = %v, want %v", s.Start, s.Booked, wantBooked)
		}
	}
	if av.Slots[0].Start != "09:00" || av.Slots[11].Start != "20:00" {
		t.Fatalf("slots not ordered: first=%s last=%s", av.Slots[0].Start, av.Slots[11].Start)
	}
}

func TestServiceAvailability_InvalidDate(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCalendar{})

	_, err := svc.Availability(context.Background(), "01-06-2025")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}

func TestServiceCreate_PastDate(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCalendar{})

	_, err := svc.Create(context.Background(), "2025-05-29", "10:00")
	var pastErr *PastDateError
	if !errors.As(err, &pastErr) {
		t.Fatalf("error type = %T, want *PastDateError", err)
	}
	if pastErr.Date != "2025-05-29" {
		t.Fatalf("date = %q", pastErr.Date)
	}
}

func TestServiceCreate_TodayIsBookable(t *testing.T) {
	created := false
	repo := &fakeRepo{
		listConfirmedByDateFn: func(ctx context.Context, date time.Time) ([]domain.Booking, error) {
			return nil, nil
		},
		tx: &fakeTx{
			createBookingFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
				created = true
				b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")
				return b, nil
			},
			setExternalEventIDFn: func(ctx context.Context, id uuid.UUID, eventID string) error {
				return nil
			},
		},
	}
	cal := &fakeCalendar{
		createEventFn: func(ctx context.Context, date, startTime, endTime, title string) (string, error) {
			return "ev-1", nil
		},
	}
	svc := newTestService(repo, cal)

	if _, err := svc.Create(context.Background(), "2025-05-30", "10:00"); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !created {
		t.Fatalf("expected booking insert")
	}
}

func TestServiceCreate_TimezoneDeterminesToday(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Fatalf("LoadLocation error: %v", err)
	}

	svc := NewService(&fakeRepo{}, &fakeCalendar{}, testSlots, loc, nil)
	// 22:30 UTC on May 30 is already May 31 in Moscow.
	svc.now = func() time.Time {
		return time.Date(2025, 5, 30, 22, 30, 0, 0, time.UTC)
	}

	_, err = svc.Create(context.Background(), "2025-05-30", "10:00")
	var pastErr *PastDateError
	if !errors.As(err, &pastErr) {
		t.Fatalf("error type = %T, want *PastDateError", err)
	}
}

func TestServiceCreate_UnknownSlotRejected(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCalendar{})

	for _, slot := range []string{"10:30", "08:00", "21:00", "abc"} {
		_, err := svc.Create(context.Background(), "2025-06-01", slot)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("slot %q: error type = %T, want *ValidationError", slot, err)
		}
	}
}

func TestServiceCreate_SlotAlreadyBooked(t *testing.T) {
	repo := &fakeRepo{
		listConfirmedByDateFn: func(ctx context.Context, date time.Time) ([]domain.Booking, error) {
			return []domain.Booking{{SlotStart: "10:00", Status: domain.BookingStatusConfirmed}}, nil
		},
	}
	svc := newTestService(repo, &fakeCalendar{})

	_, err := svc.Create(context.Background(), "2025-06-01", "10:00")
	var conflictErr *SlotConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("error type = %T, want *SlotConflictError", err)
	}
	if conflictErr.Slot != "10:00" || conflictErr.Date != "2025-06-01" {
		t.Fatalf("conflict = %+v", conflictErr)
	}
}

func TestServiceCreate_StoreConflictBecomesSlotConflict(t *testing.T) {
	repo := &fakeRepo{
		listConfirmedByDateFn: func(ctx context.Context, date time.Time) ([]domain.Booking, error) {
			return nil, nil
		},
		tx: &fakeTx{
			createBookingFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
				return domain.Booking{}, store.ErrConflict
			},
		},
	}
	svc := newTestService(repo, &fakeCalendar{})

	_, err := svc.Create(context.Background(), "2025-06-01", "10:00")
	var conflictErr *SlotConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("error type = %T, want *SlotConflictError", err)
	}
}

func TestServiceCreate_CalendarFailureRollsBack(t *testing.T) {
	externalIDSet := false
	repo := &fakeRepo{
		listConfirmedByDateFn: func(ctx context.Context, date time.Time) ([]domain.Booking, error) {
			return nil, nil
		},
		tx: &fakeTx{
			createBookingFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
				b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000003")
				return b, nil
			},
			setExternalEventIDFn: func(ctx context.Context, id uuid.UUID, eventID string) error {
				externalIDSet = true
				return nil
			},
		},
	}
	cal := &fakeCalendar{
		createEventFn: func(ctx context.Context, date, startTime, endTime, title string) (string, error) {
			return "", &calendar.Error{Op: "create", Err: errors.New("api unavailable")}
		},
	}
	svc := newTestService(repo, cal)

	_, err := svc.Create(context.Background(), "2025-06-01", "10:00")
	var calErr *calendar.Error
	if !errors.As(err, &calErr) {
		t.Fatalf("error type = %T, want *calendar.Error", err)
	}
	if externalIDSet {
		t.Fatalf("external event id must not be written after calendar failure")
	}
}

func TestServiceCreate_Success(t *testing.T) {
	var inserted domain.Booking
	var eventTitle string
	var storedEventID string

	repo := &fakeRepo{
		listConfirmedByDateFn: func(ctx context.Context, date time.Time) ([]domain.Booking, error) {
			return nil, nil
		},
		tx: &fakeTx{
			createBookingFn: func(ctx context.Context, b domain.Booking) (domain.Booking, error) {
				b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000004")
				inserted = b
				return b, nil
			},
			setExternalEventIDFn: func(ctx context.Context, id uuid.UUID, eventID string) error {
				storedEventID = eventID
				return nil
			},
		},
	}
	cal := &fakeCalendar{
		createEventFn: func(ctx context.Context, date, startTime, endTime, title string) (string, error) {
			eventTitle = title
			if date != "2025-06-01" || startTime != "10:00" || endTime != "11:00" {
				t.Errorf("event args = %s %s %s", date, startTime, endTime)
			}
			return "ev-42", nil
		},
	}
	svc := newTestService(repo, cal)

	b, err := svc.Create(context.Background(), "2025-06-01", "10:00")
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if inserted.Status != domain.BookingStatusConfirmed {
		t.Fatalf("status = %q, want confirmed", inserted.Status)
	}
	if inserted.SlotEnd != "11:00" {
		t.Fatalf("slot_end = %q, want 11:00", inserted.SlotEnd)
	}
	if storedEventID != "ev-42" || b.ExternalEventID != "ev-42" {
		t.Fatalf("external event id = %q / %q, want ev-42", storedEventID, b.ExternalEventID)
	}
	if !strings.Contains(eventTitle, "Studio Booking #") || !strings.Contains(eventTitle, b.ID.String()) {
		t.Fatalf("event title = %q", eventTitle)
	}
}

func TestServiceCancel_NotFound(t *testing.T) {
	repo := &fakeRepo{
		getBookingFn: func(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
			return domain.Booking{}, store.ErrNotFound
		},
	}
	svc := newTestService(repo, &fakeCalendar{})

	_, err := svc.Cancel(context.Background(), uuid.MustParse("00000000-0000-0000-0000-000000000005"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, store.ErrNotFound)
	}
}

func TestServiceCancel_AlreadyCancelledIsIdempotent(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000006")
	repo := &fakeRepo{
		getBookingFn: func(ctx context.Context, gotID uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: gotID, Status: domain.BookingStatusCancelled}, nil
		},
	}
	svc := newTestService(repo, &fakeCalendar{})

	b, err := svc.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if b.Status != domain.BookingStatusCancelled {
		t.Fatalf("status = %q, want cancelled", b.Status)
	}
}

func TestServiceCancel_ExternalDeleteFailureIsSwallowed(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-000000000007")
	repo := &fakeRepo{
		getBookingFn: func(ctx context.Context, gotID uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: gotID, Status: domain.BookingStatusConfirmed, ExternalEventID: "ev-7"}, nil
		},
		markCancelledFn: func(ctx context.Context, gotID uuid.UUID) (domain.Booking, error) {
			return domain.Booking{ID: gotID, Status: domain.BookingStatusCancelled, ExternalEventID: "ev-7"}, nil
		},
	}
	deleted := ""
	cal := &fakeCalendar{
		deleteEventFn: func(ctx context.Context, eventID string) error {
			deleted = eventID
			return &calendar.Error{Op: "delete", Err: errors.New("api unavailable")}
		},
	}
	svc := newTestService(repo, cal)

	b, err := svc.Cancel(context.Background(), id)
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if b.Status != domain.BookingStatusCancelled {
		t.Fatalf("status = %q, want cancelled", b.Status)
	}
	if deleted != "ev-7" {
		t.Fatalf("deleted event = %q, want ev-7", deleted)
	}
}

func TestServiceBookingsForPeriod_IncludesEmptyDatesInOrder(t *testing.T) {
	repo := &fakeRepo{
		listConfirmedInRangeFn: func(ctx context.Context, from, to time.Time) ([]domain.Booking, error) {
			return []domain.Booking{
				{
					ID:        uuid.MustParse("00000000-0000-0000-0000-000000000008"),
					Date:      time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
					SlotStart: "14:00",
					SlotEnd:   "15:00",
					Status:    domain.BookingStatusConfirmed,
				},
			}, nil
		},
	}
	svc := newTestService(repo, &fakeCalendar{})

	summary, err := svc.BookingsForPeriod(context.Background(), "2025-06-01", 2)
	if err != nil {
		t.Fatalf("BookingsForPeriod error: %v", err)
	}
	if summary.StartDate != "2025-06-01" || summary.EndDate != "2025-06-03" || summary.Days != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Dates) != 3 {
		t.Fatalf("len(dates) = %d, want 3", len(summary.Dates))
	}
	wantDates := []string{"2025-06-01", "2025-06-02", "2025-06-03"}
	for i, day := range summary.Dates {
		if day.Date != wantDates[i] {
			t.Fatalf("dates[%d] = %q, want %q", i, day.Date, wantDates[i])
		}
		if day.Bookings == nil {
			t.Fatalf("dates[%d] bookings must not be nil", i)
		}
	}
	if len(summary.Dates[1].Bookings) != 1 || summary.Dates[1].Bookings[0].SlotStart != "14:00" {
		t.Fatalf("june 2 bookings = %+v", summary.Dates[1].Bookings)
	}
}

func TestServiceBookingsForPeriod_RequiresPositiveDays(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeCalendar{})

	_, err := svc.BookingsForPeriod(context.Background(), "2025-06-01", 0)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
}
