package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"studio/backend/internal/domain"
)

// BookingRepository is the durable record of bookings. Implementations must
// enforce at most one confirmed booking per (date, slot_start) at the storage
// level; a violation surfaces as ErrConflict.
type BookingRepository interface {
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error

	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	ListConfirmedByDate(ctx context.Context, date time.Time) ([]domain.Booking, error)
	ListConfirmedInRange(ctx context.Context, from, to time.Time) ([]domain.Booking, error)
	FindByExternalEventID(ctx context.Context, eventID string) (domain.Booking, error)

	MarkCancelled(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

// BookingTx is the transaction-scoped view of the store. Everything inside
// one InTransaction call commits or rolls back together.
type BookingTx interface {
	CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	FindByExternalEventID(ctx context.Context, eventID string) (domain.Booking, error)
	FindBySlot(ctx context.Context, date time.Time, slotStart string) (domain.Booking, error)
	SetExternalEventID(ctx context.Context, id uuid.UUID, eventID string) error
	MarkCancelled(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}
