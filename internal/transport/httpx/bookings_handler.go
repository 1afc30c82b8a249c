package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"studio/backend/internal/calendar"
	"studio/backend/internal/domain"
	"studio/backend/internal/service/bookings"
	"studio/backend/internal/store"
)

const defaultPeriodDays = 90

type bookingsService interface {
	Availability(ctx context.Context, date string) (bookings.Availability, error)
	BookingsForPeriod(ctx context.Context, startDate string, days int) (bookings.PeriodSummary, error)
	Create(ctx context.Context, date, slotStart string) (domain.Booking, error)
	Cancel(ctx context.Context, id uuid.UUID) (domain.Booking, error)
}

type BookingsHandler struct {
	svc bookingsService
	log *slog.Logger
}

func NewBookingsHandler(svc bookingsService, log *slog.Logger) *BookingsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &BookingsHandler{
		svc: svc,
		log: log.With(slog.String("component", "httpx.bookings")),
	}
}

func (h *BookingsHandler) Register(r *chi.Mux) {
	r.Get("/availability", h.availability)
	r.Post("/bookings", h.createBooking)
	r.Delete("/bookings/{id}", h.cancelBooking)
	r.Get("/bookings/period", h.bookingsPeriod)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

type availabilityResp struct {
	Date  string          `json:"date"`
	Slots map[string]bool `json:"slots"`
}

func (h *BookingsHandler) availability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	av, err := h.svc.Availability(r.Context(), date)
	if err != nil {
		h.writeServiceError(w, r, "availability", err)
		return
	}

	resp := availabilityResp{Date: av.Date, Slots: make(map[string]bool, len(av.Slots))}
	for _, s := range av.Slots {
		resp.Slots[s.Start] = s.Booked
	}
	writeJSON(w, http.StatusOK, resp)
}

type createBookingReq struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

type bookingResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *BookingsHandler) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Date == "" || req.Slot == "" {
		writeError(w, http.StatusBadRequest, "date and slot are required")
		return
	}

	b, err := h.svc.Create(r.Context(), req.Date, req.Slot)
	if err != nil {
		h.writeServiceError(w, r, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResp{ID: b.ID.String(), Status: string(b.Status)})
}

func (h *BookingsHandler) cancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	b, err := h.svc.Cancel(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResp{ID: b.ID.String(), Status: string(b.Status)})
}

type periodBookingResp struct {
	ID        string `json:"id"`
	SlotStart string `json:"slot_start"`
	SlotEnd   string `json:"slot_end"`
}

type periodResp struct {
	StartDate string                         `json:"start_date"`
	EndDate   string                         `json:"end_date"`
	Days      int                            `json:"days"`
	Bookings  map[string][]periodBookingResp `json:"bookings"`
}

func (h *BookingsHandler) bookingsPeriod(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("start_date")
	if startDate == "" {
		writeError(w, http.StatusBadRequest, "start_date is required")
		return
	}

	days := defaultPeriodDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}

	summary, err := h.svc.BookingsForPeriod(r.Context(), startDate, days)
	if err != nil {
		h.writeServiceError(w, r, "period", err)
		return
	}

	resp := periodResp{
		StartDate: summary.StartDate,
		EndDate:   summary.EndDate,
		Days:      summary.Days,
		Bookings:  make(map[string][]periodBookingResp, len(summary.Dates)),
	}
	for _, day := range summary.Dates {
		bs := make([]periodBookingResp, 0, len(day.Bookings))
		for _, b := range day.Bookings {
			bs = append(bs, periodBookingResp{
				ID:        b.ID.String(),
				SlotStart: b.SlotStart,
				SlotEnd:   b.SlotEnd,
			})
		}
		resp.Bookings[day.Date] = bs
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps service errors to status codes by kind, never by
// message content.
func (h *BookingsHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log := h.log.With(slog.String("op", op), slog.String("path", r.URL.Path))

	var vErr *bookings.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", slog.Any("err", err))
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	var pastErr *bookings.PastDateError
	if errors.As(err, &pastErr) {
		log.Info("past date rejected", slog.String("date", pastErr.Date))
		writeError(w, http.StatusUnprocessableEntity, "cannot book dates in the past")
		return
	}
	var conflictErr *bookings.SlotConflictError
	if errors.As(err, &conflictErr) {
		log.Info("slot conflict", slog.String("date", conflictErr.Date), slog.String("slot", conflictErr.Slot))
		writeError(w, http.StatusConflict, "this slot is already booked")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		log.Info("booking not found")
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	var calErr *calendar.Error
	if errors.As(err, &calErr) {
		log.Error("calendar integration failed", slog.Any("err", err))
		writeError(w, http.StatusInternalServerError, "error with calendar integration")
		return
	}

	log.Error("request failed", slog.Any("err", err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
