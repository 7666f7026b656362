package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"rezerv/internal/bookings/conflict"
	"rezerv/internal/bookings/service"
	apperrors "rezerv/pkg/errors"
	httputil "rezerv/pkg/http"
	"rezerv/pkg/logger"
	"rezerv/pkg/model"
)

// OwnerHeader carries the caller's tenant/group identifier. It is set by
// the gateway after token verification; this service trusts it as-is.
const OwnerHeader = "X-Owner-Group"

// startTimeLayout is the wire format for start times, interpreted in the
// request's timezone.
const startTimeLayout = "2006-01-02T15:04"

type BookingHandler struct {
	service service.BookingService
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// conferenceRequest is the wire shape of an allocation call.
type conferenceRequest struct {
	Name      string `json:"name"`
	MailOwner string `json:"mail_owner"`
	StartTime string `json:"start_time,omitempty"`
	Duration  int64  `json:"duration,omitempty"` // minutes
	Timezone  string `json:"timezone,omitempty"`
	Pin       string `json:"pin,omitempty"`
}

// reservationRequest is the wire shape of a reservation call. Duration is
// in minutes on the wire and converted to seconds before the engine.
type reservationRequest struct {
	Name      string `json:"name"`
	MailOwner string `json:"mail_owner"`
	StartTime string `json:"start_time"`
	Duration  int64  `json:"duration"` // minutes
	Timezone  string `json:"timezone"`
	Pin       string `json:"pin,omitempty"`
}

// Allocate handles a start-conference request: promote a matching
// reservation or create a walk-in conference.
func (h *BookingHandler) Allocate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var body conferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}

	start, err := parseStartTime(body.StartTime, body.Timezone)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.service.Allocate(r.Context(), &model.AllocateRequest{
		OwnerID:         ownerID,
		Name:            body.Name,
		MailOwner:       body.MailOwner,
		StartTime:       start,
		DurationSeconds: body.Duration * 60,
		Timezone:        body.Timezone,
		Pin:             body.Pin,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logWriteError(httputil.WriteSuccess(w, view))
}

// CreateReservation registers a future claim on a room name.
func (h *BookingHandler) CreateReservation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var body reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, apperrors.InvalidInput("Invalid request body"))
		return
	}
	if body.StartTime == "" {
		h.writeError(w, apperrors.InvalidInput("start_time is required"))
		return
	}

	start, err := parseStartTime(body.StartTime, body.Timezone)
	if err != nil {
		h.writeError(w, err)
		return
	}

	view, err := h.service.CreateReservation(r.Context(), &model.CreateReservationRequest{
		OwnerID:         ownerID,
		Name:            body.Name,
		MailOwner:       body.MailOwner,
		StartTime:       start,
		DurationSeconds: body.Duration * 60,
		Timezone:        body.Timezone,
		Pin:             body.Pin,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.logWriteError(httputil.WriteCreated(w, view))
}

func (h *BookingHandler) GetConference(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.get(w, r, ps.ByName("id"), "", true)
}

func (h *BookingHandler) GetConferenceByRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.get(w, r, "", ps.ByName("name"), true)
}

func (h *BookingHandler) GetReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.get(w, r, ps.ByName("id"), "", false)
}

func (h *BookingHandler) GetReservationByRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.get(w, r, "", ps.ByName("name"), false)
}

func (h *BookingHandler) ListConferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, true)
}

func (h *BookingHandler) ListReservations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.list(w, r, false)
}

func (h *BookingHandler) DeleteConference(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteConference(r.Context(), ownerID, ps.ByName("id"))
	h.writeDeleteResult(w, deleted, err, ps.ByName("id"))
}

func (h *BookingHandler) DeleteReservation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteReservationByID(r.Context(), ownerID, ps.ByName("id"))
	h.writeDeleteResult(w, deleted, err, ps.ByName("id"))
}

func (h *BookingHandler) DeleteReservationByRoom(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}
	deleted, err := h.service.DeleteReservationByName(r.Context(), ownerID, ps.ByName("name"))
	h.writeDeleteResult(w, deleted, err, ps.ByName("name"))
}

// --- Helpers ---

func (h *BookingHandler) get(w http.ResponseWriter, r *http.Request, id, name string, active bool) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var view *model.RoomView
	var err error
	switch {
	case id != "" && active:
		view, err = h.service.GetConference(r.Context(), ownerID, id)
	case id != "":
		view, err = h.service.GetReservation(r.Context(), ownerID, id)
	case active:
		view, err = h.service.GetConferenceByName(r.Context(), ownerID, name)
	default:
		view, err = h.service.GetReservationByName(r.Context(), ownerID, name)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logWriteError(httputil.WriteSuccess(w, view))
}

func (h *BookingHandler) list(w http.ResponseWriter, r *http.Request, active bool) {
	ownerID, ok := h.owner(w, r)
	if !ok {
		return
	}

	var views []*model.RoomView
	var err error
	if active {
		views, err = h.service.ListConferences(r.Context(), ownerID)
	} else {
		views, err = h.service.ListReservations(r.Context(), ownerID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.logWriteError(httputil.WriteList(w, views, len(views)))
}

func (h *BookingHandler) owner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := r.Header.Get(OwnerHeader)
	if ownerID == "" {
		h.writeError(w, apperrors.InvalidInput(OwnerHeader+" header is required"))
		return "", false
	}
	return ownerID, true
}

func (h *BookingHandler) writeDeleteResult(w http.ResponseWriter, deleted bool, err error, ref string) {
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !deleted {
		h.writeError(w, apperrors.NotFoundWithID("Booking", ref))
		return
	}
	httputil.WriteNoContent(w)
}

// writeError maps the engine's typed conflicts to their HTTP form:
// an existing conference is a 409 carrying conflict_id, a refused
// promotion is a 403, an overlapping window is a 400.
func (h *BookingHandler) writeError(w http.ResponseWriter, err error) {
	var existsErr *conflict.ConferenceExistsError
	if errors.As(err, &existsErr) {
		details := map[string]any{"conflict_id": existsErr.ID}
		if existsErr.EndsAt != "" {
			details["ends_at"] = existsErr.EndsAt
		}
		err = apperrors.Conflict(existsErr.Error()).WithDetails(details)
	}

	var notAllowedErr *conflict.NotAllowedError
	if errors.As(err, &notAllowedErr) {
		err = apperrors.Forbidden(notAllowedErr.Reason)
	}

	var overlapErr *conflict.OverlapError
	if errors.As(err, &overlapErr) {
		err = apperrors.Validation(overlapErr.Error(), map[string]any{
			"conflicts": overlapErr.ConflictIDs(),
		})
	}

	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "error", writeErr)
	}
}

func (h *BookingHandler) logWriteError(err error) {
	if err != nil {
		h.log.Error("failed to write JSON response", "error", err)
	}
}

func parseStartTime(value, tz string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	loc := time.UTC
	if tz != "" {
		var err error
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return time.Time{}, apperrors.InvalidInput("Invalid timezone identifier: " + tz)
		}
	}

	t, err := time.ParseInLocation(startTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, apperrors.InvalidInput("start_time must be in " + startTimeLayout + " format")
	}
	return t, nil
}
