package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"rezerv/internal/bookings/conflict"
	bookingserrors "rezerv/internal/bookings/errors"
	"rezerv/internal/bookings/events"
	"rezerv/internal/bookings/repository"
	"rezerv/internal/bookings/validator"
	"rezerv/pkg/config"
	apperrors "rezerv/pkg/errors"
	"rezerv/pkg/model"
)

// BookingService is the allocation engine: it arbitrates which reservation
// or conference may hold a room name at any moment. All mutation paths run
// the conflict checks under a per-name advisory lock; none may skip them.
type BookingService interface {
	Allocate(ctx context.Context, req *model.AllocateRequest) (*model.RoomView, error)
	CreateReservation(ctx context.Context, req *model.CreateReservationRequest) (*model.RoomView, error)

	GetConference(ctx context.Context, ownerID, id string) (*model.RoomView, error)
	GetConferenceByName(ctx context.Context, ownerID, name string) (*model.RoomView, error)
	GetReservation(ctx context.Context, ownerID, id string) (*model.RoomView, error)
	GetReservationByName(ctx context.Context, ownerID, name string) (*model.RoomView, error)
	ListConferences(ctx context.Context, ownerID string) ([]*model.RoomView, error)
	ListReservations(ctx context.Context, ownerID string) ([]*model.RoomView, error)

	DeleteConference(ctx context.Context, ownerID, id string) (bool, error)
	DeleteReservationByID(ctx context.Context, ownerID, id string) (bool, error)
	DeleteReservationByName(ctx context.Context, ownerID, name string) (bool, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	lockRepo  repository.RoomLockRepository
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	repo repository.BookingRepository,
	lockRepo repository.RoomLockRepository,
	validator *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		publisher: publisher,
		cfg:       cfg,
	}
}

// Allocate handles a start-conference request for a room name. If a live
// conference already holds the name the call fails with a conflict carrying
// its id. If a reservation matches, it is promoted in place after the
// authorization check. Otherwise a walk-in conference is created; the
// insert and the overlap check against pending reservations run in one
// transaction, so a detected overlap rolls the insert back.
func (s *bookingService) Allocate(ctx context.Context, req *model.AllocateRequest) (*model.RoomView, error) {
	if err := s.validator.ValidateAllocate(req); err != nil {
		s.cfg.Log.Warn("Allocation request validation failed", "name", req.Name, "error", err)
		return nil, apperrors.Validation("Allocation request validation failed", map[string]any{"error": err.Error()})
	}
	if req.StartTime.IsZero() {
		req.StartTime = time.Now()
	}

	lockID, err := s.acquireRoomLock(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseRoomLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release room lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	var booking *model.Booking
	promoted := false
	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.findOptional(s.repo.FindActiveByName)(txCtx, req.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			s.cfg.Log.Info("Conference already exists", "name", req.Name, "conflict_id", existing.ID)
			return &conflict.ConferenceExistsError{ID: existing.ID}
		}

		reservation, err := s.findOptional(s.repo.FindReservationByName)(txCtx, req.Name)
		if err != nil {
			return err
		}

		if reservation != nil {
			if err := s.checkStartAllowed(reservation, req.MailOwner, req.StartTime); err != nil {
				return err
			}
			if err := s.repo.MarkActive(txCtx, reservation.ID); err != nil {
				return apperrors.Internal("Failed to promote reservation", err)
			}
			reservation.Active = true
			booking = reservation
			promoted = true
			return nil
		}

		// Walk-in: no reservation exists, the room is claimed now.
		walkIn := model.NewConference(req, s.cfg.WalkInDuration)
		if err := s.repo.Insert(txCtx, walkIn); err != nil {
			return apperrors.Internal("Failed to create conference", err)
		}

		pending, err := s.repo.FindReservationsByName(txCtx, req.Name)
		if err != nil {
			return apperrors.Internal("Failed to check pending reservations", err)
		}
		if err := conflict.CheckReservationOverlap(walkIn, pending); err != nil {
			// Aborting the transaction rolls the walk-in insert back.
			return err
		}

		booking = walkIn
		return nil
	})
	if err != nil {
		return nil, err
	}

	if promoted {
		s.cfg.Log.Info("Reservation promoted to conference",
			"id", booking.ID,
			"name", booking.Name,
			"start_time", booking.StartTime,
		)
	} else {
		s.cfg.Log.Info("Walk-in conference created",
			"id", booking.ID,
			"name", booking.Name,
			"start_time", booking.StartTime,
		)
	}
	s.emit(ctx, events.TypeConferenceStarted, booking)

	return booking.View(), nil
}

// CreateReservation validates the window, rejects any closed-interval
// overlap with reservations of the same name and any live conference whose
// window contains the start, then inserts the booking inactive.
func (s *bookingService) CreateReservation(ctx context.Context, req *model.CreateReservationRequest) (*model.RoomView, error) {
	if err := s.validator.ValidateReservation(req); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "name", req.Name, "error", err)
		return nil, apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	booking := model.NewReservation(req)
	if err := s.validator.ValidateBooking(booking); err != nil {
		return nil, apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}

	lockID, err := s.acquireRoomLock(ctx, req.Name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseRoomLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release room lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		pending, err := s.repo.FindReservationsByName(txCtx, booking.Name)
		if err != nil {
			return apperrors.Internal("Failed to check existing reservations", err)
		}
		if err := conflict.CheckReservationOverlap(booking, pending); err != nil {
			return err
		}

		active, err := s.findOptional(s.repo.FindActiveByName)(txCtx, booking.Name)
		if err != nil {
			return err
		}
		if active != nil {
			if err := conflict.CheckActiveConference(booking.Name, booking.StartTime, []*model.Booking{active}); err != nil {
				return err
			}
		}

		if err := s.repo.Insert(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Reservation created",
		"id", booking.ID,
		"name", booking.Name,
		"owner_id", booking.OwnerID,
		"start_time", booking.StartTime,
	)
	s.emit(ctx, events.TypeReservationCreated, booking)

	return booking.View(), nil
}

func (s *bookingService) GetConference(ctx context.Context, ownerID, id string) (*model.RoomView, error) {
	return s.getByID(ctx, ownerID, id, true)
}

func (s *bookingService) GetReservation(ctx context.Context, ownerID, id string) (*model.RoomView, error) {
	return s.getByID(ctx, ownerID, id, false)
}

func (s *bookingService) GetConferenceByName(ctx context.Context, ownerID, name string) (*model.RoomView, error) {
	return s.getByName(ctx, ownerID, name, true)
}

func (s *bookingService) GetReservationByName(ctx context.Context, ownerID, name string) (*model.RoomView, error) {
	return s.getByName(ctx, ownerID, name, false)
}

func (s *bookingService) ListConferences(ctx context.Context, ownerID string) ([]*model.RoomView, error) {
	return s.listByOwner(ctx, ownerID, true)
}

func (s *bookingService) ListReservations(ctx context.Context, ownerID string) ([]*model.RoomView, error) {
	return s.listByOwner(ctx, ownerID, false)
}

// DeleteConference removes a live conference under the caller's owner
// scope. Absence is reported as false, not an error.
func (s *bookingService) DeleteConference(ctx context.Context, ownerID, id string) (bool, error) {
	return s.delete(ctx, ownerID, id, "", true)
}

func (s *bookingService) DeleteReservationByID(ctx context.Context, ownerID, id string) (bool, error) {
	return s.delete(ctx, ownerID, id, "", false)
}

func (s *bookingService) DeleteReservationByName(ctx context.Context, ownerID, name string) (bool, error) {
	return s.delete(ctx, ownerID, "", name, false)
}

// --- Helpers ---

// checkStartAllowed is the promotion authorization check: the caller must
// be the reservation's mail owner and the requested start must fall between
// grace-before-start and the reservation's end.
func (s *bookingService) checkStartAllowed(reservation *model.Booking, mailOwner string, start time.Time) error {
	if !strings.EqualFold(mailOwner, reservation.MailOwner) {
		return &conflict.NotAllowedError{
			Reason: fmt.Sprintf("room %s is reserved; only its owner may start the conference", reservation.Name),
		}
	}

	earliest := reservation.StartTime.Add(-s.cfg.JoinGrace)
	if start.Before(earliest) {
		return &conflict.NotAllowedError{
			Reason: fmt.Sprintf("the conference has not started yet; it can be joined from %s",
				earliest.UTC().Format("02 Jan 2006 15:04 MST")),
		}
	}
	if start.After(reservation.EndTime) {
		return &conflict.NotAllowedError{
			Reason: fmt.Sprintf("the reservation for room %s expired at %s",
				reservation.Name, reservation.EndTimeFormatted()),
		}
	}
	return nil
}

func (s *bookingService) getByID(ctx context.Context, ownerID, id string, active bool) (*model.RoomView, error) {
	if ownerID == "" || id == "" {
		return nil, apperrors.InvalidInput("Owner and booking ID are required")
	}
	booking, err := s.repo.FindByOwnerAndID(ctx, ownerID, id, active)
	if err != nil {
		return nil, s.mapLookupError(err, id)
	}
	return booking.View(), nil
}

func (s *bookingService) getByName(ctx context.Context, ownerID, name string, active bool) (*model.RoomView, error) {
	if ownerID == "" || name == "" {
		return nil, apperrors.InvalidInput("Owner and room name are required")
	}
	booking, err := s.repo.FindByOwnerAndName(ctx, ownerID, name, active)
	if err != nil {
		return nil, s.mapLookupError(err, name)
	}
	return booking.View(), nil
}

func (s *bookingService) listByOwner(ctx context.Context, ownerID string, active bool) ([]*model.RoomView, error) {
	if ownerID == "" {
		return nil, apperrors.InvalidInput("Owner ID cannot be empty")
	}
	bookings, err := s.repo.ListByOwner(ctx, ownerID, active)
	if err != nil {
		return nil, apperrors.Internal("Failed to list bookings", err)
	}
	views := make([]*model.RoomView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, b.View())
	}
	return views, nil
}

func (s *bookingService) delete(ctx context.Context, ownerID, id, name string, active bool) (bool, error) {
	if ownerID == "" {
		return false, apperrors.InvalidInput("Owner ID cannot be empty")
	}

	var booking *model.Booking
	var err error
	if id != "" {
		booking, err = s.repo.FindByOwnerAndID(ctx, ownerID, id, active)
	} else {
		booking, err = s.repo.FindByOwnerAndName(ctx, ownerID, name, active)
	}
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			s.cfg.Log.Warn("Delete target not found", "owner_id", ownerID, "id", id, "name", name)
			return false, nil
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return false, apperrors.InvalidInput("Invalid booking ID format")
		}
		return false, apperrors.Internal("Failed to look up booking", err)
	}

	if id != "" {
		err = s.repo.DeleteByOwnerAndID(ctx, ownerID, booking.ID, active)
	} else {
		err = s.repo.DeleteByOwnerAndName(ctx, ownerID, name, active)
	}
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.Internal("Failed to delete booking", err)
	}

	s.cfg.Log.Info("Booking deleted", "id", booking.ID, "name", booking.Name, "active", active)
	if active {
		s.emit(ctx, events.TypeConferenceDeleted, booking)
	} else {
		s.emit(ctx, events.TypeReservationDeleted, booking)
	}
	return true, nil
}

// findOptional adapts a single-record lookup so that absence comes back as
// a nil booking instead of an error.
func (s *bookingService) findOptional(find func(ctx context.Context, name string) (*model.Booking, error)) func(ctx context.Context, name string) (*model.Booking, error) {
	return func(ctx context.Context, name string) (*model.Booking, error) {
		booking, err := find(ctx, name)
		if err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return nil, nil
			}
			return nil, apperrors.Internal("Failed to query bookings", err)
		}
		return booking, nil
	}
}

func (s *bookingService) mapLookupError(err error, ref string) error {
	if errors.Is(err, bookingserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Booking", ref)
	}
	if errors.Is(err, bookingserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid booking ID format")
	}
	return apperrors.Internal("Failed to retrieve booking", err)
}

func (s *bookingService) emit(ctx context.Context, eventType string, booking *model.Booking) {
	if err := s.publisher.Publish(ctx, eventType, booking); err != nil {
		s.cfg.Log.Warn("Failed to publish booking event",
			"event_type", eventType,
			"booking_id", booking.ID,
			"error", err,
		)
	}
}

func (s *bookingService) acquireRoomLock(ctx context.Context, name string) (string, error) {
	lockID := "room_lock_" + name

	lock := &model.RoomLock{
		ID:        lockID,
		RoomName:  name,
		ExpiresAt: time.Now().Add(s.cfg.RoomLockTTL),
	}

	if _, err := s.lockRepo.Create(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This room is being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire room lock", err)
	}

	return lockID, nil
}

func (s *bookingService) releaseRoomLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}
