package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"rezerv/internal/bookings/conflict"
	bookingserrors "rezerv/internal/bookings/errors"
	"rezerv/internal/bookings/validator"
	"rezerv/pkg/config"
	mongotx "rezerv/pkg/db/mongo"
	apperrors "rezerv/pkg/errors"
	"rezerv/pkg/logger"
	"rezerv/pkg/model"
)

// --- In-memory fakes ---

// memBookingRepo mimics the store closely enough for engine semantics:
// inserts assign ids, transactions snapshot state and roll back on error.
type memBookingRepo struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	bookings map[string]model.Booking
	seq      int

	byNameDeletes int

	// afterInsert runs inside the transaction right after an insert, used
	// to simulate state landing concurrently between the engine's reads.
	afterInsert func(r *memBookingRepo)
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[string]model.Booking)}
}

func (r *memBookingRepo) put(b *model.Booking) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		r.seq++
		b.ID = fmt.Sprintf("%024d", r.seq)
	}
	r.bookings[b.ID] = *b
	return b.ID
}

func (r *memBookingRepo) Insert(_ context.Context, booking *model.Booking) error {
	booking.CreatedAt = time.Now().UTC()
	r.put(booking)
	if r.afterInsert != nil {
		r.afterInsert(r)
	}
	return nil
}

func (r *memBookingRepo) MarkActive(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.Active {
		return bookingserrors.ErrNotFound
	}
	b.Active = true
	r.bookings[id] = b
	return nil
}

func (r *memBookingRepo) findFirst(match func(model.Booking) bool) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if match(b) {
			found := b
			return &found, nil
		}
	}
	return nil, bookingserrors.ErrNotFound
}

func (r *memBookingRepo) findAll(match func(model.Booking) bool) []*model.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.bookings {
		if match(b) {
			found := b
			out = append(out, &found)
		}
	}
	return out
}

func (r *memBookingRepo) FindActiveByName(_ context.Context, name string) (*model.Booking, error) {
	return r.findFirst(func(b model.Booking) bool { return b.Name == name && b.Active })
}

// FindReservationByName mirrors the store's sort: the earliest-starting
// reservation wins.
func (r *memBookingRepo) FindReservationByName(_ context.Context, name string) (*model.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var earliest *model.Booking
	for _, b := range r.bookings {
		if b.Name != name || b.Active {
			continue
		}
		if earliest == nil || b.StartTime.Before(earliest.StartTime) {
			found := b
			earliest = &found
		}
	}
	if earliest == nil {
		return nil, bookingserrors.ErrNotFound
	}
	return earliest, nil
}

func (r *memBookingRepo) FindReservationsByName(_ context.Context, name string) ([]*model.Booking, error) {
	return r.findAll(func(b model.Booking) bool { return b.Name == name && !b.Active }), nil
}

func (r *memBookingRepo) FindByOwnerAndID(_ context.Context, ownerID, id string, active bool) (*model.Booking, error) {
	return r.findFirst(func(b model.Booking) bool {
		return b.ID == id && b.OwnerID == ownerID && b.Active == active
	})
}

func (r *memBookingRepo) FindByOwnerAndName(_ context.Context, ownerID, name string, active bool) (*model.Booking, error) {
	return r.findFirst(func(b model.Booking) bool {
		return b.Name == name && b.OwnerID == ownerID && b.Active == active
	})
}

func (r *memBookingRepo) ListByOwner(_ context.Context, ownerID string, active bool) ([]*model.Booking, error) {
	return r.findAll(func(b model.Booking) bool { return b.OwnerID == ownerID && b.Active == active }), nil
}

func (r *memBookingRepo) DeleteByOwnerAndID(_ context.Context, ownerID, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok || b.OwnerID != ownerID || b.Active != active {
		return bookingserrors.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *memBookingRepo) DeleteByOwnerAndName(_ context.Context, ownerID, name string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byNameDeletes++
	for id, b := range r.bookings {
		if b.Name == name && b.OwnerID == ownerID && b.Active == active {
			delete(r.bookings, id)
			return nil
		}
	}
	return bookingserrors.ErrNotFound
}

func (r *memBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TxFunc) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snapshot := make(map[string]model.Booking, len(r.bookings))
	for id, b := range r.bookings {
		snapshot[id] = b
	}
	r.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.bookings = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memBookingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bookings)
}

func (r *memBookingRepo) get(id string) (model.Booking, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	return b, ok
}

type memLockRepo struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newMemLockRepo() *memLockRepo {
	return &memLockRepo{locks: make(map[string]bool)}
}

func (r *memLockRepo) Create(_ context.Context, lock *model.RoomLock) (*model.RoomLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locks[lock.ID] {
		return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	}
	r.locks[lock.ID] = true
	return lock, nil
}

func (r *memLockRepo) Delete(_ context.Context, lockID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, lockID)
	return nil
}

func (r *memLockRepo) held() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ *model.Booking) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1]
}

// --- Fixture ---

type fixture struct {
	svc       BookingService
	repo      *memBookingRepo
	locks     *memLockRepo
	publisher *recordingPublisher
	cfg       *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logger.New(logger.Config{Level: logger.LevelError, Format: logger.FormatText, Output: io.Discard})
	cfg := &config.Config{
		JoinGrace:      5 * time.Minute,
		WalkInDuration: 2 * time.Hour,
		RoomLockTTL:    10 * time.Second,
		Log:            log,
	}

	repo := newMemBookingRepo()
	locks := newMemLockRepo()
	publisher := &recordingPublisher{}
	svc := NewBookingService(repo, locks, validator.NewBookingValidator(log), publisher, cfg)

	return &fixture{svc: svc, repo: repo, locks: locks, publisher: publisher, cfg: cfg}
}

func (f *fixture) seedBooking(t *testing.T, name, owner, mail string, start, end time.Time, active bool) string {
	t.Helper()
	b := &model.Booking{
		OwnerID:   owner,
		MailOwner: mail,
		Name:      name,
		StartTime: start,
		EndTime:   end,
		Timezone:  "UTC",
		Active:    active,
	}
	return f.repo.put(b)
}

func allocateReq(name, mail string) *model.AllocateRequest {
	return &model.AllocateRequest{
		OwnerID:   "acme",
		Name:      name,
		MailOwner: mail,
	}
}

func reservationReq(name string, start time.Time, durationSeconds int64) *model.CreateReservationRequest {
	return &model.CreateReservationRequest{
		OwnerID:         "acme",
		Name:            name,
		MailOwner:       "owner@acme.test",
		StartTime:       start,
		DurationSeconds: durationSeconds,
		Timezone:        "UTC",
	}
}

// --- Allocate ---

func TestAllocatePromotesReservation(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(-time.Minute)
	end := start.Add(time.Hour)
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, end, false)

	view, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))
	if err != nil {
		t.Fatalf("expected promotion, got: %v", err)
	}

	if view.ID != id {
		t.Errorf("promotion must preserve the booking id: want %s, got %s", id, view.ID)
	}
	stored, ok := f.repo.get(id)
	if !ok || !stored.Active {
		t.Fatal("expected the stored booking to be active after promotion")
	}
	if !stored.StartTime.Equal(start) {
		t.Errorf("promotion must preserve start_time: want %s, got %s", start, stored.StartTime)
	}
	if f.repo.count() != 1 {
		t.Errorf("promotion must not create new bookings, have %d", f.repo.count())
	}
	if got := f.publisher.last(); got != "conference.started" {
		t.Errorf("expected conference.started event, got %q", got)
	}
	if f.locks.held() != 0 {
		t.Error("room lock should be released after allocation")
	}
}

func TestAllocatePromotesEarliestReservation(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	// Seeded later-first so map iteration order cannot mask the sort.
	f.seedBooking(t, "standup", "other-org", "later@other.test", now.Add(3*time.Hour), now.Add(4*time.Hour), false)
	earliestID := f.seedBooking(t, "standup", "acme", "owner@acme.test", now.Add(-time.Minute), now.Add(time.Hour), false)

	view, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))
	if err != nil {
		t.Fatalf("expected the earliest reservation to promote, got: %v", err)
	}
	if view.ID != earliestID {
		t.Errorf("expected promotion of the earliest reservation %s, got %s", earliestID, view.ID)
	}
}

func TestAllocatePromotionCaseInsensitiveMailOwner(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC()
	f.seedBooking(t, "standup", "acme", "Owner@Acme.Test", start, start.Add(time.Hour), false)

	if _, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test")); err != nil {
		t.Fatalf("mail owner match must be case-insensitive, got: %v", err)
	}
}

func TestAllocateWrongMailOwner(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC()
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	_, err := f.svc.Allocate(context.Background(), allocateReq("standup", "intruder@other.test"))

	var notAllowed *conflict.NotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("expected NotAllowedError, got: %v", err)
	}
	if stored, _ := f.repo.get(id); stored.Active {
		t.Error("a refused promotion must not mutate the reservation")
	}
}

func TestAllocateBeforeGraceWindow(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	_, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))

	var notAllowed *conflict.NotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("expected NotAllowedError for an early start, got: %v", err)
	}
}

func TestAllocateWithinGraceWindow(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(3 * time.Minute)
	f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	if _, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test")); err != nil {
		t.Fatalf("start within the grace window must be allowed, got: %v", err)
	}
}

func TestAllocateExpiredReservation(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(-2 * time.Hour)
	f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	_, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))

	var notAllowed *conflict.NotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("expected NotAllowedError for an expired reservation, got: %v", err)
	}
}

func TestAllocateConferenceAlreadyExists(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(-time.Minute)
	id := f.seedBooking(t, "standup", "other-org", "someone@other.test", start, start.Add(time.Hour), true)

	_, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))

	var exists *conflict.ConferenceExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected ConferenceExistsError, got: %v", err)
	}
	if exists.ID != id {
		t.Errorf("conflict must carry the live conference id: want %s, got %s", id, exists.ID)
	}
}

func TestAllocateWalkIn(t *testing.T) {
	f := newFixture(t)

	view, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))
	if err != nil {
		t.Fatalf("expected walk-in conference, got: %v", err)
	}

	if view.ID == "" {
		t.Fatal("walk-in conference must get a fresh id")
	}
	if view.Duration != int64((2 * time.Hour).Seconds()) {
		t.Errorf("walk-in must use the default duration, got %d seconds", view.Duration)
	}
	stored, ok := f.repo.get(view.ID)
	if !ok || !stored.Active {
		t.Fatal("walk-in conference must be stored active")
	}
	if got := f.publisher.last(); got != "conference.started" {
		t.Errorf("expected conference.started event, got %q", got)
	}
}

func TestAllocateWalkInRollsBackOnConcurrentReservation(t *testing.T) {
	f := newFixture(t)

	// A reservation lands between the engine's reservation lookup and its
	// post-insert overlap check. The walk-in insert must be rolled back.
	f.repo.afterInsert = func(r *memBookingRepo) {
		r.afterInsert = nil
		now := time.Now().UTC()
		r.put(&model.Booking{
			OwnerID:   "other-org",
			MailOwner: "someone@other.test",
			Name:      "standup",
			StartTime: now.Add(30 * time.Minute),
			EndTime:   now.Add(90 * time.Minute),
			Timezone:  "UTC",
			Active:    false,
		})
	}

	_, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))

	var overlap *conflict.OverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected OverlapError, got: %v", err)
	}
	if active, _ := f.repo.FindActiveByName(context.Background(), "standup"); active != nil {
		t.Error("the walk-in insert must be rolled back on overlap")
	}
}

func TestAllocateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Allocate(context.Background(), allocateReq("bad/room!", "owner@acme.test"))

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Fatalf("expected %s, got %s", apperrors.CodeValidation, appErr.Code)
	}
	if f.repo.count() != 0 {
		t.Error("a failed validation must not touch the store")
	}
}

func TestConcurrentAllocateSingleWinner(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(-time.Minute)
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Allocate(context.Background(), allocateReq("standup", "owner@acme.test"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var exists *conflict.ConferenceExistsError
		if errors.As(err, &exists) {
			continue
		}
		if appErr := apperrors.AsAppError(err); appErr.Code == apperrors.CodeConflict {
			continue
		}
		t.Errorf("unexpected failure mode: %v", err)
	}

	if successes != 1 {
		t.Fatalf("exactly one allocation must win, got %d", successes)
	}
	if stored, _ := f.repo.get(id); !stored.Active {
		t.Error("the seeded reservation should have been promoted")
	}
	if f.repo.count() != 1 {
		t.Errorf("no extra bookings should exist, have %d", f.repo.count())
	}
}

// --- CreateReservation ---

func TestCreateReservation(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	view, err := f.svc.CreateReservation(context.Background(), reservationReq("standup", start, 3600))
	if err != nil {
		t.Fatalf("expected reservation to be created, got: %v", err)
	}

	stored, ok := f.repo.get(view.ID)
	if !ok {
		t.Fatal("reservation not stored")
	}
	if stored.Active {
		t.Error("reservations must be stored inactive")
	}
	if got := f.publisher.last(); got != "reservation.created" {
		t.Errorf("expected reservation.created event, got %q", got)
	}
	if f.locks.held() != 0 {
		t.Error("room lock should be released after creation")
	}
}

func TestCreateReservationOverlap(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	f.seedBooking(t, "standup", "other-org", "someone@other.test", start, start.Add(time.Hour), false)

	tests := []struct {
		name  string
		start time.Time
	}{
		{"window contained", start.Add(10 * time.Minute)},
		{"touching at stored end", start.Add(time.Hour)},
		{"touching at stored start", start.Add(-30 * time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateReservation(context.Background(), reservationReq("standup", tt.start, 1800))

			var overlap *conflict.OverlapError
			if !errors.As(err, &overlap) {
				t.Fatalf("expected OverlapError, got: %v", err)
			}
			if f.repo.count() != 1 {
				t.Errorf("a refused reservation must not be stored, have %d bookings", f.repo.count())
			}
		})
	}
}

func TestCreateReservationDifferentRoomNoConflict(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	f.seedBooking(t, "standup", "other-org", "someone@other.test", start, start.Add(time.Hour), false)

	if _, err := f.svc.CreateReservation(context.Background(), reservationReq("retro", start, 3600)); err != nil {
		t.Fatalf("different room names must not conflict, got: %v", err)
	}
}

func TestCreateReservationDuringLiveConference(t *testing.T) {
	f := newFixture(t)
	confStart := time.Now().UTC()
	f.seedBooking(t, "standup", "other-org", "someone@other.test", confStart, confStart.Add(time.Hour), true)

	_, err := f.svc.CreateReservation(context.Background(), reservationReq("standup", confStart.Add(30*time.Minute), 3600))

	var exists *conflict.ConferenceExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected ConferenceExistsError, got: %v", err)
	}
	if exists.EndsAt == "" {
		t.Error("conflict should tell the caller when the room frees up")
	}
}

func TestCreateReservationAfterLiveConferenceEnds(t *testing.T) {
	f := newFixture(t)
	confStart := time.Now().UTC()
	f.seedBooking(t, "standup", "other-org", "someone@other.test", confStart, confStart.Add(time.Hour), true)

	start := confStart.Add(2 * time.Hour)
	if _, err := f.svc.CreateReservation(context.Background(), reservationReq("standup", start, 3600)); err != nil {
		t.Fatalf("a reservation starting after the conference ends must be allowed, got: %v", err)
	}
}

func TestCreateReservationValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*model.CreateReservationRequest)
	}{
		{"missing timezone", func(r *model.CreateReservationRequest) { r.Timezone = "" }},
		{"bad timezone", func(r *model.CreateReservationRequest) { r.Timezone = "not/a-zone" }},
		{"zero duration", func(r *model.CreateReservationRequest) { r.DurationSeconds = 0 }},
		{"bad room name", func(r *model.CreateReservationRequest) { r.Name = "room!@#" }},
		{"bad mail owner", func(r *model.CreateReservationRequest) { r.MailOwner = "not-an-email" }},
		{"non-alphanumeric pin", func(r *model.CreateReservationRequest) { r.Pin = "12-34" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := reservationReq("standup", time.Now().UTC().Add(time.Hour), 3600)
			tt.mutate(req)

			_, err := f.svc.CreateReservation(context.Background(), req)
			appErr := apperrors.AsAppError(err)
			if appErr.Code != apperrors.CodeValidation {
				t.Fatalf("expected %s, got: %v", apperrors.CodeValidation, err)
			}
		})
	}

	if f.repo.count() != 0 {
		t.Error("failed validations must not touch the store")
	}
}

// --- Reads ---

func TestGetReservationScopedToOwner(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	if _, err := f.svc.GetReservation(context.Background(), "acme", id); err != nil {
		t.Fatalf("owner must see its reservation, got: %v", err)
	}

	_, err := f.svc.GetReservation(context.Background(), "other-org", id)
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("foreign owners must get %s, got: %v", apperrors.CodeNotFound, err)
	}
}

func TestGetReservationIdempotent(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	first, err := f.svc.GetReservation(context.Background(), "acme", id)
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	second, err := f.svc.GetReservation(context.Background(), "acme", id)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if *first != *second {
		t.Errorf("reads without intervening mutation must match: %+v vs %+v", first, second)
	}
}

func TestGetConferenceByName(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC()
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), true)

	view, err := f.svc.GetConferenceByName(context.Background(), "acme", "standup")
	if err != nil {
		t.Fatalf("expected conference, got: %v", err)
	}
	if view.ID != id {
		t.Errorf("expected id %s, got %s", id, view.ID)
	}
}

func TestListSeparatesConferencesFromReservations(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC()
	f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), true)
	f.seedBooking(t, "retro", "acme", "owner@acme.test", start.Add(2*time.Hour), start.Add(3*time.Hour), false)
	f.seedBooking(t, "planning", "other-org", "someone@other.test", start, start.Add(time.Hour), false)

	conferences, err := f.svc.ListConferences(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListConferences failed: %v", err)
	}
	if len(conferences) != 1 || conferences[0].Name != "standup" {
		t.Errorf("expected one conference (standup), got %+v", conferences)
	}

	reservations, err := f.svc.ListReservations(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(reservations) != 1 || reservations[0].Name != "retro" {
		t.Errorf("expected one reservation (retro), got %+v", reservations)
	}
}

func TestGetRequiresOwner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetReservation(context.Background(), "", "some-id")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeInvalidInput {
		t.Fatalf("expected %s, got: %v", apperrors.CodeInvalidInput, err)
	}
}

// --- Deletes ---

func TestDeleteReservation(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	deleted, err := f.svc.DeleteReservationByID(context.Background(), "acme", id)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected the reservation to be deleted")
	}
	if f.repo.count() != 0 {
		t.Error("reservation still stored after delete")
	}
	if got := f.publisher.last(); got != "reservation.deleted" {
		t.Errorf("expected reservation.deleted event, got %q", got)
	}
}

func TestDeleteAbsentReturnsFalse(t *testing.T) {
	f := newFixture(t)

	deleted, err := f.svc.DeleteReservationByID(context.Background(), "acme", "no-such-id")
	if err != nil {
		t.Fatalf("absence must not be an error, got: %v", err)
	}
	if deleted {
		t.Error("expected deleted=false for an absent booking")
	}
}

func TestDeleteScopedToOwner(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	deleted, err := f.svc.DeleteReservationByID(context.Background(), "other-org", id)
	if err != nil {
		t.Fatalf("foreign delete must not be an error, got: %v", err)
	}
	if deleted {
		t.Error("foreign owners must not delete another owner's booking")
	}
	if f.repo.count() != 1 {
		t.Error("booking should survive a foreign delete attempt")
	}
}

func TestDeleteReservationByName(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC().Add(time.Hour)
	f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), false)

	deleted, err := f.svc.DeleteReservationByName(context.Background(), "acme", "standup")
	if err != nil {
		t.Fatalf("delete by name failed: %v", err)
	}
	if !deleted {
		t.Fatal("expected the reservation to be deleted by name")
	}
	if f.repo.byNameDeletes != 1 {
		t.Errorf("expected the name-scoped delete to be used, got %d calls", f.repo.byNameDeletes)
	}
}

func TestDeleteConferenceEmitsEvent(t *testing.T) {
	f := newFixture(t)
	start := time.Now().UTC()
	id := f.seedBooking(t, "standup", "acme", "owner@acme.test", start, start.Add(time.Hour), true)

	deleted, err := f.svc.DeleteConference(context.Background(), "acme", id)
	if err != nil || !deleted {
		t.Fatalf("delete conference failed: deleted=%v err=%v", deleted, err)
	}
	if got := f.publisher.last(); got != "conference.deleted" {
		t.Errorf("expected conference.deleted event, got %q", got)
	}
}
