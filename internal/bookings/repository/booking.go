package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingserrors "rezerv/internal/bookings/errors"
	"rezerv/pkg/config"
	mongotx "rezerv/pkg/db/mongo"
	"rezerv/pkg/model"
)

const (
	CollectionName = "Bookings"
)

// BookingRepository is the persistence boundary of the allocation engine.
//
// The global-by-name lookups deliberately ignore the owner: room names are
// shared resources across tenants, so conflict detection and promotion must
// see every tenant's bookings. Reads and deletes stay tenant-scoped.
type BookingRepository interface {
	Insert(ctx context.Context, booking *model.Booking) error
	MarkActive(ctx context.Context, id string) error

	FindActiveByName(ctx context.Context, name string) (*model.Booking, error)
	FindReservationByName(ctx context.Context, name string) (*model.Booking, error)
	FindReservationsByName(ctx context.Context, name string) ([]*model.Booking, error)

	FindByOwnerAndID(ctx context.Context, ownerID, id string, active bool) (*model.Booking, error)
	FindByOwnerAndName(ctx context.Context, ownerID, name string, active bool) (*model.Booking, error)
	ListByOwner(ctx context.Context, ownerID string, active bool) ([]*model.Booking, error)

	DeleteByOwnerAndID(ctx context.Context, ownerID, id string, active bool) error
	DeleteByOwnerAndName(ctx context.Context, ownerID, name string, active bool) error

	ExecuteTransaction(ctx context.Context, fn mongotx.TxFunc) error
}

type mongoBookingRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoBookingRepository(cfg *config.Config) BookingRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoBookingRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout bounds a single store operation unless we are already inside
// a transaction, whose session context must not be wrapped.
func (r *mongoBookingRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoBookingRepository) Insert(ctx context.Context, booking *model.Booking) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, booking)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		booking.ID = oid.Hex()
	}
	return nil
}

// MarkActive promotes a reservation in place. Only the active flag changes;
// id and time window are preserved.
func (r *mongoBookingRepository) MarkActive(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "active": false},
		bson.M{"$set": bson.M{"active": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark booking active: %w", err)
	}
	if result.MatchedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}

func (r *mongoBookingRepository) FindActiveByName(ctx context.Context, name string) (*model.Booking, error) {
	return r.findOne(ctx, bson.M{"name": name, "active": true})
}

// FindReservationByName returns the earliest-starting reservation so that a
// room with several pending reservations always promotes deterministically.
func (r *mongoBookingRepository) FindReservationByName(ctx context.Context, name string) (*model.Booking, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "start_time", Value: 1}})
	return r.findOne(ctx, bson.M{"name": name, "active": false}, opts)
}

func (r *mongoBookingRepository) FindReservationsByName(ctx context.Context, name string) ([]*model.Booking, error) {
	return r.findMany(ctx, bson.M{"name": name, "active": false})
}

func (r *mongoBookingRepository) FindByOwnerAndID(ctx context.Context, ownerID, id string, active bool) (*model.Booking, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return r.findOne(ctx, bson.M{"_id": objectID, "owner_id": ownerID, "active": active})
}

func (r *mongoBookingRepository) FindByOwnerAndName(ctx context.Context, ownerID, name string, active bool) (*model.Booking, error) {
	return r.findOne(ctx, bson.M{"name": name, "owner_id": ownerID, "active": active})
}

func (r *mongoBookingRepository) ListByOwner(ctx context.Context, ownerID string, active bool) ([]*model.Booking, error) {
	return r.findMany(ctx, bson.M{"owner_id": ownerID, "active": active})
}

func (r *mongoBookingRepository) DeleteByOwnerAndID(ctx context.Context, ownerID, id string, active bool) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}
	return r.deleteOne(ctx, bson.M{"_id": objectID, "owner_id": ownerID, "active": active})
}

func (r *mongoBookingRepository) DeleteByOwnerAndName(ctx context.Context, ownerID, name string, active bool) error {
	return r.deleteOne(ctx, bson.M{"name": name, "owner_id": ownerID, "active": active})
}

func (r *mongoBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TxFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoBookingRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var booking model.Booking
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&booking)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, bookingserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return &booking, nil
}

func (r *mongoBookingRepository) findMany(ctx context.Context, filter bson.M) ([]*model.Booking, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var bookings []*model.Booking
	if err = cursor.All(ctx, &bookings); err != nil {
		return nil, fmt.Errorf("failed to decode bookings: %w", err)
	}
	return bookings, nil
}

func (r *mongoBookingRepository) deleteOne(ctx context.Context, filter bson.M) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	if result.DeletedCount == 0 {
		return bookingserrors.ErrNotFound
	}
	return nil
}
