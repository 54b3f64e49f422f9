package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"iatlab/internal/config"
	"iatlab/internal/models"
)

const (
	resultsCollection = "test_results"
	probeCollection   = "connectivity_probes"
)

// Mongo is the production Store backed by a hosted MongoDB deployment.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	results *mongo.Collection
	log     *zap.Logger
}

// NewMongo connects to the configured deployment, verifies reachability with
// a bounded ping and ensures the createdAt index used by list and count
// queries. The caller owns the returned store and must Close it.
func NewMongo(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime)

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := client.Database(cfg.Name)
	m := &Mongo{
		client:  client,
		db:      db,
		results: db.Collection(resultsCollection),
		log:     log,
	}

	index := mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}
	if _, err := m.results.Indexes().CreateOne(connectCtx, index); err != nil {
		log.Warn("Failed to ensure createdAt index", zap.Error(err))
	}

	log.Info("Database connection established successfully.",
		zap.String("database", cfg.Name))
	return m, nil
}

func (m *Mongo) Insert(ctx context.Context, record *models.TestResult) error {
	now := time.Now()
	record.ID = primitive.NewObjectID()
	record.CreatedAt = now
	record.UpdatedAt = now
	if record.TestDate.IsZero() {
		record.TestDate = now
	}

	if _, err := m.results.InsertOne(ctx, record); err != nil {
		return translateError(err)
	}
	return nil
}

func (m *Mongo) List(ctx context.Context, q ListQuery) ([]models.TestResult, int64, error) {
	filter := bson.M{}
	if q.UserID != "" {
		filter["userId"] = q.UserID
	}

	total, err := m.results.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, translateError(err)
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((q.Page - 1) * q.Limit).
		SetLimit(q.Limit).
		SetProjection(bson.M{"surveyResponses": 0, "deviceInfo": 0})

	cursor, err := m.results.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, 0, translateError(err)
	}
	defer cursor.Close(ctx)

	records := []models.TestResult{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, 0, translateError(err)
	}
	return records, total, nil
}

func (m *Mongo) GetByID(ctx context.Context, id string) (*models.TestResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A malformed identifier can never match a stored record.
		return nil, ErrNotFound
	}

	var record models.TestResult
	err = m.results.FindOne(ctx, bson.M{"_id": oid}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, translateError(err)
	}
	return &record, nil
}

func (m *Mongo) Counts(ctx context.Context) (Counts, error) {
	total, err := m.results.CountDocuments(ctx, bson.M{})
	if err != nil {
		return Counts{}, translateError(err)
	}

	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := m.results.CountDocuments(ctx, bson.M{
		"createdAt": bson.M{"$gte": midnight},
	})
	if err != nil {
		return Counts{}, translateError(err)
	}
	return Counts{Total: total, Today: today}, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	if err := m.client.Ping(ctx, nil); err != nil {
		return ErrUnavailable
	}
	return nil
}

// Probe round-trips a throwaway document through a dedicated collection so
// the health surface can distinguish "process up" from "storage writable".
func (m *Mongo) Probe(ctx context.Context) error {
	coll := m.db.Collection(probeCollection)
	doc := bson.M{"probe": true, "at": time.Now()}

	res, err := coll.InsertOne(ctx, doc)
	if err != nil {
		return translateError(err)
	}
	if err := coll.FindOne(ctx, bson.M{"_id": res.InsertedID}).Err(); err != nil {
		return translateError(err)
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": res.InsertedID}); err != nil {
		return translateError(err)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// translateError maps driver failures onto the store sentinels so handlers
// can pick the right status code without importing the driver.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
