package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rifa/internal/status"
	"rifa/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// drawID is the fixed _id of the single draw document.
const drawID = "sorteo"

// MongoStore keeps tickets as documents of a MongoDB database.
type MongoStore struct {
	db      *mongo.Database
	tickets *mongo.Collection
	draws   *mongo.Collection
}

// ConnectMongo opens a pooled client and verifies the deployment is reachable.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(10).
		SetMinPoolSize(2).
		SetSocketTimeout(45 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	slog.Info("Connected to MongoDB", "database", database)
	return NewMongoStore(client.Database(database)), nil
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:      db,
		tickets: db.Collection(TicketsCollection),
		draws:   db.Collection(DrawsCollection),
	}
}

func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	_, err := s.tickets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "numero", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_boletas_numero"),
	})
	if err != nil {
		return fmt.Errorf("create boletas index: %w", err)
	}
	return nil
}

func (s *MongoStore) Seed(ctx context.Context, reset bool) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 && !reset {
		return count, status.ErrAlreadySeeded
	}

	if count > 0 {
		if _, err := s.tickets.DeleteMany(ctx, bson.M{}); err != nil {
			return 0, fmt.Errorf("delete boletas: %w", err)
		}
		if _, err := s.draws.DeleteMany(ctx, bson.M{}); err != nil {
			return 0, fmt.Errorf("delete sorteos: %w", err)
		}
	}

	now := time.Now().UTC()
	docs := make([]any, 0, models.TotalTickets)
	for _, number := range models.AllNumbers() {
		docs = append(docs, models.Ticket{
			Number:    number,
			Status:    models.StatusAvailable,
			CreatedAt: &now,
			UpdatedAt: &now,
		})
	}

	if _, err := s.tickets.InsertMany(ctx, docs); err != nil {
		return 0, fmt.Errorf("insert boletas: %w", err)
	}

	return models.TotalTickets, nil
}

func (s *MongoStore) Count(ctx context.Context) (int, error) {
	total, err := s.tickets.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return int(total), nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoStore) List(ctx context.Context) ([]models.Ticket, error) {
	cursor, err := s.tickets.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "numero", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tickets := []models.Ticket{}
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *MongoStore) Find(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.tickets.FindOne(ctx, bson.M{"numero": number}).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *MongoStore) StatusCounts(ctx context.Context) (map[models.Status]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$estado"},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := s.tickets.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Estado string `bson:"_id"`
		Total  int    `bson:"total"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[models.Status]int, len(rows))
	for _, row := range rows {
		if st := models.Status(row.Estado); st.Valid() {
			counts[st] = row.Total
		}
	}
	return counts, nil
}

func (s *MongoStore) Reserve(ctx context.Context, req ReserveRequest) (*models.Ticket, error) {
	filter := bson.M{
		"numero": req.Number,
		"$or": bson.A{
			bson.M{"estado": models.StatusAvailable},
			bson.M{"estado": models.StatusReserved, "expiraEn": bson.M{"$lte": req.Now}},
		},
	}

	set := bson.M{
		"estado":        models.StatusReserved,
		"usuario":       req.Buyer,
		"reservadaEn":   req.Now,
		"actualizadoEn": req.Now,
	}
	unset := bson.M{"pagadaEn": ""}

	if req.ProofKey != "" {
		set["comprobante"] = req.ProofKey
	} else {
		unset["comprobante"] = ""
	}
	if req.ExpiresAt != nil {
		set["expiraEn"] = *req.ExpiresAt
	} else {
		unset["expiraEn"] = ""
	}

	var ticket models.Ticket
	err := s.tickets.FindOneAndUpdate(ctx, filter,
		bson.M{"$set": set, "$unset": unset},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missingOr(ctx, req.Number, status.ErrTicketUnavailable)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *MongoStore) MarkPaid(ctx context.Context, number string, now time.Time) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.tickets.FindOneAndUpdate(ctx,
		bson.M{"numero": number, "estado": models.StatusReserved},
		bson.M{
			"$set":   bson.M{"estado": models.StatusPaid, "pagadaEn": now, "actualizadoEn": now},
			"$unset": bson.M{"expiraEn": ""},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&ticket)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missingOr(ctx, number, status.ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *MongoStore) Release(ctx context.Context, number string) (*models.Ticket, error) {
	previous, err := s.releaseWhere(ctx, bson.M{"numero": number, "estado": models.StatusReserved})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, s.missingOr(ctx, number, status.ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}
	return previous, nil
}

func (s *MongoStore) ReleaseExpired(ctx context.Context, now time.Time) ([]models.Ticket, error) {
	expiredFilter := func(number string) bson.M {
		f := bson.M{
			"estado":   models.StatusReserved,
			"expiraEn": bson.M{"$lte": now},
		}
		if number != "" {
			f["numero"] = number
		}
		return f
	}

	cursor, err := s.tickets.Find(ctx, expiredFilter(""), options.Find().SetSort(bson.D{{Key: "numero", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var candidates []models.Ticket
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, err
	}

	var released []models.Ticket
	for _, candidate := range candidates {
		// The filter is repeated so a ticket re-reserved meanwhile is left alone.
		previous, err := s.releaseWhere(ctx, expiredFilter(candidate.Number))
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return released, err
		}
		released = append(released, *previous)
	}
	return released, nil
}

func (s *MongoStore) releaseWhere(ctx context.Context, filter bson.M) (*models.Ticket, error) {
	var previous models.Ticket
	err := s.tickets.FindOneAndUpdate(ctx, filter,
		bson.M{
			"$set":         bson.M{"estado": models.StatusAvailable},
			"$currentDate": bson.M{"actualizadoEn": true},
			"$unset": bson.M{
				"usuario":     "",
				"comprobante": "",
				"reservadaEn": "",
				"expiraEn":    "",
				"pagadaEn":    "",
			},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&previous)
	if err != nil {
		return nil, err
	}
	return &previous, nil
}

func (s *MongoStore) Draw(ctx context.Context) (models.Draw, error) {
	var draw models.Draw
	err := s.draws.FindOne(ctx, bson.M{"_id": drawID}).Decode(&draw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Draw{}, nil
	}
	if err != nil {
		return models.Draw{}, err
	}
	return draw, nil
}

func (s *MongoStore) FinalizeDraw(ctx context.Context, winning string, now time.Time) (models.Draw, error) {
	var draw models.Draw
	err := s.draws.FindOneAndUpdate(ctx,
		bson.M{"_id": drawID, "finalizado": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{
			"finalizado":    true,
			"numeroGanador": winning,
			"finalizadoEn":  now,
		}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&draw)
	// An already finalized draw fails the filter and the upsert collides on _id.
	if mongo.IsDuplicateKeyError(err) {
		return models.Draw{}, status.ErrDrawFinalized
	}
	if err != nil {
		return models.Draw{}, err
	}
	return draw, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

func (s *MongoStore) missingOr(ctx context.Context, number string, fallback error) error {
	total, err := s.tickets.CountDocuments(ctx, bson.M{"numero": number})
	if err != nil {
		return err
	}
	if total == 0 {
		return status.ErrTicketNotFound
	}
	return fallback
}
