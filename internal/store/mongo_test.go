package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"rifa/internal/status"
	"rifa/models"
)

const ns = "rifa.boletas"

func countResponse(n int) bson.D {
	return mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{{Key: "n", Value: n}})
}

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("list decodes tickets in order", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "numero", Value: "00"}, {Key: "estado", Value: "disponible"}},
			bson.D{
				{Key: "numero", Value: "01"},
				{Key: "estado", Value: "reservada"},
				{Key: "usuario", Value: bson.D{{Key: "nombre", Value: "Ana"}, {Key: "telefono", Value: "3001234567"}}},
				{Key: "comprobante", Value: "comprobantes/01_pago.png"},
			},
		))

		tickets, err := s.List(ctx)
		require.NoError(mt, err)
		require.Len(mt, tickets, 2)
		assert.Equal(mt, models.StatusAvailable, tickets[0].Status)
		assert.Equal(mt, "Ana", tickets[1].Buyer.Name)
		assert.Equal(mt, "comprobantes/01_pago.png", tickets[1].ProofKey)
	})

	mt.Run("reserve returns the updated ticket", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		now := time.Date(2025, 12, 1, 12, 0, 0, 0, time.UTC)
		expires := now.Add(24 * time.Hour)

		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "numero", Value: "07"},
			{Key: "estado", Value: "reservada"},
			{Key: "usuario", Value: bson.D{{Key: "nombre", Value: "Ana"}, {Key: "telefono", Value: "3001234567"}}},
			{Key: "reservadaEn", Value: now},
			{Key: "expiraEn", Value: expires},
			{Key: "creadoEn", Value: now.Add(-time.Hour)},
			{Key: "actualizadoEn", Value: now},
		}}))
		mt.ClearEvents()

		ticket, err := s.Reserve(ctx, ReserveRequest{
			Number:    "07",
			Buyer:     models.Buyer{Name: "Ana", Phone: "3001234567"},
			ExpiresAt: &expires,
			Now:       now,
		})
		require.NoError(mt, err)
		assert.Equal(mt, models.StatusReserved, ticket.Status)
		assert.True(mt, expires.Equal(*ticket.ExpiresAt))
		require.NotNil(mt, ticket.CreatedAt)
		require.NotNil(mt, ticket.UpdatedAt)
		assert.True(mt, now.Equal(*ticket.UpdatedAt))

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		stamp := evt.Command.Lookup("update", "$set", "actualizadoEn")
		assert.True(mt, now.Equal(stamp.Time()), "reserve stamps actualizadoEn")
	})

	mt.Run("reserve on a held ticket is unavailable", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(1),
		)

		_, err := s.Reserve(ctx, ReserveRequest{Number: "07", Now: time.Now()})
		assert.ErrorIs(mt, err, status.ErrTicketUnavailable)
	})

	mt.Run("reserve on a missing ticket is not found", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch),
		)

		_, err := s.Reserve(ctx, ReserveRequest{Number: "07", Now: time.Now()})
		assert.ErrorIs(mt, err, status.ErrTicketNotFound)
	})

	mt.Run("mark paid requires a reservation", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
			countResponse(1),
		)

		_, err := s.MarkPaid(ctx, "07", time.Now())
		assert.ErrorIs(mt, err, status.ErrInvalidTransition)
	})

	mt.Run("release returns the previous document", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "numero", Value: "07"},
			{Key: "estado", Value: "reservada"},
			{Key: "comprobante", Value: "comprobantes/07_pago.png"},
		}}))
		mt.ClearEvents()

		prev, err := s.Release(ctx, "07")
		require.NoError(mt, err)
		assert.Equal(mt, "comprobantes/07_pago.png", prev.ProofKey)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		_, err = evt.Command.LookupErr("update", "$currentDate", "actualizadoEn")
		assert.NoError(mt, err, "release stamps actualizadoEn")
	})

	mt.Run("release expired skips tickets taken meanwhile", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
				bson.D{{Key: "numero", Value: "01"}, {Key: "estado", Value: "reservada"}},
				bson.D{{Key: "numero", Value: "02"}, {Key: "estado", Value: "reservada"}},
			),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{{Key: "numero", Value: "01"}, {Key: "estado", Value: "reservada"}}}),
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}),
		)

		released, err := s.ReleaseExpired(ctx, time.Now())
		require.NoError(mt, err)
		require.Len(mt, released, 1)
		assert.Equal(mt, "01", released[0].Number)
	})

	mt.Run("status counts", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: "disponible"}, {Key: "total", Value: 97}},
			bson.D{{Key: "_id", Value: "pagada"}, {Key: "total", Value: 3}},
		))

		counts, err := s.StatusCounts(ctx)
		require.NoError(mt, err)
		assert.Equal(mt, 97, counts[models.StatusAvailable])
		assert.Equal(mt, 3, counts[models.StatusPaid])
	})

	mt.Run("draw defaults to not finalized", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "rifa.sorteos", mtest.FirstBatch))

		draw, err := s.Draw(ctx)
		require.NoError(mt, err)
		assert.False(mt, draw.Finalized)
	})

	mt.Run("finalize twice is rejected", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11000,
			Name:    "DuplicateKey",
			Message: "E11000 duplicate key error collection: rifa.sorteos",
		}))

		_, err := s.FinalizeDraw(ctx, "42", time.Now())
		assert.ErrorIs(mt, err, status.ErrDrawFinalized)
	})

	mt.Run("seed refuses to overwrite", func(mt *mtest.T) {
		s := NewMongoStore(mt.DB)
		mt.AddMockResponses(countResponse(100))

		n, err := s.Seed(ctx, false)
		assert.ErrorIs(mt, err, status.ErrAlreadySeeded)
		assert.Equal(mt, 100, n)
	})
}
