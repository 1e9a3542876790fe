package store

import (
	"context"
	"time"

	"rifa/models"
)

const (
	TicketsCollection = "boletas"
	DrawsCollection   = "sorteos"
)

// Store persists the ticket pool and the draw.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Seed(ctx context.Context, reset bool) (int, error)
	Count(ctx context.Context) (int, error)
	Ping(ctx context.Context) error

	List(ctx context.Context) ([]models.Ticket, error)
	Find(ctx context.Context, number string) (*models.Ticket, error)
	StatusCounts(ctx context.Context) (map[models.Status]int, error)

	// Reserve holds a ticket that is available, or whose hold lapsed at now.
	Reserve(ctx context.Context, req ReserveRequest) (*models.Ticket, error)
	MarkPaid(ctx context.Context, number string, now time.Time) (*models.Ticket, error)
	// Release returns a reserved ticket to the pool together with its
	// previous state, so callers can clean up the proof.
	Release(ctx context.Context, number string) (*models.Ticket, error)
	ReleaseExpired(ctx context.Context, now time.Time) ([]models.Ticket, error)

	Draw(ctx context.Context) (models.Draw, error)
	FinalizeDraw(ctx context.Context, winning string, now time.Time) (models.Draw, error)

	Close(ctx context.Context) error
}

type ReserveRequest struct {
	Number    string
	Buyer     models.Buyer
	ProofKey  string
	ExpiresAt *time.Time
	Now       time.Time
}
