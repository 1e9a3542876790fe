package services

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/tools/filesystem"
	"github.com/shopspring/decimal"

	"rifa/internal/cache"
	"rifa/internal/notify"
	"rifa/internal/status"
	"rifa/internal/store"
	"rifa/models"
	"rifa/monitoring"
)

// Cache keys for the public responses.
const (
	KeyTickets = "boletas"
	KeyResults = "resultados"
)

var phonePattern = regexp.MustCompile(`^[0-9+\- ]{7,20}$`)

// ProofStorage keeps payment proof images outside the ticket store.
type ProofStorage interface {
	Save(file *filesystem.File, number string) (string, error)
	Delete(key string) error
}

type TicketConfig struct {
	ReservationTTL time.Duration
	MaxProofSize   int64
	Price          decimal.Decimal
}

type ReserveInput struct {
	Name  string
	Phone string
	Proof *filesystem.File
}

func (in ReserveInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("el nombre es requerido"),
			validation.RuneLength(1, 100).Error("el nombre debe tener entre 1 y 100 caracteres"),
		),
		validation.Field(&in.Phone,
			validation.Required.Error("el teléfono es requerido"),
			validation.Match(phonePattern).Error("el teléfono no es válido"),
		),
	)
}

type TicketService struct {
	store    store.Store
	proofs   ProofStorage
	loader   *cache.Loader
	notifier notify.Notifier
	cfg      TicketConfig
	now      func() time.Time
}

func NewTicketService(s store.Store, proofs ProofStorage, loader *cache.Loader, notifier notify.Notifier, cfg TicketConfig) *TicketService {
	return &TicketService{
		store:    s,
		proofs:   proofs,
		loader:   loader,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// ListPublic returns every ticket with its number and effective status only.
func (s *TicketService) ListPublic(ctx context.Context) ([]models.PublicTicket, error) {
	var tickets []models.PublicTicket
	err := s.loader.Load(ctx, KeyTickets, &tickets, func(ctx context.Context) (any, error) {
		all, err := s.store.List(ctx)
		if err != nil {
			return nil, err
		}

		now := s.now()
		public := make([]models.PublicTicket, 0, len(all))
		for _, t := range all {
			public = append(public, t.Public(now))
		}
		return public, nil
	})
	return tickets, err
}

func (s *TicketService) Reserve(ctx context.Context, number string, in ReserveInput) (ticket *models.Ticket, err error) {
	defer func() { monitoring.TrackTicketOperation("reservar", err) }()

	if err := validNumber(number); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", status.ErrInvalidInput, err)
	}

	draw, err := s.store.Draw(ctx)
	if err != nil {
		return nil, err
	}
	if draw.Finalized {
		return nil, status.ErrDrawFinalized
	}

	now := s.now()
	req := store.ReserveRequest{
		Number: number,
		Buyer:  models.Buyer{Name: in.Name, Phone: in.Phone},
		Now:    now,
	}

	if in.Proof != nil {
		if err := store.ValidateProof(in.Proof, s.cfg.MaxProofSize); err != nil {
			return nil, err
		}
		key, err := s.proofs.Save(in.Proof, number)
		if err != nil {
			return nil, err
		}
		req.ProofKey = key
	} else {
		expiresAt := now.Add(s.cfg.ReservationTTL)
		req.ExpiresAt = &expiresAt
	}

	ticket, err = s.store.Reserve(ctx, req)
	if err != nil {
		if req.ProofKey != "" {
			s.deleteProof(req.ProofKey, number)
		}
		return nil, err
	}

	slog.Info("Ticket reserved", "numero", number, "con_comprobante", req.ProofKey != "")

	s.changed(ctx, notify.EventTicketReserved, ticket)
	return ticket, nil
}

// AdminList returns the full ticket records, lapsed holds shown as available.
func (s *TicketService) AdminList(ctx context.Context) ([]models.Ticket, error) {
	tickets, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	counts := make(map[models.Status]int)
	for i := range tickets {
		if tickets[i].Expired(now) {
			tickets[i] = models.Ticket{
				Number:    tickets[i].Number,
				Status:    models.StatusAvailable,
				CreatedAt: tickets[i].CreatedAt,
				UpdatedAt: tickets[i].UpdatedAt,
			}
		}
		counts[tickets[i].Status]++
	}
	monitoring.SetTicketCounts(counts)

	return tickets, nil
}

// Summary sweeps lapsed holds first so its counts agree with AdminList.
func (s *TicketService) Summary(ctx context.Context) (models.Summary, error) {
	if _, err := s.ReleaseExpired(ctx); err != nil {
		return models.Summary{}, err
	}

	counts, err := s.store.StatusCounts(ctx)
	if err != nil {
		return models.Summary{}, err
	}

	monitoring.SetTicketCounts(counts)
	return models.NewSummary(counts, s.cfg.Price), nil
}

func (s *TicketService) MarkPaid(ctx context.Context, number string) (ticket *models.Ticket, err error) {
	defer func() { monitoring.TrackTicketOperation("pagar", err) }()

	if err := validNumber(number); err != nil {
		return nil, err
	}

	ticket, err = s.store.MarkPaid(ctx, number, s.now())
	if err != nil {
		return nil, err
	}

	if ticket.ReservedAt != nil && ticket.PaidAt != nil {
		monitoring.TrackReservationHold(ticket.PaidAt.Sub(*ticket.ReservedAt))
	}

	slog.Info("Ticket marked as paid", "numero", number)

	s.changed(ctx, notify.EventTicketPaid, ticket)
	return ticket, nil
}

func (s *TicketService) Release(ctx context.Context, number string) (ticket *models.Ticket, err error) {
	defer func() { monitoring.TrackTicketOperation("liberar", err) }()

	if err := validNumber(number); err != nil {
		return nil, err
	}

	prev, err := s.store.Release(ctx, number)
	if err != nil {
		return nil, err
	}
	s.deleteProof(prev.ProofKey, number)

	slog.Info("Ticket released", "numero", number)

	ticket = &models.Ticket{Number: number, Status: models.StatusAvailable}
	s.changed(ctx, notify.EventTicketReleased, ticket)
	return ticket, nil
}

// ReleaseExpired persists the release of every lapsed hold and reports how many.
func (s *TicketService) ReleaseExpired(ctx context.Context) (int, error) {
	released, err := s.store.ReleaseExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if len(released) == 0 {
		return 0, nil
	}

	for _, t := range released {
		s.deleteProof(t.ProofKey, t.Number)
	}
	monitoring.TrackExpiredReleases(len(released))
	s.loader.Invalidate(ctx, KeyTickets, KeyResults)

	numbers := make([]string, 0, len(released))
	for _, t := range released {
		numbers = append(numbers, t.Number)
	}
	s.publish(ctx, notify.EventTicketsExpired, map[string]any{
		"numeros": numbers,
		"estado":  models.StatusAvailable,
	})

	slog.Info("Expired reservations released", "count", len(released))
	return len(released), nil
}

// ProofKey returns the storage key of the ticket's payment proof.
func (s *TicketService) ProofKey(ctx context.Context, number string) (string, error) {
	if err := validNumber(number); err != nil {
		return "", err
	}

	ticket, err := s.store.Find(ctx, number)
	if err != nil {
		return "", err
	}
	if ticket.ProofKey == "" {
		return "", status.ErrProofNotFound
	}
	return ticket.ProofKey, nil
}

func (s *TicketService) changed(ctx context.Context, event string, ticket *models.Ticket) {
	s.loader.Invalidate(ctx, KeyTickets, KeyResults)
	s.publish(ctx, event, map[string]any{
		"numero": ticket.Number,
		"estado": ticket.Status,
	})
}

func (s *TicketService) publish(ctx context.Context, event string, payload map[string]any) {
	if err := s.notifier.Publish(ctx, event, payload); err != nil {
		slog.Warn("Failed to publish notification", "event", event, "error", err)
	}
}

func (s *TicketService) deleteProof(key, number string) {
	if key == "" {
		return
	}
	if err := s.proofs.Delete(key); err != nil {
		slog.Warn("Failed to delete payment proof", "numero", number, "key", key, "error", err)
	}
}

func validNumber(number string) error {
	if err := models.ValidateNumber(number); err != nil {
		return fmt.Errorf("%w: %q", status.ErrInvalidNumber, number)
	}
	return nil
}
