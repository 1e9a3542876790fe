package services

import (
	"context"
	"log/slog"
	"time"

	"rifa/internal/cache"
	"rifa/internal/notify"
	"rifa/internal/store"
	"rifa/models"
	"rifa/monitoring"
)

type DrawService struct {
	store    store.Store
	loader   *cache.Loader
	notifier notify.Notifier
	now      func() time.Time
}

func NewDrawService(s store.Store, loader *cache.Loader, notifier notify.Notifier) *DrawService {
	return &DrawService{
		store:    s,
		loader:   loader,
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *DrawService) Status(ctx context.Context) (models.Draw, error) {
	return s.store.Draw(ctx)
}

// Finalize records the winning number. A draw can only be finalized once.
func (s *DrawService) Finalize(ctx context.Context, winning string) (draw models.Draw, err error) {
	defer func() { monitoring.TrackTicketOperation("finalizar", err) }()

	if err := validNumber(winning); err != nil {
		return models.Draw{}, err
	}

	draw, err = s.store.FinalizeDraw(ctx, winning, s.now())
	if err != nil {
		return models.Draw{}, err
	}

	s.loader.Invalidate(ctx, KeyTickets, KeyResults)

	slog.Info("Draw finalized", "numero_ganador", winning)

	if err := s.notifier.Publish(ctx, notify.EventDrawFinalized, map[string]any{
		"numeroGanador": winning,
	}); err != nil {
		slog.Warn("Failed to publish notification", "event", notify.EventDrawFinalized, "error", err)
	}
	return draw, nil
}

// Results lists sold tickets with censored buyer names, plus the winner once drawn.
func (s *DrawService) Results(ctx context.Context) (models.Results, error) {
	var results models.Results
	err := s.loader.Load(ctx, KeyResults, &results, func(ctx context.Context) (any, error) {
		return s.buildResults(ctx)
	})
	return results, err
}

func (s *DrawService) buildResults(ctx context.Context) (models.Results, error) {
	draw, err := s.store.Draw(ctx)
	if err != nil {
		return models.Results{}, err
	}

	tickets, err := s.store.List(ctx)
	if err != nil {
		return models.Results{}, err
	}

	now := s.now()
	results := models.Results{
		Finalized:     draw.Finalized,
		WinningNumber: draw.WinningNumber,
		FinalizedAt:   draw.FinalizedAt,
		Tickets:       []models.ResultEntry{},
	}

	for _, t := range tickets {
		st := t.EffectiveStatus(now)
		if st == models.StatusAvailable {
			continue
		}

		entry := models.ResultEntry{
			Number:       t.Number,
			Status:       st,
			PurchaseDate: t.PurchaseDate(),
		}
		if t.Buyer != nil {
			entry.CensoredName = models.CensorName(t.Buyer.Name)
		}
		results.Tickets = append(results.Tickets, entry)

		if draw.Finalized && t.Number == draw.WinningNumber {
			winner := entry
			results.WinningTicket = &winner
		}
	}

	return results, nil
}
