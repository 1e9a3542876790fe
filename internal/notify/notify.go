package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go/v7"

	"rifa/utils"
)

const (
	EventTicketReserved = "boleta_reservada"
	EventTicketPaid     = "boleta_pagada"
	EventTicketReleased = "boleta_liberada"
	EventTicketsExpired = "boletas_vencidas"
	EventDrawFinalized  = "sorteo_finalizado"
)

// Notifier pushes ticket changes to connected clients.
type Notifier interface {
	Publish(ctx context.Context, event string, payload map[string]any) error
}

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
	Channel      string
}

type PubNub struct {
	pn      *pubnub.PubNub
	channel string
	breaker *utils.CircuitBreaker
}

func NewPubNub(cfg Config) *PubNub {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNub{
		pn:      pubnub.NewPubNub(pnCfg),
		channel: cfg.Channel,
		breaker: utils.NewCircuitBreaker("pubnub", 5, 30*time.Second),
	}
}

func (p *PubNub) Publish(ctx context.Context, event string, payload map[string]any) error {
	msg := message(event, payload)

	return p.breaker.Execute(func() error {
		_, status, err := p.pn.Publish().
			Channel(p.channel).
			Message(msg).
			Execute()
		if err != nil {
			return fmt.Errorf("publish %s: %w", event, err)
		}
		if status.Error != nil {
			return fmt.Errorf("publish %s: %w", event, status.Error)
		}
		return nil
	})
}

func message(event string, payload map[string]any) map[string]any {
	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = event
	return msg
}

// Noop is used when realtime keys are not configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event string, payload map[string]any) error {
	slog.Debug("notification skipped", "event", event)
	return nil
}
