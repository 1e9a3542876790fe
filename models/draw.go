package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Draw struct {
	Finalized     bool       `json:"finalizado" bson:"finalizado"`
	WinningNumber string     `json:"numeroGanador,omitempty" bson:"numeroGanador,omitempty"`
	FinalizedAt   *time.Time `json:"fechaFinalizacion,omitempty" bson:"finalizadoEn,omitempty"`
}

type ResultEntry struct {
	Number       string     `json:"numero"`
	Status       Status     `json:"estado"`
	CensoredName string     `json:"nombreCensurado"`
	PurchaseDate *time.Time `json:"fechaCompra,omitempty"`
}

type Results struct {
	Finalized     bool          `json:"finalizado"`
	WinningNumber string        `json:"numeroGanador,omitempty"`
	FinalizedAt   *time.Time    `json:"fechaFinalizacion,omitempty"`
	WinningTicket *ResultEntry  `json:"boletaGanadora"`
	Tickets       []ResultEntry `json:"boletas"`
}

type Summary struct {
	Total     int             `json:"total"`
	Available int             `json:"disponibles"`
	Reserved  int             `json:"reservadas"`
	Paid      int             `json:"pagadas"`
	Collected decimal.Decimal `json:"recaudado"`
	Pending   decimal.Decimal `json:"porRecaudar"`
}

// NewSummary derives revenue from per-status counts and the unit price.
func NewSummary(counts map[Status]int, price decimal.Decimal) Summary {
	s := Summary{
		Available: counts[StatusAvailable],
		Reserved:  counts[StatusReserved],
		Paid:      counts[StatusPaid],
	}
	s.Total = s.Available + s.Reserved + s.Paid
	s.Collected = price.Mul(decimal.NewFromInt(int64(s.Paid)))
	s.Pending = price.Mul(decimal.NewFromInt(int64(s.Reserved)))
	return s
}
