package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// TotalTickets is the fixed size of the pool, numbered 00 to 99.
const TotalTickets = 100

type Status string

const (
	StatusAvailable Status = "disponible"
	StatusReserved  Status = "reservada"
	StatusPaid      Status = "pagada"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusReserved, StatusPaid:
		return true
	}
	return false
}

type Buyer struct {
	Name  string `json:"nombre" bson:"nombre"`
	Phone string `json:"telefono" bson:"telefono"`
}

type Ticket struct {
	Number     string     `json:"numero" bson:"numero"`
	Status     Status     `json:"estado" bson:"estado"`
	Buyer      *Buyer     `json:"usuario,omitempty" bson:"usuario,omitempty"`
	ProofKey   string     `json:"-" bson:"comprobante,omitempty"`
	ProofURL   string     `json:"comprobanteUrl,omitempty" bson:"-"`
	ReservedAt *time.Time `json:"fechaReserva,omitempty" bson:"reservadaEn,omitempty"`
	ExpiresAt  *time.Time `json:"reservadaHasta,omitempty" bson:"expiraEn,omitempty"`
	PaidAt     *time.Time `json:"fechaPago,omitempty" bson:"pagadaEn,omitempty"`
	CreatedAt  *time.Time `json:"createdAt,omitempty" bson:"creadoEn,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty" bson:"actualizadoEn,omitempty"`
}

// Expired reports whether a reservation hold has lapsed at now.
func (t Ticket) Expired(now time.Time) bool {
	return t.Status == StatusReserved && t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// EffectiveStatus is the status buyers should see: a lapsed hold reads as available.
func (t Ticket) EffectiveStatus(now time.Time) Status {
	if t.Expired(now) {
		return StatusAvailable
	}
	return t.Status
}

// PurchaseDate is the payment time, falling back to the reservation time.
func (t Ticket) PurchaseDate() *time.Time {
	if t.PaidAt != nil {
		return t.PaidAt
	}
	return t.ReservedAt
}

type PublicTicket struct {
	Number string `json:"numero"`
	Status Status `json:"estado"`
}

func (t Ticket) Public(now time.Time) PublicTicket {
	return PublicTicket{Number: t.Number, Status: t.EffectiveStatus(now)}
}

// ValidateNumber accepts exactly two ASCII digits.
func ValidateNumber(number string) error {
	if len(number) != 2 || number[0] < '0' || number[0] > '9' || number[1] < '0' || number[1] > '9' {
		return fmt.Errorf("numero %q: debe tener formato 00-99", number)
	}
	return nil
}

// AllNumbers returns "00" through "99" in order.
func AllNumbers() []string {
	numbers := make([]string, 0, TotalTickets)
	for i := 0; i < TotalTickets; i++ {
		numbers = append(numbers, fmt.Sprintf("%02d", i))
	}
	return numbers
}

// CensorName keeps the first two letters of each word: "Raul Perez" -> "Ra*** Pe***".
func CensorName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		if utf8.RuneCountInString(w) <= 2 {
			words[i] = w + "***"
			continue
		}
		runes := []rune(w)
		words[i] = string(runes[:2]) + "***"
	}
	return strings.Join(words, " ")
}
