package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/pocketbase/pocketbase/core"

	"rifa/internal/services"
)

// ProofServer streams a stored payment proof.
type ProofServer interface {
	Serve(w http.ResponseWriter, r *http.Request, key string) error
}

type AdminHandler struct {
	tickets *services.TicketService
	proofs  ProofServer
}

func NewAdminHandler(tickets *services.TicketService, proofs ProofServer) *AdminHandler {
	return &AdminHandler{
		tickets: tickets,
		proofs:  proofs,
	}
}

// List - every ticket with buyer data and a link to its proof
func (h *AdminHandler) List(e *core.RequestEvent) error {
	tickets, err := h.tickets.AdminList(e.Request.Context())
	if err != nil {
		return apiError(e, err)
	}

	secret := url.PathEscape(e.Request.PathValue("secretKey"))
	for i := range tickets {
		if tickets[i].ProofKey != "" {
			tickets[i].ProofURL = fmt.Sprintf("/api/boletas/admin/%s/%s/comprobante", secret, tickets[i].Number)
		}
	}

	return ok(e, tickets)
}

func (h *AdminHandler) Summary(e *core.RequestEvent) error {
	summary, err := h.tickets.Summary(e.Request.Context())
	if err != nil {
		return apiError(e, err)
	}
	return ok(e, summary)
}

// MarkPaid - reserved -> paid
func (h *AdminHandler) MarkPaid(e *core.RequestEvent) error {
	ticket, err := h.tickets.MarkPaid(e.Request.Context(), e.Request.PathValue("numero"))
	if err != nil {
		return apiError(e, err)
	}

	e.App.Logger().Info("Payment confirmed", "numero", ticket.Number)
	return ok(e, ticket)
}

// Release - reserved -> available, buyer data and proof are dropped
func (h *AdminHandler) Release(e *core.RequestEvent) error {
	ticket, err := h.tickets.Release(e.Request.Context(), e.Request.PathValue("numero"))
	if err != nil {
		return apiError(e, err)
	}

	e.App.Logger().Info("Reservation released", "numero", ticket.Number)
	return ok(e, ticket)
}

func (h *AdminHandler) Proof(e *core.RequestEvent) error {
	key, err := h.tickets.ProofKey(e.Request.Context(), e.Request.PathValue("numero"))
	if err != nil {
		return apiError(e, err)
	}

	if err := h.proofs.Serve(e.Response, e.Request, key); err != nil {
		return apiError(e, err)
	}
	return nil
}
