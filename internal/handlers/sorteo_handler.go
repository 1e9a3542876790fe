package handlers

import (
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"rifa/internal/services"
)

type SorteoHandler struct {
	draws *services.DrawService
}

func NewSorteoHandler(draws *services.DrawService) *SorteoHandler {
	return &SorteoHandler{draws: draws}
}

func (h *SorteoHandler) Status(e *core.RequestEvent) error {
	draw, err := h.draws.Status(e.Request.Context())
	if err != nil {
		return apiError(e, err)
	}
	return ok(e, draw)
}

// Results - sold tickets with censored names and the winner once drawn
func (h *SorteoHandler) Results(e *core.RequestEvent) error {
	results, err := h.draws.Results(e.Request.Context())
	if err != nil {
		return apiError(e, err)
	}
	return ok(e, results)
}

type finalizeBody struct {
	NumeroGanador string `json:"numeroGanador"`
}

func (h *SorteoHandler) Finalize(e *core.RequestEvent) error {
	var body finalizeBody
	if err := e.BindBody(&body); err != nil {
		return apis.NewBadRequestError("Cuerpo de la solicitud inválido", err)
	}

	draw, err := h.draws.Finalize(e.Request.Context(), body.NumeroGanador)
	if err != nil {
		return apiError(e, err)
	}

	e.App.Logger().Info("Draw finalized", "numero_ganador", draw.WinningNumber)
	return ok(e, draw)
}
