package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"rifa/internal/services"
)

type BoletaHandler struct {
	tickets *services.TicketService
}

func NewBoletaHandler(tickets *services.TicketService) *BoletaHandler {
	return &BoletaHandler{tickets: tickets}
}

// List - public ticket grid, number and status only
func (h *BoletaHandler) List(e *core.RequestEvent) error {
	tickets, err := h.tickets.ListPublic(e.Request.Context())
	if err != nil {
		return apiError(e, err)
	}
	return ok(e, tickets)
}

type reserveBody struct {
	Nombre   string `json:"nombre" form:"nombre"`
	Telefono string `json:"telefono" form:"telefono"`
}

// Reserve - accepts multipart (with optional "comprobante" image) or JSON
func (h *BoletaHandler) Reserve(e *core.RequestEvent) error {
	number := e.Request.PathValue("numero")

	in, err := readReserveInput(e)
	if err != nil {
		return err
	}

	ticket, err := h.tickets.Reserve(e.Request.Context(), number, in)
	if err != nil {
		return apiError(e, err)
	}

	e.App.Logger().Info("Ticket reserved", "numero", ticket.Number, "ip", e.RealIP())

	return ok(e, ticket)
}

func readReserveInput(e *core.RequestEvent) (services.ReserveInput, error) {
	contentType := e.Request.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/json") {
		var body reserveBody
		if err := e.BindBody(&body); err != nil {
			return services.ReserveInput{}, apis.NewBadRequestError("Cuerpo de la solicitud inválido", err)
		}
		return services.ReserveInput{Name: body.Nombre, Phone: body.Telefono}, nil
	}

	in := services.ReserveInput{
		Name:  e.Request.FormValue("nombre"),
		Phone: e.Request.FormValue("telefono"),
	}

	if !strings.HasPrefix(contentType, "multipart/form-data") {
		return in, nil
	}

	files, err := e.FindUploadedFiles("comprobante")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil
		}
		return services.ReserveInput{}, apis.NewBadRequestError("No se pudo leer el comprobante", err)
	}
	if len(files) > 0 {
		in.Proof = files[0]
	}

	return in, nil
}
