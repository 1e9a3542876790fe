package status

import "errors"

var (
	ErrTicketNotFound     = errors.New("boleta: boleta no encontrada")
	ErrTicketUnavailable  = errors.New("boleta: la boleta no está disponible")
	ErrInvalidTransition  = errors.New("boleta: cambio de estado no permitido")
	ErrInvalidNumber      = errors.New("boleta: el número debe tener formato 00-99")
	ErrInvalidInput       = errors.New("datos inválidos")
	ErrAlreadySeeded      = errors.New("boleta: las boletas ya existen")
	ErrDrawFinalized      = errors.New("sorteo: el sorteo ya finalizó")
	ErrProofNotFound      = errors.New("comprobante: la boleta no tiene comprobante")
	ErrProofTooLarge      = errors.New("comprobante: la imagen supera el tamaño máximo")
	ErrProofNotImage      = errors.New("comprobante: el archivo no es una imagen")
	ErrInvalidAdminSecret = errors.New("admin: código de acceso incorrecto")
)
