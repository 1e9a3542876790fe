package handlers

import (
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/router"

	"rifa/security"
)

type Routes struct {
	Boletas *BoletaHandler
	Admin   *AdminHandler
	Sorteo  *SorteoHandler
	Health  *HealthHandler

	Guard   *security.AdminGuard
	Limiter *security.RateLimiter
}

func (rt Routes) Register(r *router.Router[*core.RequestEvent]) {
	// Public endpoints
	r.GET("/api/boletas", rt.Boletas.List)
	r.POST("/api/boletas/{numero}/reservar", rt.Boletas.Reserve).
		BindFunc(rt.Limiter.AntiBotMiddleware()).
		BindFunc(rt.Limiter.Middleware("reservar"))
	r.GET("/api/sorteo/estado", rt.Sorteo.Status)
	r.GET("/api/sorteo/resultados", rt.Sorteo.Results)

	// Admin endpoints, gated by the secret in the path
	admin := r.Group("/api/boletas/admin/{secretKey}")
	admin.BindFunc(rt.Guard.Middleware)
	admin.GET("", rt.Admin.List)
	admin.GET("/resumen", rt.Admin.Summary)
	admin.POST("/{numero}/pagar", rt.Admin.MarkPaid)
	admin.POST("/{numero}/liberar", rt.Admin.Release)
	admin.GET("/{numero}/comprobante", rt.Admin.Proof)

	draw := r.Group("/api/sorteo/admin/{secretKey}")
	draw.BindFunc(rt.Guard.Middleware)
	draw.POST("/finalizar", rt.Sorteo.Finalize)

	r.GET("/health", rt.Health.Check)
}
