// Package router mounts every HTTP route of the service on a chi router.
package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/boostmarket/paywebhook/internal/handler"
	"github.com/boostmarket/paywebhook/internal/middleware"
)

type Deps struct {
	Logger     *slog.Logger
	Health     *handler.HealthHandler
	Webhooks   *handler.WebhookHandler
	Admin      *handler.AdminHandler
	Cron       *handler.CronHandler
	AdminToken string
	CronSecret string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Tracing)
	r.Use(middleware.Logging(d.Logger))

	r.Get("/health", d.Health.Liveness)
	r.Get("/health/ready", d.Health.Readiness)

	// Gateways: authenticated by payload signature, never by header.
	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/momo", d.Webhooks.MoMo)
		r.Get("/vnpay", d.Webhooks.VNPay)
		r.Post("/vnpay", d.Webhooks.VNPay)
		r.Post("/zalopay", d.Webhooks.ZaloPay)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery)

		r.Route("/api/cron/webhooks", func(r chi.Router) {
			r.Use(middleware.BearerToken(d.CronSecret))
			r.Post("/process", d.Cron.ProcessPending)
			r.Post("/cleanup", d.Cron.Cleanup)
		})

		r.Route("/api/admin/webhooks", func(r chi.Router) {
			r.Use(middleware.BearerToken(d.AdminToken))
			r.Get("/", d.Admin.ListWebhookEvents)
			r.Post("/{id}/requeue", d.Admin.RequeueWebhookEvent)
		})
	})

	return r
}
