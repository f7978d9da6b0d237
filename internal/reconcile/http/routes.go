// Package reconcilehttp exposes counterparty statements over HTTP.
package reconcilehttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/ledger-recon/internal/platform/httpx"
)

// MountRoutes registers the statement endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(30, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "statement rate limit exceeded")
		}),
	)

	r.Route("/ledger/{kind}/{id}", func(r chi.Router) {
		r.Use(limiter)
		r.Get("/statement", h.handleStatement)
		r.Get("/statement.csv", h.handleStatementCSV)
		if h.pdf != nil {
			r.Get("/statement.pdf", h.handleStatementPDF)
		}
		if h.refresher != nil {
			r.Post("/refresh", h.handleRefresh)
		}
	})
}
