package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/ledger-recon/internal/platform/httpx"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile/export"
	"github.com/odyssey-erp/ledger-recon/internal/view"
)

const statementTemplate = "statement.html"

// HTMLRenderer is the subset of the Gotenberg client used for statements.
type HTMLRenderer interface {
	RenderHTML(ctx context.Context, html []byte) ([]byte, error)
}

// StatementRenderer turns statements into PDF documents.
type StatementRenderer struct {
	engine *view.Engine
	client HTMLRenderer
	now    func() time.Time
}

// NewStatementRenderer wires the template engine and the PDF backend.
func NewStatementRenderer(engine *view.Engine, client HTMLRenderer) (*StatementRenderer, error) {
	if engine == nil || client == nil {
		return nil, errors.New("report: engine and client are required")
	}
	return &StatementRenderer{engine: engine, client: client, now: time.Now}, nil
}

type statementView struct {
	Statement   export.Statement
	GeneratedAt time.Time
}

// RenderStatement produces the PDF for stmt.
func (r *StatementRenderer) RenderStatement(ctx context.Context, stmt export.Statement) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.engine.Execute(&buf, statementTemplate, statementView{Statement: stmt, GeneratedAt: r.now().UTC()}); err != nil {
		return nil, fmt.Errorf("report: execute %s: %w", statementTemplate, err)
	}
	return r.client.RenderHTML(ctx, buf.Bytes())
}

// Pinger reports backend availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler exposes the PDF backend health.
type Handler struct {
	pinger Pinger
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(pinger Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pinger: pinger, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil || h.pinger == nil {
		return
	}
	r.Get("/report/ping", h.ping)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: pdf renderer", httpx.ErrUnavailable))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
