package reconcilehttp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-recon/internal/platform/httpx"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
	"github.com/odyssey-erp/ledger-recon/internal/reconcile/export"
)

const maxLimit = 5000

// Refresher schedules a background statement refresh.
type Refresher interface {
	EnqueueStatementRefresh(ctx context.Context, ref reconcile.EntityRef) (*asynq.TaskInfo, error)
}

// PDFRenderer renders a statement document to PDF.
type PDFRenderer interface {
	RenderStatement(ctx context.Context, stmt export.Statement) ([]byte, error)
}

// Handler serves counterparty statements.
type Handler struct {
	logger    *slog.Logger
	runner    reconcile.Runner
	refresher Refresher
	pdf       PDFRenderer
	validator *validator.Validate
	csvPool   sync.Pool
}

// NewHandler constructs the statement handler. refresher may be nil, in which
// case the refresh endpoint is not mounted.
func NewHandler(logger *slog.Logger, runner reconcile.Runner, refresher Refresher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		logger:    logger,
		runner:    runner,
		refresher: refresher,
		validator: validator.New(),
	}
	h.csvPool.New = func() interface{} { return new(bytes.Buffer) }
	return h
}

// WithPDF enables the statement.pdf endpoint.
func (h *Handler) WithPDF(renderer PDFRenderer) *Handler {
	h.pdf = renderer
	return h
}

type statementRequest struct {
	Kind  string `validate:"required,oneof=customer vendor"`
	ID    int64  `validate:"required,gt=0"`
	Limit int
}

func (r statementRequest) ref() reconcile.EntityRef {
	return reconcile.EntityRef{Kind: reconcile.Kind(r.Kind), ID: r.ID}
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result := h.runner.Run(r.Context(), req.ref())
	if result.Terminal() {
		h.respondTerminal(w, req.ref(), result)
		return
	}

	httpx.JSON(w, http.StatusOK, export.NewStatement(result, req.Limit))
}

func (h *Handler) handleStatementCSV(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result := h.runner.Run(r.Context(), req.ref())
	if result.Terminal() {
		h.respondTerminal(w, req.ref(), result)
		return
	}

	buf := h.csvPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		buf.Reset()
		h.csvPool.Put(buf)
	}()

	if err := export.WriteTransactionsCSV(buf, result.Transactions); err != nil {
		h.handleServerError(w, "write transactions csv", err)
		return
	}
	buf.WriteString("\n")
	if err := export.WriteTotalsCSV(buf, result.Entity, result.Summary); err != nil {
		h.handleServerError(w, "write totals csv", err)
		return
	}

	filename := fmt.Sprintf("ledger-%s-%d.csv", req.Kind, req.ID)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("X-Ledger-Status", string(result.State()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("stream csv", slog.Any("error", err))
	}
}

func (h *Handler) handleStatementPDF(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	result := h.runner.Run(r.Context(), req.ref())
	if result.Terminal() {
		h.respondTerminal(w, req.ref(), result)
		return
	}

	pdf, err := h.pdf.RenderStatement(r.Context(), export.NewStatement(result, req.Limit))
	if err != nil {
		h.logger.Error("render statement pdf", slog.String("entity", req.ref().String()), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: pdf renderer", httpx.ErrUnavailable))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"ledger-%s-%d.pdf\"", req.Kind, req.ID))
	w.Header().Set("X-Ledger-Status", string(result.State()))
	_, _ = w.Write(pdf)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	info, err := h.refresher.EnqueueStatementRefresh(r.Context(), req.ref())
	if err != nil {
		h.logger.Error("enqueue statement refresh", slog.String("entity", req.ref().String()), slog.Any("error", err))
		httpx.RespondError(w, fmt.Errorf("%w: enqueue refresh", httpx.ErrUnavailable))
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"task_id": info.ID,
		"queue":   info.Queue,
	})
}

func (h *Handler) parseRequest(r *http.Request) (statementRequest, error) {
	req := statementRequest{Kind: strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind")))}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return req, fmt.Errorf("%w: id must be an integer", httpx.ErrValidation)
	}
	req.ID = id

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("%w: limit must be an integer", httpx.ErrValidation)
		}
		if err := h.validator.Var(limit, fmt.Sprintf("min=1,max=%d", maxLimit)); err != nil {
			return req, fmt.Errorf("%w: limit must be between 1 and %d", httpx.ErrValidation, maxLimit)
		}
		req.Limit = limit
	}

	if err := h.validator.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return req, fmt.Errorf("%w: %s failed %s", httpx.ErrValidation, strings.ToLower(fieldErrs[0].Field()), fieldErrs[0].Tag())
		}
		return req, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return req, nil
}

func (h *Handler) respondTerminal(w http.ResponseWriter, ref reconcile.EntityRef, result reconcile.Result) {
	if result.HasWarning(reconcile.WarningEntityNotFound) {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, ref))
		return
	}
	h.logger.Warn("statement unavailable", slog.String("entity", ref.String()), slog.String("warning", result.Warnings[0].Message))
	httpx.RespondError(w, fmt.Errorf("%w: counterparty lookup failed", httpx.ErrUnavailable))
}

func (h *Handler) handleServerError(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	httpx.RespondError(w, err)
}
