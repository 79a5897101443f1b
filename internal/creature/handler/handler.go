// Package handler exposes the creature registry over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chimera/internal/creature/models"
	"chimera/internal/creature/service"
	id "chimera/pkg/domain"
	dErrors "chimera/pkg/domain-errors"
	"chimera/pkg/platform/httputil"
	"chimera/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service defines the registry operations the handler needs.
type Service interface {
	Mint(ctx context.Context, req models.MintRequest) (*models.Record, error)
	Merge(ctx context.Context, req models.MergeRequest) (*models.Record, error)
	Transfer(ctx context.Context, req models.TransferRequest) error
	Record(ctx context.Context, recordID id.RecordID) (*service.Creature, error)
	Metadata(ctx context.Context, recordID id.RecordID) (string, error)
	Image(ctx context.Context, recordID id.RecordID) ([]byte, error)
	Holdings(ctx context.Context, owner id.Address) ([]id.RecordID, error)
	Count(ctx context.Context) (int, error)
	MergeFee(ctx context.Context) (id.Amount, error)
	Balance(ctx context.Context) (id.Amount, error)
	SetMergeFee(ctx context.Context, caller id.Address, fee id.Amount) error
	Withdraw(ctx context.Context, caller id.Address) (id.Amount, error)
}

// Handler wires registry endpoints to the registry service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registry handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// RegisterPublic mounts the read-only endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/creatures/count", h.HandleCount)
	r.Get("/creatures/{id}", h.HandleGet)
	r.Get("/creatures/{id}/metadata", h.HandleMetadata)
	r.Get("/creatures/{id}/image", h.HandleImage)
	r.Get("/owners/{address}/creatures", h.HandleHoldings)
	r.Get("/merge-fee", h.HandleMergeFee)
}

// RegisterAuthenticated mounts endpoints that act on behalf of the caller.
// The router must already run the auth middleware.
func (h *Handler) RegisterAuthenticated(r chi.Router) {
	r.Post("/creatures", h.HandleMint)
	r.Post("/creatures/merge", h.HandleMerge)
	r.Post("/creatures/{id}/transfer", h.HandleTransfer)
}

// RegisterAdmin mounts the admin endpoints. The router must already run the
// auth and admin middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/merge-fee", h.HandleSetMergeFee)
	r.Get("/admin/balance", h.HandleBalance)
	r.Post("/admin/withdraw", h.HandleWithdraw)
}

// HandleMint handles POST /creatures.
func (h *Handler) HandleMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Mint(ctx, models.MintRequest{
		To:      req.Recipient(caller),
		Payer:   caller,
		Payment: id.Amount(req.Payment),
	})
	if err != nil {
		h.fail(w, ctx, "mint failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(record, req.Recipient(caller)))
}

// HandleMerge handles POST /creatures/merge.
func (h *Handler) HandleMerge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[MergeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	record, err := h.service.Merge(ctx, models.MergeRequest{
		ID1:     id.RecordID(*req.ID1),
		ID2:     id.RecordID(*req.ID2),
		Caller:  caller,
		Payment: id.Amount(req.Payment),
	})
	if err != nil {
		h.fail(w, ctx, "merge failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromRecord(record, caller))
}

// HandleTransfer handles POST /creatures/{id}/transfer.
func (h *Handler) HandleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[TransferRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.service.Transfer(ctx, models.TransferRequest{ID: recordID, Caller: caller, To: req.parsedTo}); err != nil {
		h.fail(w, ctx, "transfer failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGet handles GET /creatures/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	creature, err := h.service.Record(ctx, recordID)
	if err != nil {
		h.fail(w, ctx, "record lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCreature(creature))
}

// HandleMetadata handles GET /creatures/{id}/metadata.
func (h *Handler) HandleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	uri, err := h.service.Metadata(ctx, recordID)
	if err != nil {
		h.fail(w, ctx, "metadata render failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MetadataResponse{TokenURI: uri})
}

// HandleImage handles GET /creatures/{id}/image.
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID, ok := h.recordID(w, r)
	if !ok {
		return
	}
	markup, err := h.service.Image(ctx, recordID)
	if err != nil {
		h.fail(w, ctx, "image lookup failed", err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(markup)
}

// HandleHoldings handles GET /owners/{address}/creatures.
func (h *Handler) HandleHoldings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner, err := id.ParseAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	held, err := h.service.Holdings(ctx, owner)
	if err != nil {
		h.fail(w, ctx, "holdings lookup failed", err)
		return
	}
	if held == nil {
		held = []id.RecordID{}
	}
	httputil.WriteJSON(w, http.StatusOK, HoldingsResponse{Owner: owner, Creatures: held})
}

// HandleCount handles GET /creatures/count.
func (h *Handler) HandleCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.service.Count(ctx)
	if err != nil {
		h.fail(w, ctx, "count failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, CountResponse{LiveCreatures: n})
}

// HandleMergeFee handles GET /merge-fee.
func (h *Handler) HandleMergeFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fee, err := h.service.MergeFee(ctx)
	if err != nil {
		h.fail(w, ctx, "merge fee lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, MergeFeeResponse{MergeFee: fee})
}

// HandleSetMergeFee handles PUT /admin/merge-fee.
func (h *Handler) HandleSetMergeFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[SetMergeFeeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if err := h.service.SetMergeFee(ctx, caller, id.Amount(*req.MergeFee)); err != nil {
		h.fail(w, ctx, "set merge fee failed", forbidden(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleBalance handles GET /admin/balance.
func (h *Handler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	balance, err := h.service.Balance(ctx)
	if err != nil {
		h.fail(w, ctx, "balance lookup failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Balance: balance})
}

// HandleWithdraw handles POST /admin/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := h.requireCaller(w, ctx)
	if !ok {
		return
	}
	amount, err := h.service.Withdraw(ctx, caller)
	if err != nil {
		h.fail(w, ctx, "withdraw failed", forbidden(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, WithdrawResponse{Amount: amount})
}

func (h *Handler) requireCaller(w http.ResponseWriter, ctx context.Context) (id.Address, bool) {
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return caller, true
}

func (h *Handler) recordID(w http.ResponseWriter, r *http.Request) (id.RecordID, bool) {
	recordID, err := id.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return 0, false
	}
	return recordID, true
}

// fail logs at error level only for failures the client did not cause.
func (h *Handler) fail(w http.ResponseWriter, ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"caller", requestcontext.Caller(ctx),
		"code", code,
		"error", err,
	}
	if code == dErrors.CodeInternal || code == dErrors.CodeTimeout {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.InfoContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

// forbidden reports an authenticated caller without the admin role as 403.
func forbidden(err error) error {
	if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		return dErrors.Wrap(err, dErrors.CodeForbidden, "admin role required")
	}
	return err
}
