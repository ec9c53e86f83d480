package handlers

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/internal/services"
	xhttp "github.com/ikimina/tontine-gateway/pkg/http"
	"github.com/ikimina/tontine-gateway/pkg/logger"
)

type PaymentService interface {
	SubmitContribution(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error)
	SubmitLoanPayment(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error)
	SubmitPenaltyPayment(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error)
	ConfirmPayment(ctx context.Context, ref string) (bool, error)
	FailPayment(ctx context.Context, ref string, reason string) (bool, error)
	GetPayment(ctx context.Context, ref string) (*model.Payment, error)
	List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error)
}

// Reconciler re-checks pending payments out of band.
type Reconciler interface {
	ReconcileUser(ctx context.Context, userID int64) (int, error)
}

type PaymentHandler struct {
	svc        PaymentService
	reconciler Reconciler
}

func RegisterPaymentRoutes(e *router.Group, h *PaymentHandler) {
	e.POST("/payments/contributions", h.CreateContribution)
	e.POST("/payments/loan-payments", h.CreateLoanPayment)
	e.POST("/payments/penalties", h.CreatePenaltyPayment)
	e.GET("/payments", h.ListPayments)
	e.GET("/payments/history/{user_id}", h.PaymentHistory)
	e.GET("/payments/{ref}", h.GetPayment)
	e.PUT("/payments/{ref}/status", h.UpdateStatus)
}

func NewPaymentHandler(svc PaymentService, reconciler Reconciler) *PaymentHandler {
	return &PaymentHandler{
		svc:        svc,
		reconciler: reconciler,
	}
}

type submitResponse struct {
	Success        bool   `json:"success"`
	TransactionRef string `json:"transaction_ref"`
	Status         string `json:"status"`
	Message        string `json:"message"`
}

type listResponse struct {
	Items []*model.Payment `json:"items"`
	Total int64            `json:"total"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *PaymentHandler) CreateContribution(ctx *xhttp.RequestCtx) {
	h.submit(ctx, h.svc.SubmitContribution, "Contribution submitted")
}

func (h *PaymentHandler) CreateLoanPayment(ctx *xhttp.RequestCtx) {
	h.submit(ctx, h.svc.SubmitLoanPayment, "Loan payment submitted")
}

func (h *PaymentHandler) CreatePenaltyPayment(ctx *xhttp.RequestCtx) {
	h.submit(ctx, h.svc.SubmitPenaltyPayment, "Penalty payment submitted")
}

func (h *PaymentHandler) submit(ctx *xhttp.RequestCtx, fn func(context.Context, model.PaymentCreateRequest) (*model.Payment, error), okMessage string) {
	var req model.PaymentCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	payment, err := fn(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusCreated, submitResponse{
		Success:        true,
		TransactionRef: payment.TransactionRef,
		Status:         string(payment.Status),
		Message:        okMessage,
	})
}

// PaymentHistory lists everything the user has paid. Opening the history
// also kicks off a background reconciliation of their pending mobile
// money payments, so a record stuck by a dropped poll chain eventually
// resolves when the user comes looking for it.
func (h *PaymentHandler) PaymentHistory(ctx *xhttp.RequestCtx) {
	userID, err := pathInt64(ctx, "user_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid user_id")
		return
	}

	f := model.PaymentFilter{UserID: &userID, Desc: true}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	if h.reconciler != nil {
		go func(uid int64) {
			rctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if _, err := h.reconciler.ReconcileUser(rctx, uid); err != nil {
				logger.Warn("history-triggered reconciliation failed", "error", err, "user_id", uid)
			}
		}(userID)
	}

	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

func (h *PaymentHandler) ListPayments(ctx *xhttp.RequestCtx) {
	var f model.PaymentFilter

	if v := query(ctx, "user_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "tontine_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.TontineID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.PaymentStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "kind"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Kinds = append(f.Kinds, model.PaymentKind(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

func (h *PaymentHandler) GetPayment(ctx *xhttp.RequestCtx) {
	ref := pathString(ctx, "ref")
	payment, err := h.svc.GetPayment(ctx, ref)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, payment)
}

// UpdateStatus is the manual admin path for payments the poller could not
// resolve. The same pending-only transition rules apply.
func (h *PaymentHandler) UpdateStatus(ctx *xhttp.RequestCtx) {
	ref := pathString(ctx, "ref")

	var req updateStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	var (
		transitioned bool
		err          error
	)
	switch model.PaymentStatus(strings.ToLower(req.Status)) {
	case model.PaymentStatusApproved:
		transitioned, err = h.svc.ConfirmPayment(ctx, ref)
	case model.PaymentStatusFailed:
		reason := req.Reason
		if reason == "" {
			reason = "manually marked as failed"
		}
		transitioned, err = h.svc.FailPayment(ctx, ref, reason)
	default:
		writeError(ctx, xhttp.StatusBadRequest, "status must be approved or failed")
		return
	}
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	writeJSON(ctx, xhttp.StatusOK, map[string]interface{}{
		"success":      true,
		"transitioned": transitioned,
	})
}

/* --------------------------------- helpers ----------------------------------- */

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case services.IsValidation(err), services.IsRejected(err):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case err == services.ErrNotFound:
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case err == services.ErrNoApprovedLoan,
		err == services.ErrPenaltyAlreadySettled,
		err == services.ErrExceedsOutstanding:
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case gateway.IsTransportError(err):
		writeError(ctx, xhttp.StatusBadGateway, "payment gateway unreachable, please try again")
	default:
		logger.Error("unhandled service error", "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathString(ctx *xhttp.RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	return strconv.ParseInt(pathString(ctx, name), 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
