package poller

import (
	"context"
	"time"

	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/pkg/logger"
	"github.com/ikimina/tontine-gateway/pkg/redis"
)

const reconcileLockPrefix = "reconcile:"

type PendingLister interface {
	PendingMobileMoney(ctx context.Context, userID int64) ([]*model.Payment, error)
}

// Reconciler re-checks a user's pending mobile money payments on demand,
// typically when they open their payment history. A short redis lock per
// reference keeps repeated requests and the background poller from
// hammering the gateway with duplicate checks; the ledger's transition
// rules make any overlap harmless anyway.
type Reconciler struct {
	payments PendingLister
	gateway  StatusClient
	settler  PaymentSettler
	redis    redis.RedisAdapter
	lockTTL  time.Duration
}

func NewReconciler(payments PendingLister, gw StatusClient, settler PaymentSettler, r redis.RedisAdapter, lockTTL time.Duration) *Reconciler {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &Reconciler{
		payments: payments,
		gateway:  gw,
		settler:  settler,
		redis:    r,
		lockTTL:  lockTTL,
	}
}

// ReconcileUser checks every pending mobile money payment of the user and
// settles the ones the gateway has a verdict for. Returns how many rows
// changed.
func (r *Reconciler) ReconcileUser(ctx context.Context, userID int64) (int, error) {
	pending, err := r.payments.PendingMobileMoney(ctx, userID)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, payment := range pending {
		locked, err := r.redis.SetNX(reconcileLockPrefix+payment.TransactionRef, []byte("1"), r.lockTTL)
		if err != nil {
			logger.Warn("reconcile lock unavailable", "error", err, "ref", payment.TransactionRef)
			continue
		}
		if !locked {
			continue // someone else is already checking this one
		}

		if r.reconcile(ctx, payment) {
			settled++
		}
	}
	return settled, nil
}

func (r *Reconciler) reconcile(ctx context.Context, payment *model.Payment) bool {
	resp, err := r.gateway.QueryStatus(ctx, payment.TransactionRef)
	if err != nil {
		logger.Warn("reconcile status check failed", "error", err, "ref", payment.TransactionRef)
		return false
	}

	switch gateway.ClassifyStatus(resp) {
	case gateway.StatusConfirmed:
		ok, err := r.settler.ConfirmPayment(ctx, payment.TransactionRef)
		if err != nil {
			logger.Error("reconcile confirm failed", "error", err, "ref", payment.TransactionRef)
			return false
		}
		return ok
	case gateway.StatusFailed:
		ok, err := r.settler.FailPayment(ctx, payment.TransactionRef, failureReason(resp))
		if err != nil {
			logger.Error("reconcile fail failed", "error", err, "ref", payment.TransactionRef)
			return false
		}
		return ok
	}
	return false
}
