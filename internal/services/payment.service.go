package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ikimina/tontine-gateway/internal/events"
	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/internal/repository"
	"github.com/ikimina/tontine-gateway/pkg/logger"
	"github.com/ikimina/tontine-gateway/pkg/prom"
)

// MethodMobileMoney is the only method with asynchronous confirmation.
// Everything else is auto-approved at submission.
const MethodMobileMoney = model.MethodMobileMoney

const (
	defaultPollInitialDelay = 10 * time.Second
	defaultPollMaxAttempts  = 10
)

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) (*model.Payment, error)
	GetByRef(ctx context.Context, ref string) (*model.Payment, error)
	MarkApproved(ctx context.Context, ref string) (bool, error)
	MarkFailed(ctx context.Context, ref string, reason string) (bool, error)
	List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) // results, totalCount
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type PollJobRepository interface {
	Create(ctx context.Context, job *model.PollJob) (*model.PollJob, error)
}

type LoanRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Loan, error)
	ApplyRepayment(ctx context.Context, id int64, amount int64) error
}

type PenaltyRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Penalty, error)
	MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) (*model.Notification, error)
}

type GatewayClient interface {
	Initiate(ctx context.Context, req *gateway.InitiateRequest) (*gateway.Response, error)
	QueryStatus(ctx context.Context, transactionID string) (*gateway.Response, error)
}

type EventPublisher interface {
	PublishToGroup(ctx context.Context, tontineID int64, event *events.PaymentEvent) error
	PublishToUser(ctx context.Context, userID int64, event *events.PaymentEvent) error
	PublishRefresh(ctx context.Context, userID int64, viewType string) error
}

// PollConfig tunes the polling schedule attached to newly accepted
// payments.
type PollConfig struct {
	InitialDelay time.Duration
	MaxAttempts  int
}

// PaymentService drives a payment from request to settled ledger row:
// validate, initiate with the gateway, persist, schedule polling, settle
// on confirmation.
type PaymentService struct {
	payments      PaymentRepository
	pollJobs      PollJobRepository
	loans         LoanRepository
	penalties     PenaltyRepository
	notifications NotificationRepository
	gateway       GatewayClient
	notifier      EventPublisher

	pollInitialDelay time.Duration
	pollMaxAttempts  int
}

func NewPaymentService(
	payments PaymentRepository,
	pollJobs PollJobRepository,
	loans LoanRepository,
	penalties PenaltyRepository,
	notifications NotificationRepository,
	gw GatewayClient,
	notifier EventPublisher,
	poll PollConfig,
) *PaymentService {
	if poll.InitialDelay <= 0 {
		poll.InitialDelay = defaultPollInitialDelay
	}
	if poll.MaxAttempts <= 0 {
		poll.MaxAttempts = defaultPollMaxAttempts
	}
	return &PaymentService{
		payments:         payments,
		pollJobs:         pollJobs,
		loans:            loans,
		penalties:        penalties,
		notifications:    notifications,
		gateway:          gw,
		notifier:         notifier,
		pollInitialDelay: poll.InitialDelay,
		pollMaxAttempts:  poll.MaxAttempts,
	}
}

func (s *PaymentService) SubmitContribution(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error) {
	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	payment := &model.Payment{
		UserID:      p.UserID,
		TontineID:   p.TontineID,
		Kind:        model.PaymentKindContribution,
		Amount:      p.Amount,
		PhoneNumber: p.PhoneNumber,
		Method:      p.Method,
	}
	return s.submit(ctx, payment, "Tontine contribution")
}

func (s *PaymentService) SubmitLoanPayment(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error) {
	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}
	if p.LoanID == 0 {
		return nil, &ValidationError{Err: errors.New("loan_id is required")}
	}

	loan, err := s.loans.GetByID(ctx, p.LoanID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load loan: %w", err)
	}
	if loan.Status != model.LoanStatusApproved {
		return nil, ErrNoApprovedLoan
	}
	if p.Amount > loan.Outstanding() {
		return nil, ErrExceedsOutstanding
	}

	loanID := loan.ID
	payment := &model.Payment{
		UserID:      p.UserID,
		TontineID:   loan.TontineID,
		LoanID:      &loanID,
		Kind:        model.PaymentKindLoanPayment,
		Amount:      p.Amount,
		PhoneNumber: p.PhoneNumber,
		Method:      p.Method,
	}
	return s.submit(ctx, payment, "Loan repayment")
}

func (s *PaymentService) SubmitPenaltyPayment(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error) {
	if p.PenaltyID == 0 {
		return nil, &ValidationError{Err: errors.New("penalty_id is required")}
	}

	penalty, err := s.penalties.GetByID(ctx, p.PenaltyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load penalty: %w", err)
	}
	if penalty.Status == model.PenaltyStatusPaid {
		return nil, ErrPenaltyAlreadySettled
	}

	// the penalty dictates the amount, the client cannot underpay it
	p.Amount = penalty.Amount
	if err := p.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	penaltyID := penalty.ID
	payment := &model.Payment{
		UserID:         p.UserID,
		TontineID:      penalty.TontineID,
		PenaltyID:      &penaltyID,
		Kind:           model.PaymentKindPenalty,
		Amount:         penalty.Amount,
		PhoneNumber:    p.PhoneNumber,
		Method:         p.Method,
		TransactionRef: NewPenaltyRef(penalty.ID),
	}
	return s.submit(ctx, payment, "Tontine penalty")
}

func (s *PaymentService) submit(ctx context.Context, payment *model.Payment, description string) (*model.Payment, error) {
	if payment.TransactionRef == "" {
		ref, err := NewTransactionRef()
		if err != nil {
			return nil, fmt.Errorf("generate transaction ref: %w", err)
		}
		payment.TransactionRef = ref
	}

	s.publishGroup(ctx, payment.TontineID, &events.PaymentEvent{
		Event:          events.EventPaymentStatus,
		UserID:         payment.UserID,
		Status:         "initiated",
		TransactionRef: payment.TransactionRef,
		Message:        "Payment request sent to gateway",
	})

	if payment.Method != MethodMobileMoney {
		return s.autoApprove(ctx, payment)
	}

	resp, err := s.gateway.Initiate(ctx, &gateway.InitiateRequest{
		Amount:      payment.Amount,
		PhoneNumber: payment.PhoneNumber,
		Description: description,
	})
	if err != nil {
		s.publishGroup(ctx, payment.TontineID, &events.PaymentEvent{
			Event:          events.EventPaymentStatus,
			UserID:         payment.UserID,
			Status:         "error",
			TransactionRef: payment.TransactionRef,
			Message:        "Payment gateway unreachable",
		})
		return nil, err
	}

	if !gateway.InitiationAccepted(resp) {
		prom.IncPaymentRejected(string(payment.Kind))
		s.publishGroup(ctx, payment.TontineID, &events.PaymentEvent{
			Event:          events.EventPaymentStatus,
			UserID:         payment.UserID,
			Status:         "failed",
			TransactionRef: payment.TransactionRef,
			Message:        resp.Message,
		})
		return nil, &RejectedError{Message: resp.Message}
	}

	payment.Status = model.PaymentStatusPending

	var created *model.Payment
	err = s.payments.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.payments.Create(ctx, payment)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		created = c

		_, err = s.pollJobs.Create(ctx, &model.PollJob{
			PaymentID:      c.ID,
			TransactionRef: c.TransactionRef,
			GatewayTxnID:   gateway.RealTransactionID(resp),
			MaxAttempts:    s.pollMaxAttempts,
			NextRunAt:      time.Now().Add(s.pollInitialDelay),
			Status:         model.PollJobStatusScheduled,
		})
		if err != nil {
			return fmt.Errorf("create poll job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	prom.IncPaymentInitiated(string(created.Kind), created.Method)
	logger.Info("payment initiated",
		"ref", created.TransactionRef,
		"kind", string(created.Kind),
		"amount", created.Amount,
		"user_id", created.UserID)

	return created, nil
}

// autoApprove covers methods settled out of band (cash at a meeting, bank
// slip): the record goes straight to approved and settles immediately.
func (s *PaymentService) autoApprove(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	payment.Status = model.PaymentStatusApproved

	var created *model.Payment
	err := s.payments.WithinTransaction(ctx, func(ctx context.Context) error {
		c, err := s.payments.Create(ctx, payment)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		created = c
		return s.settle(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	prom.IncPaymentInitiated(string(created.Kind), created.Method)
	s.publishSettled(ctx, created)
	return created, nil
}

// ConfirmPayment flips a pending payment to approved and settles whatever
// the payment was for. Reports whether the transition happened; a repeat
// call is a clean no-op, so overlapping poll attempts and the manual
// reconciliation path cannot double-settle or double-notify.
func (s *PaymentService) ConfirmPayment(ctx context.Context, ref string) (bool, error) {
	payment, err := s.payments.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}

	var transitioned bool
	err = s.payments.WithinTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.payments.MarkApproved(ctx, ref)
		if err != nil {
			return err
		}
		transitioned = ok
		if !ok {
			return nil
		}
		return s.settle(ctx, payment)
	})
	if err != nil {
		return false, err
	}
	if !transitioned {
		return false, nil
	}

	prom.IncPaymentConfirmed()
	prom.AddConfirmationLatency(time.Since(payment.CreatedAt).Seconds())
	logger.Info("payment confirmed", "ref", ref, "kind", string(payment.Kind))

	payment.Status = model.PaymentStatusApproved
	s.publishSettled(ctx, payment)
	return true, nil
}

// FailPayment flips a pending payment to failed. Same idempotence rules as
// ConfirmPayment.
func (s *PaymentService) FailPayment(ctx context.Context, ref string, reason string) (bool, error) {
	payment, err := s.payments.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}

	ok, err := s.payments.MarkFailed(ctx, ref, reason)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	prom.IncPaymentFailed()
	logger.Warn("payment failed", "ref", ref, "reason", reason)

	s.publishGroup(ctx, payment.TontineID, &events.PaymentEvent{
		Event:          statusEventFor(payment.Kind),
		UserID:         payment.UserID,
		Status:         string(model.PaymentStatusFailed),
		TransactionRef: ref,
		Message:        reason,
	})
	return true, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, ref string) (*model.Payment, error) {
	payment, err := s.payments.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return payment, nil
}

func (s *PaymentService) List(ctx context.Context, f model.PaymentFilter) ([]*model.Payment, int64, error) {
	return s.payments.List(ctx, f)
}

// PendingMobileMoney returns the user's pending mobile money payments, the
// candidates for manual reconciliation.
func (s *PaymentService) PendingMobileMoney(ctx context.Context, userID int64) ([]*model.Payment, error) {
	uid := userID
	items, _, err := s.payments.List(ctx, model.PaymentFilter{
		UserID:   &uid,
		Statuses: []model.PaymentStatus{model.PaymentStatusPending},
		Limit:    100,
	})
	if err != nil {
		return nil, err
	}
	pending := items[:0]
	for _, p := range items {
		if p.Method == MethodMobileMoney {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// settle applies the side effects of an approved payment. Runs inside the
// same transaction as the status flip.
func (s *PaymentService) settle(ctx context.Context, payment *model.Payment) error {
	switch payment.Kind {
	case model.PaymentKindLoanPayment:
		if payment.LoanID != nil {
			if err := s.loans.ApplyRepayment(ctx, *payment.LoanID, payment.Amount); err != nil {
				return fmt.Errorf("apply loan repayment: %w", err)
			}
		}
	case model.PaymentKindPenalty:
		if payment.PenaltyID != nil {
			if _, err := s.penalties.MarkPaid(ctx, *payment.PenaltyID, time.Now()); err != nil {
				return fmt.Errorf("settle penalty: %w", err)
			}
		}
	}

	_, err := s.notifications.Create(ctx, settlementNotification(payment))
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func settlementNotification(payment *model.Payment) *model.Notification {
	switch payment.Kind {
	case model.PaymentKindLoanPayment:
		return &model.Notification{
			UserID:  payment.UserID,
			Title:   "Loan Payment Successful",
			Message: fmt.Sprintf("Your loan payment of RWF %d has been approved successfully.", payment.Amount),
			Type:    "success",
		}
	case model.PaymentKindPenalty:
		return &model.Notification{
			UserID:  payment.UserID,
			Title:   "Penalty Paid",
			Message: fmt.Sprintf("Your penalty of RWF %d has been settled.", payment.Amount),
			Type:    "success",
		}
	default:
		return &model.Notification{
			UserID:  payment.UserID,
			Title:   "Contribution Successful",
			Message: fmt.Sprintf("Your contribution of RWF %d has been approved successfully.", payment.Amount),
			Type:    "success",
		}
	}
}

func statusEventFor(kind model.PaymentKind) string {
	switch kind {
	case model.PaymentKindLoanPayment:
		return events.EventLoanPaymentUpdated
	case model.PaymentKindPenalty:
		return events.EventPenaltyPaid
	default:
		return events.EventPaymentStatusUpdated
	}
}

func refreshViewFor(kind model.PaymentKind) string {
	switch kind {
	case model.PaymentKindLoanPayment:
		return "loan-payment"
	case model.PaymentKindPenalty:
		return "penalty"
	default:
		return "contribution"
	}
}

func (s *PaymentService) publishSettled(ctx context.Context, payment *model.Payment) {
	s.publishGroup(ctx, payment.TontineID, &events.PaymentEvent{
		Event:          statusEventFor(payment.Kind),
		UserID:         payment.UserID,
		Status:         string(payment.Status),
		TransactionRef: payment.TransactionRef,
		Message:        "Payment confirmed",
	})
	if err := s.notifier.PublishRefresh(ctx, payment.UserID, refreshViewFor(payment.Kind)); err != nil {
		logger.Warn("refresh event dropped", "error", err, "user_id", payment.UserID)
	}
}

func (s *PaymentService) publishGroup(ctx context.Context, tontineID int64, event *events.PaymentEvent) {
	if err := s.notifier.PublishToGroup(ctx, tontineID, event); err != nil {
		logger.Warn("group event dropped", "error", err, "channel", events.GroupChannel(tontineID), "event", event.Event)
	}
}
