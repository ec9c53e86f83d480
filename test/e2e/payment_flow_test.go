package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ikimina/tontine-gateway/internal/events"
	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/internal/poller"
	"github.com/ikimina/tontine-gateway/internal/repository"
	"github.com/ikimina/tontine-gateway/internal/services"
	"github.com/ikimina/tontine-gateway/pkg/pg"
	"github.com/ikimina/tontine-gateway/test/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLanari is a scripted stand-in for the payment gateway. Initiation
// hands out a transaction id, status answers "pending" until confirmAfter
// checks have happened, then the scripted verdict.
type mockLanari struct {
	mu           sync.Mutex
	statusCalls  int
	confirmAfter int
	failWith     string
	rejectWith   string
	lastTxnID    string
}

func (m *mockLanari) server() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/process.php", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.rejectWith != "" {
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"status":  "failed",
				"message": m.rejectWith,
			})
			return
		}
		m.lastTxnID = "LP-e2e-1"
		json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"status":         "pending",
			"message":        "Payment initiated successfully",
			"transaction_id": m.lastTxnID,
		})
	})
	mux.HandleFunc("/status.php", func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.statusCalls++
		if m.statusCalls <= m.confirmAfter {
			json.NewEncoder(w).Encode(map[string]any{
				"success": true,
				"status":  "pending",
				"message": "Awaiting customer approval",
			})
			return
		}
		if m.failWith != "" {
			json.NewEncoder(w).Encode(map[string]any{
				"success": false,
				"status":  "failed",
				"message": m.failWith,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success":        true,
			"status":         "success",
			"message":        "Payment completed successfully",
			"transaction_id": m.lastTxnID,
		})
	})
	return httptest.NewServer(mux)
}

type TestEnvironment struct {
	DB             *pg.DB
	Lanari         *mockLanari
	LanariServer   *httptest.Server
	PaymentRepo    *repository.PaymentRepository
	PollJobRepo    *repository.PollJobRepository
	LoanRepo       *repository.LoanRepository
	PenaltyRepo    *repository.PenaltyRepository
	PaymentService *services.PaymentService
	Poller         *poller.Poller

	cancelPoller context.CancelFunc
}

func setupE2EEnvironment(t *testing.T, lanari *mockLanari) *TestEnvironment {
	db := helpers.SetupTestDB(t)
	_, redisAdapter := helpers.SetupTestRedis(t)

	srv := lanari.server()
	gw, err := gateway.NewClient(&gateway.Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		APISecret: "test-secret",
	})
	require.NoError(t, err)

	paymentRepo := repository.NewPaymentRepository(db)
	pollJobRepo := repository.NewPollJobRepository(db)
	loanRepo := repository.NewLoanRepository(db)
	penaltyRepo := repository.NewPenaltyRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notifier := events.NewNotifier(redisAdapter)

	paymentService := services.NewPaymentService(
		paymentRepo, pollJobRepo, loanRepo, penaltyRepo, notificationRepo,
		gw, notifier,
		services.PollConfig{InitialDelay: 20 * time.Millisecond, MaxAttempts: 5},
	)

	p := poller.New(pollJobRepo, gw, paymentService, poller.Config{
		Interval:     30 * time.Millisecond,
		TickInterval: 20 * time.Millisecond,
		BatchSize:    10,
		Workers:      2,
	})

	return &TestEnvironment{
		DB:             db,
		Lanari:         lanari,
		LanariServer:   srv,
		PaymentRepo:    paymentRepo,
		PollJobRepo:    pollJobRepo,
		LoanRepo:       loanRepo,
		PenaltyRepo:    penaltyRepo,
		PaymentService: paymentService,
		Poller:         p,
	}
}

func (env *TestEnvironment) StartPoller() {
	ctx, cancel := context.WithCancel(context.Background())
	env.cancelPoller = cancel
	go func() {
		_ = env.Poller.Run(ctx)
	}()
}

func (env *TestEnvironment) Cleanup() {
	if env.cancelPoller != nil {
		env.cancelPoller()
	}
	time.Sleep(50 * time.Millisecond)
	env.LanariServer.Close()
}

func validContribution(userID int64) model.PaymentCreateRequest {
	return model.PaymentCreateRequest{
		UserID:      userID,
		TontineID:   10,
		Amount:      5000,
		PhoneNumber: "0781234567",
		Method:      services.MethodMobileMoney,
	}
}

func TestE2E_ContributionConfirmedByPoller(t *testing.T) {
	env := setupE2EEnvironment(t, &mockLanari{confirmAfter: 2})
	defer env.Cleanup()

	ctx := context.Background()

	payment, err := env.PaymentService.SubmitContribution(ctx, validContribution(1))
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, payment.Status)
	assert.Len(t, payment.TransactionRef, 32)

	job, err := env.PollJobRepo.GetByRef(ctx, payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, model.PollJobStatusScheduled, job.Status)
	assert.Equal(t, "LP-e2e-1", job.GatewayTxnID)

	env.StartPoller()

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		p, err := env.PaymentService.GetPayment(ctx, payment.TransactionRef)
		return err == nil && p.Status == model.PaymentStatusApproved
	}, "payment never confirmed")

	job, err = env.PollJobRepo.GetByRef(ctx, payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, model.PollJobStatusDone, job.Status)

	var notifCount int64
	env.DB.Read(ctx).Model(&repository.NotificationEntity{}).Where("user_id = ?", 1).Count(&notifCount)
	assert.Equal(t, int64(1), notifCount)
}

func TestE2E_ContributionDeclinedByCustomer(t *testing.T) {
	env := setupE2EEnvironment(t, &mockLanari{confirmAfter: 1, failWith: "Customer declined the payment prompt"})
	defer env.Cleanup()

	ctx := context.Background()

	payment, err := env.PaymentService.SubmitContribution(ctx, validContribution(2))
	require.NoError(t, err)

	env.StartPoller()

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		p, err := env.PaymentService.GetPayment(ctx, payment.TransactionRef)
		return err == nil && p.Status == model.PaymentStatusFailed
	}, "payment never failed")

	p, err := env.PaymentService.GetPayment(ctx, payment.TransactionRef)
	require.NoError(t, err)
	assert.Equal(t, "Customer declined the payment prompt", p.FailureReason)

	var notifCount int64
	env.DB.Read(ctx).Model(&repository.NotificationEntity{}).Where("user_id = ?", 2).Count(&notifCount)
	assert.Zero(t, notifCount)
}

func TestE2E_RejectedInitiationPersistsNothing(t *testing.T) {
	env := setupE2EEnvironment(t, &mockLanari{rejectWith: "Invalid API credentials"})
	defer env.Cleanup()

	ctx := context.Background()

	_, err := env.PaymentService.SubmitContribution(ctx, validContribution(3))
	require.Error(t, err)
	assert.True(t, services.IsRejected(err))

	var paymentCount, jobCount int64
	env.DB.Read(ctx).Model(&repository.PaymentEntity{}).Count(&paymentCount)
	env.DB.Read(ctx).Model(&repository.PollJobEntity{}).Count(&jobCount)
	assert.Zero(t, paymentCount)
	assert.Zero(t, jobCount)
}

func TestE2E_CashContributionAutoApproves(t *testing.T) {
	env := setupE2EEnvironment(t, &mockLanari{})
	defer env.Cleanup()

	ctx := context.Background()

	req := validContribution(4)
	req.Method = "cash"
	req.PhoneNumber = ""

	payment, err := env.PaymentService.SubmitContribution(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusApproved, payment.Status)

	var jobCount int64
	env.DB.Read(ctx).Model(&repository.PollJobEntity{}).Count(&jobCount)
	assert.Zero(t, jobCount)
}

func TestE2E_LoanRepaymentSettlesLoan(t *testing.T) {
	env := setupE2EEnvironment(t, &mockLanari{confirmAfter: 1})
	defer env.Cleanup()

	ctx := context.Background()

	loan := helpers.CreateTestLoan(t, env.DB, 5, 10, 20000, "approved")

	req := validContribution(5)
	req.LoanID = loan.ID
	req.Amount = 20000

	payment, err := env.PaymentService.SubmitLoanPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentKindLoanPayment, payment.Kind)

	env.StartPoller()

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		l, err := env.LoanRepo.GetByID(ctx, loan.ID)
		return err == nil && l.Status == model.LoanStatusRepaid
	}, "loan never settled")

	l, err := env.LoanRepo.GetByID(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20000), l.AmountRepaid)
}

func TestE2E_PenaltyPaymentMarksPenaltyPaid(t *testing.T) {
	env := setupE2EEnvironment(t, &mockLanari{confirmAfter: 1})
	defer env.Cleanup()

	ctx := context.Background()

	penalty := helpers.CreateTestPenalty(t, env.DB, 6, 10, 1000)

	req := validContribution(6)
	req.PenaltyID = penalty.ID
	req.Amount = 0 // the penalty dictates the amount

	payment, err := env.PaymentService.SubmitPenaltyPayment(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), payment.Amount)

	env.StartPoller()

	helpers.AssertEventually(t, 3*time.Second, func() bool {
		p, err := env.PenaltyRepo.GetByID(ctx, penalty.ID)
		return err == nil && p.Status == model.PenaltyStatusPaid
	}, "penalty never settled")
}
