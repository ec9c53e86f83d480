package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ikimina/tontine-gateway/internal/gateway"
	"github.com/ikimina/tontine-gateway/internal/model"
	"github.com/ikimina/tontine-gateway/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

/* --------------------------------- fakes ----------------------------------- */

type fakeService struct {
	submitted  []model.PaymentCreateRequest
	submitErr  error
	payment    *model.Payment
	confirmed  []string
	failed     []string
	listFilter model.PaymentFilter
	listItems  []*model.Payment
	listTotal  int64
}

func (f *fakeService) submit(p model.PaymentCreateRequest) (*model.Payment, error) {
	f.submitted = append(f.submitted, p)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return f.payment, nil
}

func (f *fakeService) SubmitContribution(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error) {
	return f.submit(p)
}

func (f *fakeService) SubmitLoanPayment(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error) {
	return f.submit(p)
}

func (f *fakeService) SubmitPenaltyPayment(ctx context.Context, p model.PaymentCreateRequest) (*model.Payment, error) {
	return f.submit(p)
}

func (f *fakeService) ConfirmPayment(ctx context.Context, ref string) (bool, error) {
	f.confirmed = append(f.confirmed, ref)
	return true, nil
}

func (f *fakeService) FailPayment(ctx context.Context, ref string, reason string) (bool, error) {
	f.failed = append(f.failed, ref+":"+reason)
	return true, nil
}

func (f *fakeService) GetPayment(ctx context.Context, ref string) (*model.Payment, error) {
	if f.payment == nil {
		return nil, services.ErrNotFound
	}
	return f.payment, nil
}

func (f *fakeService) List(ctx context.Context, filter model.PaymentFilter) ([]*model.Payment, int64, error) {
	f.listFilter = filter
	return f.listItems, f.listTotal, nil
}

type fakeReconciler struct {
	called chan int64
}

func (f *fakeReconciler) ReconcileUser(ctx context.Context, userID int64) (int, error) {
	f.called <- userID
	return 0, nil
}

func testPayment() *model.Payment {
	return &model.Payment{
		ID:             1,
		UserID:         5,
		TontineID:      10,
		Kind:           model.PaymentKindContribution,
		Amount:         5000,
		TransactionRef: "abc123",
		Status:         model.PaymentStatusPending,
	}
}

func postCtx(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetBodyString(body)
	return ctx
}

func decodeBody(t *testing.T, ctx *fasthttp.RequestCtx, dst any) {
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), dst))
}

/* --------------------------------- tests ----------------------------------- */

func TestPaymentHandler_CreateContribution(t *testing.T) {
	t.Run("accepted payment returns 201 with the reference", func(t *testing.T) {
		svc := &fakeService{payment: testPayment()}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"user_id":5,"tontine_id":10,"amount":5000,"phone_number":"0781234567","payment_method":"mobile_money"}`)
		h.CreateContribution(ctx)

		assert.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())

		var resp submitResponse
		decodeBody(t, ctx, &resp)
		assert.True(t, resp.Success)
		assert.Equal(t, "abc123", resp.TransactionRef)
		assert.Equal(t, "pending", resp.Status)

		require.Len(t, svc.submitted, 1)
		assert.Equal(t, int64(5), svc.submitted[0].UserID)
	})

	t.Run("malformed JSON returns 400", func(t *testing.T) {
		h := NewPaymentHandler(&fakeService{}, nil)

		ctx := postCtx(`{"user_id":`)
		h.CreateContribution(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("validation error returns 400", func(t *testing.T) {
		svc := &fakeService{submitErr: &services.ValidationError{Err: errors.New("amount must be greater than zero")}}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"user_id":5,"tontine_id":10,"amount":0}`)
		h.CreateContribution(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("gateway rejection returns 400 with the message", func(t *testing.T) {
		svc := &fakeService{submitErr: &services.RejectedError{Message: "Insufficient funds"}}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"user_id":5,"tontine_id":10,"amount":5000,"phone_number":"0781234567","payment_method":"mobile_money"}`)
		h.CreateContribution(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

		var resp map[string]string
		decodeBody(t, ctx, &resp)
		assert.Contains(t, resp["error"], "Insufficient funds")
	})

	t.Run("unreachable gateway returns 502", func(t *testing.T) {
		svc := &fakeService{submitErr: &gateway.TransportError{Err: errors.New("timeout")}}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"user_id":5,"tontine_id":10,"amount":5000,"phone_number":"0781234567","payment_method":"mobile_money"}`)
		h.CreateContribution(ctx)

		assert.Equal(t, fasthttp.StatusBadGateway, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_CreateLoanPayment(t *testing.T) {
	t.Run("no approved loan returns 400", func(t *testing.T) {
		svc := &fakeService{submitErr: services.ErrNoApprovedLoan}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"user_id":5,"tontine_id":10,"loan_id":3,"amount":5000,"phone_number":"0781234567","payment_method":"mobile_money"}`)
		h.CreateLoanPayment(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("unknown loan returns 404", func(t *testing.T) {
		svc := &fakeService{submitErr: services.ErrNotFound}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"user_id":5,"tontine_id":10,"loan_id":999,"amount":5000,"phone_number":"0781234567","payment_method":"mobile_money"}`)
		h.CreateLoanPayment(ctx)

		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_PaymentHistory(t *testing.T) {
	t.Run("lists the user's payments and triggers reconciliation", func(t *testing.T) {
		svc := &fakeService{listItems: []*model.Payment{testPayment()}, listTotal: 1}
		rec := &fakeReconciler{called: make(chan int64, 1)}
		h := NewPaymentHandler(svc, rec)

		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(fasthttp.MethodGet)
		ctx.SetUserValue("user_id", "5")
		h.PaymentHistory(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

		var resp listResponse
		decodeBody(t, ctx, &resp)
		assert.Equal(t, int64(1), resp.Total)
		require.Len(t, resp.Items, 1)

		require.NotNil(t, svc.listFilter.UserID)
		assert.Equal(t, int64(5), *svc.listFilter.UserID)
		assert.True(t, svc.listFilter.Desc)

		select {
		case uid := <-rec.called:
			assert.Equal(t, int64(5), uid)
		case <-time.After(time.Second):
			t.Fatal("reconciliation never triggered")
		}
	})

	t.Run("junk user id returns 400", func(t *testing.T) {
		h := NewPaymentHandler(&fakeService{}, nil)

		ctx := &fasthttp.RequestCtx{}
		ctx.SetUserValue("user_id", "abc")
		h.PaymentHistory(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_ListPayments(t *testing.T) {
	t.Run("parses the filters", func(t *testing.T) {
		svc := &fakeService{}
		h := NewPaymentHandler(svc, nil)

		ctx := &fasthttp.RequestCtx{}
		ctx.Request.Header.SetMethod(fasthttp.MethodGet)
		ctx.Request.SetRequestURI("/payments?user_id=5&status=pending,approved&kind=contribution&limit=10&offset=20&order=desc")
		h.ListPayments(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

		require.NotNil(t, svc.listFilter.UserID)
		assert.Equal(t, int64(5), *svc.listFilter.UserID)
		assert.Equal(t, []model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusApproved}, svc.listFilter.Statuses)
		assert.Equal(t, []model.PaymentKind{model.PaymentKindContribution}, svc.listFilter.Kinds)
		assert.Equal(t, 10, svc.listFilter.Limit)
		assert.Equal(t, 20, svc.listFilter.Offset)
		assert.True(t, svc.listFilter.Desc)
	})
}

func TestPaymentHandler_GetPayment(t *testing.T) {
	t.Run("unknown reference returns 404", func(t *testing.T) {
		h := NewPaymentHandler(&fakeService{}, nil)

		ctx := &fasthttp.RequestCtx{}
		ctx.SetUserValue("ref", "nope")
		h.GetPayment(ctx)

		assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
	})
}

func TestPaymentHandler_UpdateStatus(t *testing.T) {
	t.Run("approved delegates to ConfirmPayment", func(t *testing.T) {
		svc := &fakeService{}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"status":"approved"}`)
		ctx.SetUserValue("ref", "abc123")
		h.UpdateStatus(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, []string{"abc123"}, svc.confirmed)
	})

	t.Run("failed delegates to FailPayment with the reason", func(t *testing.T) {
		svc := &fakeService{}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"status":"failed","reason":"duplicate charge"}`)
		ctx.SetUserValue("ref", "abc123")
		h.UpdateStatus(ctx)

		assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
		assert.Equal(t, []string{"abc123:duplicate charge"}, svc.failed)
	})

	t.Run("unknown status returns 400", func(t *testing.T) {
		svc := &fakeService{}
		h := NewPaymentHandler(svc, nil)

		ctx := postCtx(`{"status":"maybe"}`)
		ctx.SetUserValue("ref", "abc123")
		h.UpdateStatus(ctx)

		assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
		assert.Empty(t, svc.confirmed)
		assert.Empty(t, svc.failed)
	})
}
