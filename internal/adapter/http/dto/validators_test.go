package dto

import (
	"encoding/json"
	"testing"
	"time"

	"tipjar/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := CreatePaymentIntentRequest{RecipientID: "  bob  ", RecipientName: " Bob "}
	SanitizeStruct(&req)

	assert.Equal(t, "bob", req.RecipientID)
	assert.Equal(t, "Bob", req.RecipientName)
}

func TestSanitizeStruct_KeepsValuesVerbatim(t *testing.T) {
	req := CreatePaymentIntentRequest{RecipientID: "bob", RecipientName: " Tom & Jerry's <b> "}
	SanitizeStruct(&req)

	assert.Equal(t, "Tom & Jerry's <b>", req.RecipientName)

	cust := CreateCustomerRequest{Email: "o'neil@x.com"}
	SanitizeStruct(&cust)
	assert.Equal(t, "o'neil@x.com", cust.Email)
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	name := "  Alice  "
	req := struct{ Name *string }{Name: &name}
	SanitizeStruct(&req)
	assert.Equal(t, "Alice", *req.Name)
}

func TestSanitizeStruct_NonPointerIgnored(t *testing.T) {
	req := CreateCustomerRequest{Email: " a@b.c "}
	SanitizeStruct(req)
	assert.Equal(t, " a@b.c ", req.Email)
}

// --- binding validators ---

func TestCreatePaymentIntentRequest_Binding(t *testing.T) {
	tests := []struct {
		name    string
		req     CreatePaymentIntentRequest
		wantErr bool
	}{
		{"valid", CreatePaymentIntentRequest{Amount: 500, RecipientID: "bob"}, false},
		{"valid with currency", CreatePaymentIntentRequest{Amount: 50, Currency: "EUR", RecipientID: "bob"}, false},
		{"below minimum", CreatePaymentIntentRequest{Amount: 49, RecipientID: "bob"}, true},
		{"bad currency", CreatePaymentIntentRequest{Amount: 500, Currency: "us1", RecipientID: "bob"}, true},
		{"missing recipient", CreatePaymentIntentRequest{Amount: 500}, true},
		{"unsafe recipient", CreatePaymentIntentRequest{Amount: 500, RecipientID: "bob/../x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := binding.Validator.ValidateStruct(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreateCustomerRequest_Binding(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&CreateCustomerRequest{Email: "a@example.com"}))
	assert.Error(t, binding.Validator.ValidateStruct(&CreateCustomerRequest{Email: "not-an-email"}))
}

func TestNewEarningsResponse(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agg := &domain.EarningsAggregate{RecipientID: "bob", TotalTipsMinor: 1250, TotalEarningsMinor: 1250, LastUpdated: now}
	tips := []domain.TipRecord{{ID: "t1", AmountMinor: 505, Status: domain.TipStatusCompleted}}

	resp := NewEarningsResponse(agg, tips)
	require.NotNil(t, resp.Earnings.TotalTips)
	assert.Equal(t, "12.5", resp.Earnings.TotalTips.String())
	assert.Equal(t, "12.5", resp.Earnings.TotalEarnings.String())
	require.NotNil(t, resp.Earnings.LastUpdated)
	assert.Equal(t, now, *resp.Earnings.LastUpdated)
	require.Len(t, resp.RecentTips, 1)
	assert.Equal(t, "5.05", resp.RecentTips[0].Amount.String())
	assert.Equal(t, "completed", resp.RecentTips[0].Status)
}

func TestNewEarningsResponse_NoAggregate(t *testing.T) {
	raw, err := json.Marshal(NewEarningsResponse(nil, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"earnings":{},"recentTips":[]}`, string(raw))
}

func TestEarningsResponse_AmountsAreNumbers(t *testing.T) {
	resp := NewEarningsResponse(&domain.EarningsAggregate{TotalTipsMinor: 505, TotalEarningsMinor: 505}, nil)
	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"totalTips":5.05`)
}
