package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phenomenon0/dugout-tracker/pkg/polymarket/clob"
)

type fakePoster struct {
	resp *clob.PostOrderResponse
	err  error

	calls   int
	tokenID string
	amount  float64
	price   float64
	negRisk bool
}

func (f *fakePoster) MarketBuy(ctx context.Context, tokenID string, usdcAmount, price float64, negRisk bool) (*clob.PostOrderResponse, error) {
	f.calls++
	f.tokenID = tokenID
	f.amount = usdcAmount
	f.price = price
	f.negRisk = negRisk
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestSubmitBuyDryRun(t *testing.T) {
	poster := &fakePoster{}
	desk := NewOrderDesk(nil, poster, true, nil)

	result, err := desk.SubmitBuy(context.Background(), "token-1", 0.6, 12, false)
	if err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	if !result.DryRun {
		t.Error("result not marked dry-run")
	}
	if result.Status != "filled" {
		t.Errorf("status = %q, want filled", result.Status)
	}
	if poster.calls != 0 {
		t.Errorf("poster called %d times in dry-run", poster.calls)
	}
	if desk.Ledger().Len() != 1 {
		t.Errorf("ledger has %d entries, want 1", desk.Ledger().Len())
	}
	orders, _ := desk.Guardrails().DailyStats()
	if orders != 1 {
		t.Errorf("daily orders = %d, want 1", orders)
	}
}

func TestSubmitBuyNilPosterForcesDryRun(t *testing.T) {
	desk := NewOrderDesk(nil, nil, false, nil)
	if !desk.DryRun() {
		t.Fatal("desk with no poster must be dry-run")
	}

	result, err := desk.SubmitBuy(context.Background(), "token-1", 0.5, 10, false)
	if err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	if !result.DryRun {
		t.Error("result not marked dry-run")
	}
}

func TestSubmitBuyRejection(t *testing.T) {
	desk := NewOrderDesk(nil, nil, true, nil)

	_, err := desk.SubmitBuy(context.Background(), "token-1", 1.5, 10, false)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("got %v, want RejectionError", err)
	}
	if rej.Reason != "price" {
		t.Errorf("reason = %q, want price", rej.Reason)
	}
	if desk.Ledger().Len() != 0 {
		t.Error("rejected order reached the ledger")
	}
}

func TestSubmitBuyLive(t *testing.T) {
	poster := &fakePoster{resp: &clob.PostOrderResponse{
		OrderID: "order-123",
		Success: true,
		Status:  "matched",
	}}
	desk := NewOrderDesk(nil, poster, false, nil)

	result, err := desk.SubmitBuy(context.Background(), "token-1", 0.45, 20, true)
	if err != nil {
		t.Fatalf("SubmitBuy: %v", err)
	}
	if result.DryRun {
		t.Error("live result marked dry-run")
	}
	if result.OrderID != "order-123" || result.Status != "matched" {
		t.Errorf("result = %+v", result)
	}
	if poster.tokenID != "token-1" || poster.amount != 20 || poster.price != 0.45 || !poster.negRisk {
		t.Errorf("poster saw token=%q amount=%v price=%v negRisk=%v",
			poster.tokenID, poster.amount, poster.price, poster.negRisk)
	}
	if desk.Ledger().Len() != 0 {
		t.Error("live order recorded in the dry-run ledger")
	}

	orders, _ := desk.Guardrails().DailyStats()
	if orders != 1 {
		t.Errorf("daily orders = %d, want 1", orders)
	}
}

func TestSubmitBuyLiveRejectedByExchange(t *testing.T) {
	poster := &fakePoster{resp: &clob.PostOrderResponse{
		Success:  false,
		ErrorMsg: "not enough balance",
	}}
	desk := NewOrderDesk(nil, poster, false, nil)

	_, err := desk.SubmitBuy(context.Background(), "token-1", 0.45, 20, false)
	if err == nil {
		t.Fatal("want error for exchange rejection")
	}

	orders, _ := desk.Guardrails().DailyStats()
	if orders != 0 {
		t.Errorf("rejected order counted against daily limit: %d", orders)
	}
}

func TestSubmitBuyLivePostFailure(t *testing.T) {
	poster := &fakePoster{err: fmt.Errorf("timeout")}
	desk := NewOrderDesk(nil, poster, false, nil)

	_, err := desk.SubmitBuy(context.Background(), "token-1", 0.45, 20, false)
	if err == nil {
		t.Fatal("want error when the post fails")
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		t.Error("transport failure should not look like a guardrail rejection")
	}
}
