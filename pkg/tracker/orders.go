package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/phenomenon0/dugout-tracker/pkg/polymarket/clob"
	"github.com/phenomenon0/dugout-tracker/pkg/tracker/metrics"
)

// OrderPoster posts live fill-or-kill buys. Satisfied by *clob.Client.
type OrderPoster interface {
	MarketBuy(ctx context.Context, tokenID string, usdcAmount, price float64, negRisk bool) (*clob.PostOrderResponse, error)
}

// OrderResult is what the API returns for a submitted buy.
type OrderResult struct {
	OrderID string  `json:"orderId"`
	DryRun  bool    `json:"dryRun"`
	Status  string  `json:"status"`
	TokenID string  `json:"tokenId"`
	Price   float64 `json:"price"`
	Cost    float64 `json:"cost"`
}

// OrderDesk routes buy orders through the guardrails to either the live
// CLOB client or the dry-run ledger.
type OrderDesk struct {
	guards  *Guardrails
	ledger  *Ledger
	poster  OrderPoster
	dryRun  bool
	metrics *metrics.TrackerMetrics
}

// NewOrderDesk creates an order desk. With dryRun or a nil poster every
// accepted order is recorded in the ledger instead of posted.
func NewOrderDesk(limits *OrderLimits, poster OrderPoster, dryRun bool, m *metrics.TrackerMetrics) *OrderDesk {
	if m == nil {
		m = metrics.Default()
	}
	return &OrderDesk{
		guards:  NewGuardrails(limits),
		ledger:  NewLedger(),
		poster:  poster,
		dryRun:  dryRun || poster == nil,
		metrics: m,
	}
}

// DryRun reports whether the desk records instead of posting.
func (d *OrderDesk) DryRun() bool {
	return d.dryRun
}

// Ledger returns the dry-run ledger.
func (d *OrderDesk) Ledger() *Ledger {
	return d.ledger
}

// Guardrails returns the desk's guardrails.
func (d *OrderDesk) Guardrails() *Guardrails {
	return d.guards
}

// SubmitBuy submits a fill-or-kill buy of amount USDC at the given
// limit price after guardrail checks.
func (d *OrderDesk) SubmitBuy(ctx context.Context, tokenID string, price, amount float64, negRisk bool) (*OrderResult, error) {
	dPrice := decimal.NewFromFloat(price)
	dAmount := decimal.NewFromFloat(amount)

	if err := d.guards.CheckBuy(dPrice, dAmount); err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			d.metrics.RecordRejection(rej.Reason)
		}
		return nil, err
	}

	if d.dryRun {
		entry := d.ledger.RecordBuy(tokenID, dPrice, dAmount)
		d.guards.RecordBuy(dAmount)
		d.metrics.RecordOrder("dry-run", "filled", amount)
		log.Printf("[ORDERS] dry-run buy %s: $%.2f @ %.3f", tokenID, amount, price)
		return &OrderResult{
			OrderID: entry.ID,
			DryRun:  true,
			Status:  "filled",
			TokenID: tokenID,
			Price:   price,
			Cost:    amount,
		}, nil
	}

	resp, err := d.poster.MarketBuy(ctx, tokenID, amount, price, negRisk)
	if err != nil {
		d.metrics.RecordOrder("live", "error", amount)
		return nil, fmt.Errorf("post order: %w", err)
	}
	if !resp.Success {
		d.metrics.RecordOrder("live", "rejected", amount)
		return nil, fmt.Errorf("order rejected: %s", resp.ErrorMsg)
	}

	d.guards.RecordBuy(dAmount)
	d.metrics.RecordOrder("live", "ok", amount)
	log.Printf("[ORDERS] buy %s: $%.2f @ %.3f order=%s", tokenID, amount, price, resp.OrderID)

	status := resp.Status
	if status == "" {
		status = "submitted"
	}
	return &OrderResult{
		OrderID: resp.OrderID,
		Status:  status,
		TokenID: tokenID,
		Price:   price,
		Cost:    amount,
	}, nil
}
