package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// OrderLimits defines the guardrails applied to every buy order.
type OrderLimits struct {
	MaxOrderSize   decimal.Decimal // max single order, USDC
	MinOrderSize   decimal.Decimal // min single order, USDC
	MaxDailyOrders int             // max orders per day
	MaxDailySpend  decimal.Decimal // max total spend per day, USDC
}

// DefaultOrderLimits returns conservative default limits.
func DefaultOrderLimits() *OrderLimits {
	return &OrderLimits{
		MaxOrderSize:   decimal.NewFromInt(100), // $100 max single order
		MinOrderSize:   decimal.NewFromInt(1),   // $1 min
		MaxDailyOrders: 25,
		MaxDailySpend:  decimal.NewFromInt(500), // $500 per day
	}
}

// RejectionError is a guardrail rejection with a stable reason label.
type RejectionError struct {
	Reason string
	msg    string
}

func (e *RejectionError) Error() string { return e.msg }

func reject(reason, format string, args ...interface{}) error {
	return &RejectionError{Reason: reason, msg: fmt.Sprintf(format, args...)}
}

// Guardrails enforces order limits and tracks daily usage.
type Guardrails struct {
	limits *OrderLimits

	mu          sync.Mutex
	dailyOrders int
	dailySpend  decimal.Decimal
	lastDay     int // day of year
}

// NewGuardrails creates a guardrail checker with the given limits.
func NewGuardrails(limits *OrderLimits) *Guardrails {
	if limits == nil {
		limits = DefaultOrderLimits()
	}
	return &Guardrails{
		limits:  limits,
		lastDay: time.Now().YearDay(),
	}
}

// CheckBuy validates a buy order against the limits. Price is the
// token price in (0,1); amount is the USDC spend.
func (g *Guardrails) CheckBuy(price, amount decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetDailyIfNeeded()

	one := decimal.NewFromInt(1)
	if price.Sign() <= 0 || price.GreaterThanOrEqual(one) {
		return reject("price", "price %s outside (0,1)", price)
	}

	if amount.GreaterThan(g.limits.MaxOrderSize) {
		return reject("size", "order $%s exceeds max $%s", amount, g.limits.MaxOrderSize)
	}
	if amount.LessThan(g.limits.MinOrderSize) {
		return reject("size", "order $%s below min $%s", amount, g.limits.MinOrderSize)
	}

	if g.dailyOrders >= g.limits.MaxDailyOrders {
		return reject("daily_orders", "daily order limit reached: %d", g.limits.MaxDailyOrders)
	}
	if g.dailySpend.Add(amount).GreaterThan(g.limits.MaxDailySpend) {
		return reject("daily_spend", "would exceed daily spend limit $%s", g.limits.MaxDailySpend)
	}

	return nil
}

// RecordBuy records an accepted order against the daily counters.
func (g *Guardrails) RecordBuy(amount decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetDailyIfNeeded()
	g.dailyOrders++
	g.dailySpend = g.dailySpend.Add(amount)
}

// DailyStats returns today's order count and USDC spend.
func (g *Guardrails) DailyStats() (orders int, spend decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.dailyOrders, g.dailySpend
}

func (g *Guardrails) resetDailyIfNeeded() {
	now := time.Now()
	if g.lastDay != now.YearDay() {
		g.dailyOrders = 0
		g.dailySpend = decimal.Zero
		g.lastDay = now.YearDay()
	}
}
