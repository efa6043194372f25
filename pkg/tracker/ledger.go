package tracker

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerEntry is a dry-run order recorded instead of being posted.
type LedgerEntry struct {
	ID        string          `json:"id"`
	TokenID   string          `json:"tokenId"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Size      decimal.Decimal `json:"size"`
	Cost      decimal.Decimal `json:"cost"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Ledger is an in-memory record of dry-run orders. Every entry fills
// immediately at its limit price.
type Ledger struct {
	mu      sync.RWMutex
	entries []LedgerEntry
	spent   decimal.Decimal
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// RecordBuy records a simulated buy and returns the entry.
func (l *Ledger) RecordBuy(tokenID string, price, amount decimal.Decimal) LedgerEntry {
	size := decimal.Zero
	if price.Sign() > 0 {
		size = amount.Div(price).Round(2)
	}

	entry := LedgerEntry{
		ID:        uuid.New().String(),
		TokenID:   tokenID,
		Side:      "BUY",
		Price:     price,
		Size:      size,
		Cost:      amount,
		CreatedAt: time.Now(),
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.spent = l.spent.Add(amount)
	l.mu.Unlock()

	return entry
}

// Entries returns a copy of all recorded orders, oldest first.
func (l *Ledger) Entries() []LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// TotalSpent returns the cumulative USDC spend across the ledger.
func (l *Ledger) TotalSpent() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.spent
}

// Len returns the number of recorded orders.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
