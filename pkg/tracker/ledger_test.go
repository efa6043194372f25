package tracker

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLedgerRecordBuy(t *testing.T) {
	l := NewLedger()

	entry := l.RecordBuy("token-1", dec(0.25), dec(10))
	if entry.ID == "" {
		t.Error("entry has no ID")
	}
	if entry.Side != "BUY" {
		t.Errorf("side = %q", entry.Side)
	}
	if !entry.Size.Equal(decimal.NewFromInt(40)) {
		t.Errorf("size = %s, want 40 (10 USDC at 0.25)", entry.Size)
	}
	if !entry.Cost.Equal(decimal.NewFromInt(10)) {
		t.Errorf("cost = %s, want 10", entry.Cost)
	}
}

func TestLedgerSizeRounding(t *testing.T) {
	l := NewLedger()
	entry := l.RecordBuy("token-1", dec(0.33), dec(10))
	if !entry.Size.Equal(decimal.NewFromFloat(30.3)) {
		t.Errorf("size = %s, want 30.3", entry.Size)
	}
}

func TestLedgerTotals(t *testing.T) {
	l := NewLedger()
	l.RecordBuy("a", dec(0.5), dec(10))
	l.RecordBuy("b", dec(0.6), dec(20))

	if l.Len() != 2 {
		t.Errorf("len = %d, want 2", l.Len())
	}
	if !l.TotalSpent().Equal(decimal.NewFromInt(30)) {
		t.Errorf("total spent = %s, want 30", l.TotalSpent())
	}

	entries := l.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].TokenID != "a" || entries[1].TokenID != "b" {
		t.Errorf("entries out of order: %q, %q", entries[0].TokenID, entries[1].TokenID)
	}

	// Entries returns a copy.
	entries[0].TokenID = "mutated"
	if l.Entries()[0].TokenID != "a" {
		t.Error("Entries exposes internal slice")
	}
}
