package models

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func TestApplyEntry(t *testing.T) {
	tests := []struct {
		name      string
		balance   string
		direction string
		amount    string
		want      string
		err       error
	}{
		{"credit", "10", DirectionCredit, "5.25", "15.25", nil},
		{"debit", "10", DirectionDebit, "4", "6", nil},
		{"debit to zero", "10", DirectionDebit, "10", "0", nil},
		{"overdraft", "10", DirectionDebit, "10.01", "10", ErrInsufficientFunds},
		{"zero amount", "10", DirectionCredit, "0", "10", ErrInvalidAmount},
		{"negative amount", "10", DirectionDebit, "-1", "10", ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyEntry(decimal.RequireFromString(tt.balance), tt.direction, decimal.RequireFromString(tt.amount))
			if !errors.Is(err, tt.err) {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("balance = %s, want %s", got, tt.want)
			}
		})
	}
}

// Random credit/debit sequences must keep balance == credits - debits
// and never go negative.
func TestApplyEntryLedgerInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		balance := decimal.Zero
		var ledger []WalletTransaction

		for op := 0; op < 50; op++ {
			amount := decimal.New(rng.Int63n(100000)+1, -2)
			direction := DirectionCredit
			if rng.Intn(2) == 0 {
				direction = DirectionDebit
			}

			next, err := ApplyEntry(balance, direction, amount)
			if err != nil {
				if !errors.Is(err, ErrInsufficientFunds) {
					t.Fatalf("unexpected error: %v", err)
				}
				if !next.Equal(balance) {
					t.Fatalf("rejected debit changed balance from %s to %s", balance, next)
				}
				continue
			}

			balance = next
			ledger = append(ledger, WalletTransaction{Direction: direction, Amount: amount, BalanceAfter: balance})

			if balance.IsNegative() {
				t.Fatalf("run %d op %d: negative balance %s", run, op, balance)
			}
		}

		if sum := LedgerSum(ledger); !sum.Equal(balance) {
			t.Fatalf("run %d: balance %s != ledger sum %s", run, balance, sum)
		}
	}
}

func TestLedgerEntryValidate(t *testing.T) {
	valid := LedgerEntry{
		Currency:  "NGN",
		Direction: DirectionCredit,
		Kind:      TxKindDeposit,
		Amount:    decimal.NewFromInt(1),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid entry: %v", err)
	}

	bad := valid
	bad.Kind = "gift"
	var vErr *ValidationError
	if err := bad.Validate(); !errors.As(err, &vErr) {
		t.Errorf("unknown kind err = %v, want ValidationError", err)
	}

	bad = valid
	bad.Amount = decimal.Zero
	if err := bad.Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount err = %v, want ErrInvalidAmount", err)
	}

	// The balance and amount columns hold two places; a half cent would be
	// rounded differently in each.
	bad = valid
	bad.Amount = decimal.RequireFromString("0.005")
	if err := bad.Validate(); !errors.As(err, &vErr) {
		t.Errorf("sub-cent amount err = %v, want ValidationError", err)
	}

	ok := valid
	ok.Amount = decimal.RequireFromString("1.500")
	if err := ok.Validate(); err != nil {
		t.Errorf("1.500 err = %v, want nil", err)
	}
}

func TestWalletDrift(t *testing.T) {
	d := WalletDrift{Balance: decimal.RequireFromString("10.00"), LedgerSum: decimal.NewFromInt(10)}
	if d.HasDrift() {
		t.Error("10.00 and 10 should not drift")
	}
	d.LedgerSum = decimal.RequireFromString("9.99")
	if !d.HasDrift() {
		t.Error("expected drift")
	}
}
