package meter

import (
	"testing"

	"github.com/veltrix-chain/corechain/internal/chain"
)

func TestUseDiskStorageWithinLimit(t *testing.T) {
	m := New(Limits{Disk: 100}, Costs{Disk: 1})
	if err := m.UseDiskStorage(50); err != nil {
		t.Fatalf("UseDiskStorage: %v", err)
	}
	if got := m.RemainingDiskStorage(); got != 50 {
		t.Fatalf("RemainingDiskStorage = %d, want 50", got)
	}
}

func TestUseDiskStorageExceedingLimitFails(t *testing.T) {
	m := New(Limits{Disk: 10}, Costs{Disk: 1})
	if err := m.UseDiskStorage(11); err == nil {
		t.Fatal("expected a limit-exceeded error")
	}
}

func TestUseNegativeAmountReclaimsWithoutUnderflow(t *testing.T) {
	m := New(Limits{Disk: 10}, Costs{Disk: 1})
	if err := m.UseDiskStorage(5); err != nil {
		t.Fatalf("UseDiskStorage: %v", err)
	}
	if err := m.UseDiskStorage(-100); err != nil {
		t.Fatalf("reclaiming more than used must not error: %v", err)
	}
	if got := m.RemainingDiskStorage(); got != 10 {
		t.Fatalf("RemainingDiskStorage after over-reclaim = %d, want 10 (clamped at zero used)", got)
	}
}

func TestSessionChargedInsteadOfSystemBucket(t *testing.T) {
	m := New(Limits{Compute: 1000}, Costs{Compute: 2})
	payer := chain.NewAccount(chain.AccountUser, []byte("payer"))
	s := NewSession(payer, 100)
	m.AttachSession(s)

	if err := m.UseComputeBandwidth(10); err != nil {
		t.Fatalf("UseComputeBandwidth: %v", err)
	}
	if s.RemainingBalance() != 80 {
		t.Fatalf("session balance = %d, want 80 (10 ticks * cost 2)", s.RemainingBalance())
	}
	if m.SystemCost() != 0 {
		t.Fatal("a session-attached meter must not charge the system bucket")
	}
}

func TestSessionExhaustionFailsEvenUnderMeterLimit(t *testing.T) {
	m := New(Limits{Compute: 1000}, Costs{Compute: 10})
	payer := chain.NewAccount(chain.AccountUser, []byte("payer"))
	s := NewSession(payer, 5)
	m.AttachSession(s)

	if err := m.UseComputeBandwidth(1); err == nil {
		t.Fatal("expected the session's exhausted balance to fail the charge even though the meter limit is not reached")
	}
}

func TestDetachSessionFallsBackToSystemBucket(t *testing.T) {
	m := New(Limits{Network: 100}, Costs{Network: 1})
	payer := chain.NewAccount(chain.AccountUser, []byte("payer"))
	s := NewSession(payer, 100)
	m.AttachSession(s)
	m.DetachSession()

	if err := m.UseNetworkBandwidth(10); err != nil {
		t.Fatalf("UseNetworkBandwidth: %v", err)
	}
	if m.SystemCost() != 10 {
		t.Fatalf("SystemCost = %d, want 10", m.SystemCost())
	}
	if s.RemainingBalance() != 100 {
		t.Fatal("a detached session must not be charged")
	}
}

func TestDestroyedSessionFallsThroughToSystemBucket(t *testing.T) {
	m := New(Limits{Disk: 100}, Costs{Disk: 1})
	payer := chain.NewAccount(chain.AccountUser, []byte("payer"))
	s := NewSession(payer, 100)
	m.AttachSession(s)
	s.Destroy()

	if err := m.UseDiskStorage(1); err != nil {
		t.Fatalf("UseDiskStorage after Destroy: %v", err)
	}
	if m.SystemCost() != 1 {
		t.Fatalf("SystemCost = %d, want 1", m.SystemCost())
	}
	if s.RemainingBalance() != 100 {
		t.Fatal("a destroyed session must not be charged")
	}
}
