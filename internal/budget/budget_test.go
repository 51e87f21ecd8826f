package budget

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testCreds() []*Credential {
	return []*Credential{
		{Name: "key-a", Key: "aaa", Quota: 3},
		{Name: "key-b", Key: "bbb", Quota: 3},
	}
}

func TestKeyForRunRotates(t *testing.T) {
	m := NewManager("activejobs", testCreds(), nil, zap.NewNop())

	first, err := m.KeyForRun()
	if err != nil {
		t.Fatalf("KeyForRun: %v", err)
	}
	second, err := m.KeyForRun()
	if err != nil {
		t.Fatalf("KeyForRun: %v", err)
	}
	if first.Name == second.Name {
		t.Fatalf("expected rotation, got %q twice", first.Name)
	}
}

func TestKeyForRunSkipsExhausted(t *testing.T) {
	creds := testCreds()
	m := NewManager("activejobs", creds, nil, zap.NewNop())
	m.MarkExhausted(creds[0])

	for i := 0; i < 3; i++ {
		c, err := m.KeyForRun()
		if err != nil {
			t.Fatalf("KeyForRun: %v", err)
		}
		if c.Name != "key-b" {
			t.Fatalf("expected key-b, got %q", c.Name)
		}
	}
}

func TestSpendTripsQuota(t *testing.T) {
	creds := testCreds()
	m := NewManager("activejobs", creds, nil, zap.NewNop())

	m.Spend(creds[0], 2)
	if creds[0].Exhausted {
		t.Fatal("exhausted before quota")
	}
	m.Spend(creds[0], 1)
	if !creds[0].Exhausted {
		t.Fatal("not exhausted at quota")
	}
	if creds[0].Remaining() != 0 {
		t.Fatalf("Remaining = %d, want 0", creds[0].Remaining())
	}
}

func TestAllExhausted(t *testing.T) {
	creds := testCreds()
	m := NewManager("activejobs", creds, nil, zap.NewNop())
	m.MarkExhausted(creds[0])
	m.MarkExhausted(creds[1])

	if _, err := m.KeyForRun(); err != ErrNoCredential {
		t.Fatalf("err = %v, want ErrNoCredential", err)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	ckpt := NewMemoryCheckpointer()
	creds := testCreds()

	m := NewManager("activejobs", creds, ckpt, zap.NewNop())
	m.Spend(creds[0], 2)
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	fresh := testCreds()
	m2 := NewManager("activejobs", fresh, ckpt, zap.NewNop())
	if err := m2.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if fresh[0].Used != 2 {
		t.Fatalf("restored Used = %d, want 2", fresh[0].Used)
	}
	if fresh[1].Used != 0 {
		t.Fatalf("restored Used = %d, want 0", fresh[1].Used)
	}
}

func TestRestoreResetsStalePeriod(t *testing.T) {
	ctx := context.Background()
	ckpt := NewMemoryCheckpointer()
	if err := ckpt.Save(ctx, "activejobs", map[string]State{
		"key-a": {Used: 3, Exhausted: true, ResetAt: time.Now().Add(-time.Hour)},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	creds := testCreds()
	m := NewManager("activejobs", creds, ckpt, zap.NewNop())
	if err := m.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if creds[0].Used != 0 || creds[0].Exhausted {
		t.Fatalf("stale period not reset: %+v", creds[0])
	}
}

func TestNextPeriodReset(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	want := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	if got := nextPeriodReset(now); !got.Equal(want) {
		t.Fatalf("nextPeriodReset = %v, want %v", got, want)
	}
}
