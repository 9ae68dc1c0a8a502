package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockChecker struct {
	err error
}

func (m *mockChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New()
	svc.Register("embedding", &mockChecker{})
	svc.Register("generation", &mockChecker{})

	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["embedding"] != CheckOK {
		t.Errorf("expected embedding %q, got %q", CheckOK, r.Checks["embedding"])
	}
	if r.Checks["generation"] != CheckOK {
		t.Errorf("expected generation %q, got %q", CheckOK, r.Checks["generation"])
	}
}

func TestCheck_ProviderError(t *testing.T) {
	svc := New()
	svc.Register("embedding", &mockChecker{err: errors.New("timeout")})
	svc.Register("generation", &mockChecker{})

	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["embedding"] != CheckError {
		t.Errorf("expected embedding %q, got %q", CheckError, r.Checks["embedding"])
	}
	if r.Checks["generation"] != CheckOK {
		t.Errorf("expected generation %q, got %q", CheckOK, r.Checks["generation"])
	}
}

func TestCheck_NilCheckerIgnored(t *testing.T) {
	svc := New()
	svc.Register("embedding", &mockChecker{})
	svc.Register("optional", nil)

	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["optional"]; ok {
		t.Error("nil checker must not appear in the report")
	}
}

func TestCheck_NoChecks(t *testing.T) {
	r := New().Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q with no checks, got %q", Healthy, r.Status)
	}
	if len(r.Checks) != 0 {
		t.Errorf("expected empty checks, got %v", r.Checks)
	}
}
