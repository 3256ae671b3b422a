package checker

import (
	"context"
	"errors"
	"testing"
)

func stubProbes(t *testing.T, resolveErr, dialErr error) *int {
	t.Helper()
	origResolve, origDial := resolveProbe, dialProbe
	t.Cleanup(func() {
		resolveProbe, dialProbe = origResolve, origDial
	})

	dials := 0
	resolveProbe = func(ctx context.Context) error { return resolveErr }
	dialProbe = func(ctx context.Context) error {
		dials++
		return dialErr
	}
	return &dials
}

func TestCheckInternetDNSSufficient(t *testing.T) {
	dials := stubProbes(t, nil, errors.New("unreachable"))

	if !CheckInternet(context.Background()) {
		t.Error("expected online when DNS resolves")
	}
	if *dials != 0 {
		t.Errorf("dial probe ran %d times, want 0", *dials)
	}
}

func TestCheckInternetDialFallback(t *testing.T) {
	dials := stubProbes(t, errors.New("no dns"), nil)

	if !CheckInternet(context.Background()) {
		t.Error("expected online via resolver dial when DNS fails")
	}
	if *dials != 1 {
		t.Errorf("dial probe ran %d times, want 1", *dials)
	}
}

func TestCheckInternetOffline(t *testing.T) {
	stubProbes(t, errors.New("no dns"), errors.New("unreachable"))

	if CheckInternet(context.Background()) {
		t.Error("expected offline when both probes fail")
	}
}
