package models

import "testing"

func TestStatusFromResult(t *testing.T) {
	tests := []struct {
		name   string
		result CheckResult
		want   string
	}{
		{"healthy", CheckResult{Healthy: true}, StatusOperational},
		{"down", CheckResult{}, StatusDown},
		{"degraded only", CheckResult{Degraded: true}, StatusDegraded},
		{"healthy but degraded", CheckResult{Healthy: true, Degraded: true}, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFromResult(&tt.result); got != tt.want {
				t.Errorf("StatusFromResult(%+v) = %q, want %q", tt.result, got, tt.want)
			}
		})
	}
}
