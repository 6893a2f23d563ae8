package domain

import "testing"

func TestIdempotencyStatus(t *testing.T) {
	tests := []struct {
		name         string
		status       IdempotencyStatus
		wantValid    bool
		wantTerminal bool
	}{
		{name: "processing", status: IdempotencyStatusProcessing, wantValid: true, wantTerminal: false},
		{name: "done", status: IdempotencyStatusDone, wantValid: true, wantTerminal: true},
		{name: "failed", status: IdempotencyStatusFailed, wantValid: true, wantTerminal: true},
		{name: "invalid", status: IdempotencyStatus("broken"), wantValid: false, wantTerminal: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.status.Valid(); got != tc.wantValid {
				t.Fatalf("status %q valid=%v, want %v", tc.status, got, tc.wantValid)
			}
			if got := tc.status.Terminal(); got != tc.wantTerminal {
				t.Fatalf("status %q terminal=%v, want %v", tc.status, got, tc.wantTerminal)
			}
		})
	}
}
