package services_test

import (
	"errors"
	"testing"

	"hikfetch/internal/services"
)

func TestWrap(t *testing.T) {
	reset := errors.New("connection reset")
	tests := []struct {
		name   string
		err    error
		marker error
		want   string
	}{
		{
			name:   "full context",
			err:    services.Wrap(services.ErrDevice, "isapi", "search", "request failed", reset),
			marker: services.ErrDevice,
			want:   "device error: isapi: search: request failed: connection reset",
		},
		{
			name:   "blank parts skipped",
			err:    services.Wrap(services.ErrValidation, " ", "", "end precedes start", nil),
			marker: services.ErrValidation,
			want:   "validation error: end precedes start",
		},
		{
			name:   "defaults",
			err:    services.Wrap(nil, "", "", "", nil),
			marker: services.ErrTransient,
			want:   "transient failure: service failure",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if !errors.Is(tc.err, tc.marker) {
				t.Fatalf("marker lost: %v", tc.err)
			}
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error() = %q, want %q", got, tc.want)
			}
		})
	}
	if !errors.Is(tests[0].err, reset) {
		t.Fatal("wrapped cause should stay reachable")
	}
}
