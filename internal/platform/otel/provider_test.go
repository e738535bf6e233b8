package otel

import (
	"context"
	"testing"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv(endpointEnv, "")
	t.Setenv(enabledEnv, "")

	shutdown, err := Setup(context.Background(), "monitor-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv(endpointEnv, "http://localhost:4318")
	t.Setenv(enabledEnv, "false")

	shutdown, err := Setup(context.Background(), "monitor-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address: nothing is exported.
	t.Setenv(endpointEnv, "http://192.0.2.1:4318")
	t.Setenv(enabledEnv, "")
	t.Setenv(samplingEnv, "0.5")

	shutdown, err := Setup(context.Background(), "monitor-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestParseRatio(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{raw: "", wantOK: false},
		{raw: "abc", wantOK: false},
		{raw: "0", wantOK: false},
		{raw: "1.5", wantOK: false},
		{raw: " 0.25 ", want: 0.25, wantOK: true},
		{raw: "1", want: 1, wantOK: true},
	}
	for _, tt := range tests {
		got, ok := parseRatio(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Fatalf("parseRatio(%q) = (%v, %v), want (%v, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
