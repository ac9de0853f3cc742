package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"OFF", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("DEALERBOT_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("DEALERBOT_TEST_BOOL", tt.defaultValue); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestParseDurationEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"", time.Minute, time.Minute},
		{"30m", time.Minute, 30 * time.Minute},
		{" 90s ", time.Minute, 90 * time.Second},
		{"soon", time.Minute, time.Minute},
	}
	for _, tt := range tests {
		t.Setenv("DEALERBOT_TEST_DURATION", tt.value)
		if got := ParseDurationEnv("DEALERBOT_TEST_DURATION", tt.defaultValue); got != tt.want {
			t.Errorf("ParseDurationEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}
