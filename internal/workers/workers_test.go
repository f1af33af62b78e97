package workers

import (
	"os"
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	// Save and restore original environment
	originalEnv := os.Getenv("SCAN_WORKERS")
	defer func() {
		if originalEnv != "" {
			os.Setenv("SCAN_WORKERS", originalEnv)
		} else {
			os.Unsetenv("SCAN_WORKERS")
		}
	}()

	// Clear any existing override
	os.Unsetenv("SCAN_WORKERS")

	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "CPU-bound task (1.0x multiplier)",
			multiplier: 1.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU,
		},
		{
			name:       "I/O-bound task (2.0x multiplier)",
			multiplier: 2.0,
			limit:      0,
			minExpect:  1,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "With limit lower than calculated",
			multiplier: 2.0,
			limit:      2,
			minExpect:  1,
			maxExpect:  2,
		},
		{
			name:       "Very low multiplier floors at 1",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)

			if got < tt.minExpect {
				t.Errorf("Count(%v, %d) = %d, expected >= %d", tt.multiplier, tt.limit, got, tt.minExpect)
			}

			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestCountEnvOverride(t *testing.T) {
	originalEnv := os.Getenv("SCAN_WORKERS")
	defer func() {
		if originalEnv != "" {
			os.Setenv("SCAN_WORKERS", originalEnv)
		} else {
			os.Unsetenv("SCAN_WORKERS")
		}
	}()

	os.Setenv("SCAN_WORKERS", "7")
	if got := Count(1.0, 0); got != 7 {
		t.Errorf("Expected override of 7 workers, got %d", got)
	}

	// Limit still applies to the override
	if got := Count(1.0, 3); got != 3 {
		t.Errorf("Expected limit of 3 workers, got %d", got)
	}

	// Invalid override falls back to calculation
	os.Setenv("SCAN_WORKERS", "not-a-number")
	if got := Count(1.0, 0); got < 1 {
		t.Errorf("Expected at least 1 worker, got %d", got)
	}
}

func TestForMixed(t *testing.T) {
	if ForMixed(0) < 1 {
		t.Error("ForMixed should return at least 1")
	}
	if ForMixed(1) != 1 {
		t.Error("ForMixed(1) should be capped at 1")
	}
}
