package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
)

func TestIsBusy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"wrapped busy", fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"constraint violation", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"plain error", errors.New("disk full"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isBusy(tt.err); got != tt.want {
				t.Errorf("isBusy(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestExecWriteRetriesBusyOnce(t *testing.T) {
	s := newTestStore(t)

	attempts := 0
	err := s.execWrite("test", func() error {
		attempts++
		if attempts == 1 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestExecWritePersistentBusyReturnsConflict(t *testing.T) {
	s := newTestStore(t)

	attempts := 0
	err := s.execWrite("test", func() error {
		attempts++
		return sqlite3.Error{Code: sqlite3.ErrLocked}
	})
	if !errors.Is(err, ErrWriteConflict) {
		t.Errorf("Expected ErrWriteConflict, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected exactly one retry, got %d attempts", attempts)
	}
}

func TestExecWriteBusyThenOtherError(t *testing.T) {
	s := newTestStore(t)

	boom := errors.New("disk full")
	attempts := 0
	err := s.execWrite("test", func() error {
		attempts++
		if attempts == 1 {
			return sqlite3.Error{Code: sqlite3.ErrBusy}
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected underlying error, got %v", err)
	}
	if errors.Is(err, ErrWriteConflict) {
		t.Error("Non-busy retry failure must not be reported as a write conflict")
	}
}

func TestExecWriteDoesNotRetryOtherErrors(t *testing.T) {
	s := newTestStore(t)

	boom := errors.New("constraint failed")
	attempts := 0
	err := s.execWrite("test", func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected underlying error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected no retry for non-busy errors, got %d attempts", attempts)
	}
}
