package watcher

import (
	"testing"
	"time"
)

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{Op(0), "UNKNOWN"},
		{OpCreate | OpWrite, "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestOp_Has(t *testing.T) {
	tests := []struct {
		op     Op
		check  Op
		expect bool
	}{
		{OpCreate, OpCreate, true},
		{OpCreate, OpWrite, false},
		{OpCreate | OpWrite, OpWrite, true},
		{OpCreate | OpWrite, OpRemove, false},
	}

	for _, tt := range tests {
		if got := tt.op.Has(tt.check); got != tt.expect {
			t.Errorf("Op(%d).Has(%d) = %v, want %v", tt.op, tt.check, got, tt.expect)
		}
	}
}

func TestNewConfig(t *testing.T) {
	config := newConfig(nil)
	if config.Debounce != 200*time.Millisecond {
		t.Errorf("Debounce = %v, want 200ms", config.Debounce)
	}
	if config.BufferSize != 100 {
		t.Errorf("BufferSize = %d, want 100", config.BufferSize)
	}
	if config.Logger == nil {
		t.Error("Logger should default to a logrus logger")
	}

	config = newConfig([]Option{
		WithDebounce(5 * time.Millisecond),
		WithBufferSize(-1),
		WithIgnorePatterns("*.bak"),
		WithIgnorePatterns("*.orig"),
	})
	if config.Debounce != 5*time.Millisecond {
		t.Errorf("Debounce = %v, want 5ms", config.Debounce)
	}
	if config.BufferSize != 100 {
		t.Errorf("BufferSize = %d, want fallback 100", config.BufferSize)
	}
	if len(config.IgnorePatterns) != 2 {
		t.Errorf("IgnorePatterns = %v, want 2 patterns", config.IgnorePatterns)
	}
}
