package errors

import (
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "test message: %s", "value")

	if err.Code != ErrCodeInvalidConfig {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidConfig)
	}

	if err.Message != "test message: value" {
		t.Errorf("Message = %v, want %v", err.Message, "test message: value")
	}

	expected := "INVALID_CONFIG: test message: value"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodePluginFailed, cause, "transformer failed")

	if err.Code != ErrCodePluginFailed {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodePluginFailed)
	}

	if err.Cause != cause {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}

	// Test Unwrap
	unwrapped := errors.Unwrap(err)
	if unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	// Test errors.Is with wrapped error
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     Code
		expected bool
	}{
		{
			name:     "matching code",
			err:      New(ErrCodeNoContent, "test"),
			code:     ErrCodeNoContent,
			expected: true,
		},
		{
			name:     "non-matching code",
			err:      New(ErrCodeNoContent, "test"),
			code:     ErrCodeCacheMiss,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			code:     ErrCodeNoContent,
			expected: false,
		},
		{
			name:     "wrapped structured error",
			err:      Wrap(ErrCodeUnresolvedDependency, errors.New("inner"), "outer"),
			code:     ErrCodeUnresolvedDependency,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.expected {
				t.Errorf("Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetCode(t *testing.T) {
	if got := GetCode(New(ErrCodeInvalidBundle, "x")); got != ErrCodeInvalidBundle {
		t.Errorf("GetCode() = %v, want %v", got, ErrCodeInvalidBundle)
	}
	if got := GetCode(errors.New("plain")); got != "" {
		t.Errorf("GetCode() = %v, want empty", got)
	}
}

func TestDiagnostics(t *testing.T) {
	loc := &Location{FilePath: "src/index.js", Start: Position{Line: 2, Column: 4}}
	err := WithDiagnostics(
		New(ErrCodeUnresolvedDependency, "cannot resolve './missing'"),
		Diagnostic{Kind: DiagError, Message: "cannot resolve './missing'", Loc: loc},
	)

	diags := Diagnostics(err)
	if len(diags) != 1 {
		t.Fatalf("Diagnostics() returned %d entries, want 1", len(diags))
	}
	if diags[0].Loc != loc {
		t.Error("diagnostic location not preserved")
	}

	// Codes survive the diagnostic wrapper.
	if !Is(err, ErrCodeUnresolvedDependency) {
		t.Error("Is() should see through DiagnosticError")
	}

	// Plain errors yield a synthesized diagnostic.
	plain := Diagnostics(errors.New("boom"))
	if len(plain) != 1 || plain[0].Message != "boom" {
		t.Errorf("Diagnostics(plain) = %+v, want single boom entry", plain)
	}

	if Diagnostics(nil) != nil {
		t.Error("Diagnostics(nil) should be nil")
	}
}

func TestLocationString(t *testing.T) {
	loc := Location{FilePath: "src/util.js", Start: Position{Line: 0, Column: 6}}
	if got := loc.String(); got != "src/util.js:1:7" {
		t.Errorf("String() = %q, want %q", got, "src/util.js:1:7")
	}
}
