package cli

import (
	"errors"
	"fmt"
	"testing"

	"dcmnode/dcmprune/pkg/config"
	"dcmnode/dcmprune/pkg/retention"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "retention.threshold",
		Message: "missing required field",
	}

	expected := "config error in retention.threshold: missing required field"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("field", "message")
	if err.Field != "field" {
		t.Errorf("Field = %q, want %q", err.Field, "field")
	}
	if err.Message != "message" {
		t.Errorf("Message = %q, want %q", err.Message, "message")
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := &CommandError{
		Command: "run",
		Err:     underlyingErr,
	}

	expected := "command run failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandErrorUnwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := &CommandError{
		Command: "run",
		Err:     underlyingErr,
	}

	unwrapped := err.Unwrap()
	if unwrapped != underlyingErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, underlyingErr)
	}

	// Test with errors.Is
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is() should work with CommandError.Unwrap()")
	}
}

func TestNewCommandError(t *testing.T) {
	underlyingErr := errors.New("test")
	err := NewCommandError("command", underlyingErr)

	if err.Command != "command" {
		t.Errorf("Command = %q, want %q", err.Command, "command")
	}
	if err.Err != underlyingErr {
		t.Errorf("Err = %v, want %v", err.Err, underlyingErr)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: ExitOK},
		{name: "generic", err: errors.New("boom"), want: ExitFailure},
		{
			name: "storage unavailable",
			err:  retention.NewStorageUnavailableError("/srv/dicom", "stat", errors.New("no such file")),
			want: ExitStorageUnavailable,
		},
		{
			name: "wrapped storage unavailable",
			err:  NewCommandError("run", retention.NewStorageUnavailableError("/srv/dicom", "statfs", errors.New("eio"))),
			want: ExitStorageUnavailable,
		},
		{name: "config error", err: NewConfigError("threshold", "bad"), want: ExitConfig},
		{
			name: "validation error",
			err:  fmt.Errorf("load: %w", config.ValidationError{Errors: []config.FieldError{{Field: "storage.root", Message: "required"}}}),
			want: ExitConfig,
		},
		{name: "explicit", err: NewExitError(7, errors.New("custom")), want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := NewExitError(ExitFailure, inner)
	if !errors.Is(err, inner) {
		t.Error("errors.Is() should see through ExitError")
	}
	if err.Error() != "inner" {
		t.Errorf("Error() = %q, want %q", err.Error(), "inner")
	}
	if NewExitError(4, nil).Error() != "exit status 4" {
		t.Errorf("unexpected message for nil cause: %q", NewExitError(4, nil).Error())
	}
}
