package tools

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrToolUnavailable_Error(t *testing.T) {
	err := &ErrToolUnavailable{ToolName: "send_email"}
	want := `tool "send_email" is not available in this context`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrToolUnavailable_ErrorsAs(t *testing.T) {
	orig := &ErrToolUnavailable{ToolName: "set_rpi_timer"}

	// errors.As should match the concrete type.
	var target *ErrToolUnavailable
	if !errors.As(orig, &target) {
		t.Fatal("errors.As failed to match *ErrToolUnavailable")
	}
	if target.ToolName != "set_rpi_timer" {
		t.Errorf("ToolName = %q, want %q", target.ToolName, "set_rpi_timer")
	}
}

func TestErrToolUnavailable_WrappedErrorsAs(t *testing.T) {
	orig := &ErrToolUnavailable{ToolName: "get_weather"}
	wrapped := fmt.Errorf("tool execution: %w", orig)

	var target *ErrToolUnavailable
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As failed to match wrapped *ErrToolUnavailable")
	}
	if target.ToolName != "get_weather" {
		t.Errorf("ToolName = %q, want %q", target.ToolName, "get_weather")
	}
}

func TestErrToolUnavailable_NotMatchOtherErrors(t *testing.T) {
	other := fmt.Errorf("some other error")
	var target *ErrToolUnavailable
	if errors.As(other, &target) {
		t.Error("errors.As should not match non-ErrToolUnavailable error")
	}
}
