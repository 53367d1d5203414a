// Package errors provides unit tests for error code handling.
package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

// TestAppErrorFormat verifies code and message rendering.
func TestAppErrorFormat(t *testing.T) {
	err := New(ErrSyncFailed, "pass aborted")
	if got := err.Error(); got != "[SYNC_FAILED] pass aborted" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := Wrap(ErrDatabase, "insert failed", stderrors.New("disk full"))
	if !strings.Contains(wrapped.Error(), "disk full") {
		t.Errorf("Error() = %q, want underlying cause included", wrapped.Error())
	}
}

// TestUnwrap verifies errors.Is reaches the cause.
func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(ErrInternal, "wrapper", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() did not find wrapped cause")
	}
}

// TestIsCode verifies code matching.
func TestIsCode(t *testing.T) {
	err := New(ErrSyncAuthFailed, "token rejected")

	if !Is(err, ErrSyncAuthFailed) {
		t.Error("Is() = false for matching code")
	}
	if Is(err, ErrSyncFailed) {
		t.Error("Is() = true for mismatched code")
	}
	if Is(stderrors.New("plain"), ErrSyncFailed) {
		t.Error("Is() = true for non-AppError")
	}
}

// TestCode verifies code extraction and its fallback.
func TestCode(t *testing.T) {
	if got := Code(New(ErrValidation, "bad payload")); got != ErrValidation {
		t.Errorf("Code() = %s, want %s", got, ErrValidation)
	}
	if got := Code(stderrors.New("plain")); got != ErrInternal {
		t.Errorf("Code() = %s, want %s", got, ErrInternal)
	}
}
