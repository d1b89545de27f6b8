package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestVerifyErrorUnwrap(t *testing.T) {
	cause := errors.New("png: invalid header")
	verr := NewUnsupportedFormatError("session-1", cause)

	if !errors.Is(verr, cause) {
		t.Fatalf("cause not reachable through Unwrap")
	}
	if verr.Error() == "" || verr.SessionID != "session-1" {
		t.Fatalf("error not populated: %+v", verr)
	}
}

func TestUserCorrectable(t *testing.T) {
	tests := []struct {
		err  *VerifyError
		want bool
	}{
		{NewEmptyInputError("s"), true},
		{NewUnsupportedFormatError("s", nil), true},
		{NewBoundaryDetectionError("s", nil), true},
		{NewOCRUnavailableError("s", nil), false},
		{NewStorageFailedError("s", nil), false},
	}
	for _, tt := range tests {
		if got := tt.err.UserCorrectable(); got != tt.want {
			t.Fatalf("%s: UserCorrectable = %v, want %v", tt.err.Code, got, tt.want)
		}
	}
}

func TestCodeOf(t *testing.T) {
	verr := NewBoundaryDetectionError("s", nil)
	if got := CodeOf(verr); got != ErrorBoundaryDetection {
		t.Fatalf("CodeOf = %s", got)
	}

	wrapped := fmt.Errorf("processing failed: %w", verr)
	if got := CodeOf(wrapped); got != ErrorBoundaryDetection {
		t.Fatalf("CodeOf through wrapping = %s", got)
	}

	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf on plain error = %q", got)
	}
}
