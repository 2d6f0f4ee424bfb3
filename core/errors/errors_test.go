package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindAndCodeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("liquidation: %w", ErrHealthFactorNotBelow)
	if !stderrors.Is(wrapped, ErrHealthFactorNotBelow) {
		t.Fatalf("wrapped error lost identity")
	}
	if got := KindOf(wrapped); got != KindPolicyViolation {
		t.Fatalf("unexpected kind %s", got)
	}
	if got := CodeOf(wrapped); got != 45 {
		t.Fatalf("unexpected code %d", got)
	}
}

func TestKindOfForeignError(t *testing.T) {
	if got := KindOf(stderrors.New("boom")); got != KindUnknown {
		t.Fatalf("expected unknown kind, got %s", got)
	}
	if CodeOf(nil) != 0 {
		t.Fatalf("nil error must have code 0")
	}
}

func TestErrorString(t *testing.T) {
	if got := ErrOverflow.Error(); got != "lending: arithmetic overflow (code 1001)" {
		t.Fatalf("unexpected message %q", got)
	}
}
