package model

import "testing"

func TestFailureErrorReturnsReason(t *testing.T) {
	f := Failure{Kind: FailureTooLarge, Reason: "distribution exceeds max scan size: https://x/pkg.zip"}
	if f.Error() != f.Reason {
		t.Fatalf("Error() = %q, want %q", f.Error(), f.Reason)
	}
}
