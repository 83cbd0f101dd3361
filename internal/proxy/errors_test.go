package proxy

import "testing"

func TestErrNoTarget_Message(t *testing.T) {
	if ErrNoTarget.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestErrMalformedUpgrade_Message(t *testing.T) {
	if ErrMalformedUpgrade.Error() == "" {
		t.Error("expected a non-empty error message")
	}
}
