package apmaserr

import (
	"errors"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("agent %q", "developer")
	if !Is(err, KindNotFound) {
		t.Fatal("expected NotFound kind to match")
	}
	if Is(err, KindInvalidState) {
		t.Fatal("did not expect InvalidState kind to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage(cause, "save failed")

	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap chain to reach cause")
	}
	if !Is(err, KindStorageError) {
		t.Fatal("expected StorageError kind")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if Is(errors.New("plain"), KindNotFound) {
		t.Fatal("plain errors must never match a Kind")
	}
}
