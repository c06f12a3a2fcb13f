package apperr

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestError_NameAndMessage(t *testing.T) {
	err := New(KindValidation, "No body provided!")
	if err.Error() != "No body provided!" {
		t.Errorf("Error() = %q", err.Error())
	}
	if err.Name() != "ValidationError" {
		t.Errorf("Name() = %q, want ValidationError", err.Name())
	}

	var zero Error
	if zero.Name() != "Error" {
		t.Errorf("zero Name() = %q, want Error", zero.Name())
	}
}

func TestDirectory_WrapsCause(t *testing.T) {
	_, statErr := os.Stat(t.TempDir() + "/missing")
	err := Directory("Unable to read model directory: ", "/tmp/x", statErr)

	if err.Error() != "Unable to read model directory: /tmp/x" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("expected cause to unwrap to os.ErrNotExist")
	}
	if err.Meta["path"] != "/tmp/x" {
		t.Errorf("Meta[path] = %v", err.Meta["path"])
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(KindDataLayer, "boom"))
	if got := KindOf(wrapped); got != KindDataLayer {
		t.Errorf("KindOf = %q, want %q", got, KindDataLayer)
	}
	if got := KindOf(errors.New("plain")); got != KindGeneric {
		t.Errorf("KindOf(plain) = %q, want %q", got, KindGeneric)
	}
	if !errors.Is(wrapped, New(KindDataLayer, "")) {
		t.Error("errors.Is should match by kind")
	}
}

func TestWith_DoesNotMutate(t *testing.T) {
	base := New(KindGeneric, "x")
	a := base.With("a", 1)
	if base.Meta != nil {
		t.Error("With mutated the receiver")
	}
	if a.Meta["a"] != 1 {
		t.Errorf("Meta[a] = %v", a.Meta["a"])
	}
}
