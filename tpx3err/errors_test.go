package tpx3err

import (
	"errors"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(ResourceExhausted, "budget exceeded", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find wrapped cause")
	}
	var got *Error
	if !errors.As(err, &got) {
		t.Fatalf("expected errors.As to recover *Error")
	}
	if got.Kind != ResourceExhausted {
		t.Fatalf("kind = %v, want ResourceExhausted", got.Kind)
	}
}

func TestErrCanceledIsCanceled(t *testing.T) {
	if !errors.Is(ErrCanceled, ErrCanceled) {
		t.Fatalf("sentinel should match itself")
	}
	if ErrCanceled.Kind != Canceled {
		t.Fatalf("ErrCanceled.Kind = %v, want Canceled", ErrCanceled.Kind)
	}
}
