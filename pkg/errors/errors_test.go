package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test")
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestWrappedCopyMatchesSentinel(t *testing.T) {
	cause := stdErrors.New("unexpected end of JSON input")
	err := fmt.Errorf("get: %w", ErrDecode.WithInternal(cause))

	if !stdErrors.Is(err, ErrDecode) {
		t.Fatal("expected wrapped copy to match ErrDecode")
	}
	if stdErrors.Is(err, ErrInvalidValue) {
		t.Fatal("did not expect match against a different code")
	}
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected internal cause to remain reachable")
	}
	if Code(err) != ErrDecode.Code {
		t.Fatalf("expected code %s, got %s", ErrDecode.Code, Code(err))
	}
}

func TestFromError(t *testing.T) {
	cacheErr := ErrNotFound
	if out := FromError(cacheErr); out != cacheErr {
		t.Fatal("expected FromError to return the same CacheError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternal.Code {
		t.Fatalf("expected internal code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestWithMessage(t *testing.T) {
	err := ErrInvalidValue.WithMessage("value must not be nil")
	if err.Code != ErrInvalidValue.Code {
		t.Fatalf("expected %s, got %s", ErrInvalidValue.Code, err.Code)
	}
	if err.Message != "value must not be nil" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if ErrInvalidValue.Message == err.Message {
		t.Fatal("expected sentinel message to remain unchanged")
	}
}
