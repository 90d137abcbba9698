package runtimex

import (
	"errors"
	"testing"
)

func TestPanicIfFalse(t *testing.T) {
	t.Run("expect a panic for a false statement", func(t *testing.T) {
		assertPanic(t, func() { PanicIfFalse(true == false, "should panic") })
	})
	t.Run("do not expect a panic for a true statement", func(t *testing.T) {
		PanicIfFalse(1 == 0+1, "should not panic")
	})
}

func TestAssert(t *testing.T) {
	t.Run("expect a panic for a false statement", func(t *testing.T) {
		assertPanic(t, func() { Assert(true == false, "should panic") })
	})
	t.Run("do not expect a panic for a true statement", func(t *testing.T) {
		Assert(1 == 0+1, "should not panic")
	})
}

func TestPanicOnError(t *testing.T) {
	t.Run("expect a panic wrapping a non-nil error", func(t *testing.T) {
		bad := errors.New("bad thing")
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !errors.Is(err, bad) {
				t.Errorf("expected panic wrapping %v, got %v", bad, r)
			}
		}()
		PanicOnError(bad, "should panic")
	})
	t.Run("do not expect a panic for a nil error", func(t *testing.T) {
		PanicOnError(nil, "should not panic")
	})
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected code to panic")
		}
	}()
	f()
}
