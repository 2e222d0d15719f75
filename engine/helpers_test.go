package engine

import (
	"errors"
	"testing"
)

// newTestEngine creates a runtime with one attached engine. Options are
// adjusted by the given functions; the runtime is shut down at cleanup.
func newTestEngine(t *testing.T, adjust ...func(*Options)) (*Runtime, *Engine) {
	t.Helper()
	opts := DefaultOptions()
	for _, fn := range adjust {
		fn(&opts)
	}
	rt := New(opts)
	e, err := rt.Attach()
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	t.Cleanup(rt.Shutdown)
	return rt, e
}

// build returns a new handle unified with tmpl.
func build(t *testing.T, e *Engine, tmpl Template) Term {
	t.Helper()
	h := e.NewTermRef()
	if h == 0 {
		t.Fatal("NewTermRef returned 0")
	}
	if !e.UnifyTerm(h, tmpl) {
		t.Fatalf("UnifyTerm failed (exception pending: %v)", e.HasException())
	}
	return h
}

// expectAPIError runs fn and fails unless it panics with an *APIError.
func expectAPIError(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected an API usage error")
		}
		err, ok := r.(error)
		var apiErr *APIError
		if !ok || !errors.As(err, &apiErr) {
			t.Fatalf("expected *APIError, got %v", r)
		}
	}()
	fn()
}

// exceptionString renders the pending exception.
func exceptionString(e *Engine) string {
	if !e.HasException() {
		return ""
	}
	return e.TermString(e.Exception())
}
