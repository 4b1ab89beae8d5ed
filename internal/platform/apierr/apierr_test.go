package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromMapsTaxonomy(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", NotFound("session"), http.StatusNotFound, CodeNotFound},
		{"not active", SessionNotActive(errors.New("x")), http.StatusBadRequest, CodeSessionNotActive},
		{"already closed", AlreadyClosed(errors.New("x")), http.StatusConflict, CodeAlreadyClosed},
		{"already responded", AlreadyResponded(errors.New("x")), http.StatusConflict, CodeAlreadyResponded},
		{"validation", Validation(errors.New("x")), http.StatusBadRequest, CodeValidation},
		{"upstream", UpstreamUnavailable(errors.New("x")), http.StatusServiceUnavailable, CodeUpstreamUnavailable},
		{"persistence", Persistence(errors.New("x")), http.StatusInternalServerError, CodePersistence},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, CodePersistence},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("learner")), http.StatusNotFound, CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, code := From(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("From() = (%d, %q), want (%d, %q)", status, code, tc.status, tc.code)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", AlreadyClosed(errors.New("done")))
	if !IsCode(err, CodeAlreadyClosed) {
		t.Fatal("IsCode missed wrapped error")
	}
	if IsCode(err, CodeNotFound) {
		t.Fatal("IsCode matched wrong code")
	}
	if IsCode(errors.New("plain"), CodeNotFound) {
		t.Fatal("IsCode matched plain error")
	}
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("row missing")
	err := Persistence(inner)
	if !errors.Is(err, inner) {
		t.Fatal("wrapped error not reachable via errors.Is")
	}
}
