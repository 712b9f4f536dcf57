// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoverer(t *testing.T) {
	panics := map[string]any{
		"string": "basket vanished",
		"int":    42,
		"error":  errors.New("nil variant"),
	}
	for name, value := range panics {
		t.Run(name, func(t *testing.T) {
			h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic(value) }))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/shop/basket", nil))

			if rr.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `"error":"internal server error"`) {
				t.Errorf("body = %q, want JSON error", rr.Body.String())
			}
		})
	}
}

func TestRecovererAfterResponseStarted(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":1}`))
		panic("late failure")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/shop/basket/add/x", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want the already written 201", rr.Code)
	}
	if rr.Body.String() != `{"id":1}` {
		t.Errorf("body = %q, nothing should be appended", rr.Body.String())
	}
}

func TestRecovererReraisesAbort(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic(http.ErrAbortHandler) }))
	defer func() {
		if p := recover(); p != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler", p)
		}
	}()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	t.Error("ServeHTTP should have panicked")
}

func TestRecovererPassThrough(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Basket", "b-1")
		w.Write([]byte("ok"))
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/shop/basket", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "ok" || rr.Header().Get("X-Basket") != "b-1" {
		t.Errorf("got %d %q %q", rr.Code, rr.Body.String(), rr.Header().Get("X-Basket"))
	}
}
