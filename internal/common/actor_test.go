package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireActorRejectsMissingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an actor")
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sales", nil)
	RequireActor(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRequireActorPropagatesIdentity(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sales", nil)
	req.Header.Set(ActorHeader, "cashier-1")
	RequireActor(next).ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got != "cashier-1" {
		t.Fatalf("expected actor cashier-1, got %q", got)
	}
}
