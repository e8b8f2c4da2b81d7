package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIdentify_Found(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":42,"email":"dana@example.com"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	res, err := c.Identify(context.Background(), "dana@example.com", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Found || res.UserID != "42" {
		t.Errorf("result = %+v, want Found user 42", res)
	}
	if gotBody["email"] != "dana@example.com" || gotBody["password"] != "secret" {
		t.Errorf("request body = %v", gotBody)
	}
}

func TestIdentify_StringIDAccepted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{"id":"u-7"}}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Identify(context.Background(), "a@b.c", "p")
	if err != nil {
		t.Fatal(err)
	}
	if res.UserID != "u-7" {
		t.Errorf("UserID = %q, want u-7", res.UserID)
	}
}

func TestIdentify_UnauthorizedIsNotFoundNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Identify(context.Background(), "a@b.c", "wrong")
	if err != nil {
		t.Fatalf("401 surfaced as error: %v", err)
	}
	if res.Found {
		t.Error("401 reported as found")
	}
}

func TestIdentify_ServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Identify(context.Background(), "a@b.c", "p"); err == nil {
		t.Fatal("502 not surfaced as error")
	}
}

func TestIdentify_MissingUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"user":{}}`))
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Identify(context.Background(), "a@b.c", "p"); err == nil {
		t.Fatal("missing user id not surfaced as error")
	}
}
