package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"greetbox/api/internal/store"
)

func newTestServer(fs *fakeStore) *httptest.Server {
	svc, _, _, _ := newTestService(fs)
	httpServer := NewHTTPServer(svc, "*")
	return httptest.NewServer(httpServer.Handler())
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Errorf("expected ok true, got %v", body["ok"])
	}
}

func TestGreetingsRequireSession(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/greetings")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginThenListGreetings(t *testing.T) {
	fs := &fakeStore{
		listFn: func(ctx context.Context, authorID string) ([]store.Greeting, error) {
			return []store.Greeting{{ID: "g1", Title: "Hello", AccessType: store.AccessPublic}}, nil
		},
	}
	server := newTestServer(fs)
	defer server.Close()

	loginResp, err := http.Post(server.URL+"/api/session/login", "application/json",
		strings.NewReader(`{"name":"Ann"}`))
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	defer loginResp.Body.Close()
	var login struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(loginResp.Body).Decode(&login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("login returned no token")
	}

	req, _ := http.NewRequest(http.MethodGet, server.URL+"/api/greetings", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Greetings []map[string]any `json:"greetings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(body.Greetings) != 1 || body.Greetings[0]["title"] != "Hello" {
		t.Errorf("unexpected list payload %+v", body.Greetings)
	}
}

func TestViewEndpointPublic(t *testing.T) {
	g := store.Greeting{ID: "g1", Title: "Hi", Markup: sampleMarkup, AccessType: store.AccessPublic}
	fs := &fakeStore{
		policyFn: func(ctx context.Context, id string) (store.GreetingPolicy, error) {
			return store.GreetingPolicy{ID: id, AccessType: store.AccessPublic}, nil
		},
		getFn: func(ctx context.Context, id string) (store.Greeting, error) {
			return g, nil
		},
	}
	server := newTestServer(fs)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/view/g1")
	if err != nil {
		t.Fatalf("view request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if body["state"] != "granted" {
		t.Errorf("expected granted, got %v", body["state"])
	}
	if body["viewSession"] == nil {
		t.Error("view session id missing from payload")
	}
}

func TestViewEndpointNotFound(t *testing.T) {
	server := newTestServer(&fakeStore{})
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/view/missing")
	if err != nil {
		t.Fatalf("view request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if body["state"] != "not_found" {
		t.Errorf("expected not_found, got %v", body["state"])
	}
}
