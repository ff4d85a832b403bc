package hub

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestVerbForState(t *testing.T) {
	if VerbForState(true) != VerbTurnOn {
		t.Error("expected turn_on for true")
	}
	if VerbForState(false) != VerbTurnOff {
		t.Error("expected turn_off for false")
	}
}

func TestSendCommand(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token-123", time.Second)
	if err := c.SendCommand(context.Background(), "light.kitchen", VerbTurnOn); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	if gotPath != "/api/services/light/turn_on" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody["entity_id"] != "light.kitchen" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestSendCommandNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "entity not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", time.Second)
	err := c.SendCommand(context.Background(), "light.ghost", VerbTurnOff)
	if err == nil {
		t.Fatal("expected error on 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "entity not found") {
		t.Errorf("error should carry status and body, got: %v", err)
	}
}

func TestSendCommandTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", 20*time.Millisecond)
	if err := c.SendCommand(context.Background(), "light.slow", VerbTurnOn); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestStates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"entity_id":"light.kitchen","state":"on"}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "token", time.Second)
	states, err := c.States(context.Background())
	if err != nil {
		t.Fatalf("States failed: %v", err)
	}

	var parsed []map[string]any
	if err := json.Unmarshal(states, &parsed); err != nil {
		t.Fatalf("invalid state payload: %v", err)
	}
	if len(parsed) != 1 || parsed[0]["entity_id"] != "light.kitchen" {
		t.Errorf("unexpected states: %v", parsed)
	}
}
