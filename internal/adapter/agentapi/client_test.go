package agentapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendMessage_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/message" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req messageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Type != "user" {
			t.Errorf("type = %q, want user", req.Type)
		}
		if req.Content != "fix the login bug" {
			t.Errorf("content = %q", req.Content)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	ack, err := NewClient().SendMessage(context.Background(), srv.URL, "fix the login bug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack != "accepted" {
		t.Errorf("ack = %q, want accepted", ack)
	}
}

func TestSendMessage_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "agent busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient().SendMessage(context.Background(), srv.URL, "hello")
	if err == nil {
		t.Fatal("expected error for non-OK status")
	}
}

func TestSendMessage_PlainTextAck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	}))
	defer srv.Close()

	ack, err := NewClient().SendMessage(context.Background(), srv.URL, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ack != "ok" {
		t.Errorf("ack = %q, want ok", ack)
	}
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if err := NewClient().Status(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStatus_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if err := NewClient().Status(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for unhealthy agent")
	}
}
