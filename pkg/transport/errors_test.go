package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusNotFound, "resource not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if raw["success"] != false {
		t.Errorf("success = %v, want false", raw["success"])
	}
	if raw["error"] != "resource not found" {
		t.Errorf("error = %v, want %q", raw["error"], "resource not found")
	}
	if len(raw) != 2 {
		t.Errorf("body has %d fields, want exactly 2: %v", len(raw), raw)
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]any{"success": true, "id": "t1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if raw["id"] != "t1" {
		t.Errorf("id = %v, want t1", raw["id"])
	}
}
