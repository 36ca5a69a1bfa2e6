package json

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()

	WriteNotFound(w, "no route for /nope")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if resp.Error != "not_found" || resp.Message != "no route for /nope" {
		t.Errorf("unexpected body: %+v", resp)
	}
}

func TestWrite(t *testing.T) {
	w := httptest.NewRecorder()

	if err := Write(w, map[string]string{"status": "ok"}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %v, want %v", w.Code, http.StatusOK)
	}
	if got := w.Body.String(); got != "{\"status\":\"ok\"}\n" {
		t.Errorf("body = %q", got)
	}
}

func TestWriteResponse_Unencodable(t *testing.T) {
	w := httptest.NewRecorder()

	if err := WriteResponse(w, http.StatusOK, make(chan int)); err == nil {
		t.Error("expected encode error for channel value")
	}
}
