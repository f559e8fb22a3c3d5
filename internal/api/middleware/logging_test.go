package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// logRecord — разобранная JSON-запись журнала запросов.
type logRecord struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	ClientKey string `json:"client_key"`
	Component string `json:"component"`
}

// captureRequest пропускает запрос через RequestLogger и возвращает
// разобранную запись журнала.
func captureRequest(t *testing.T, status int, remoteAddr string) logRecord {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte("ответ"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.RemoteAddr = remoteAddr
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var rec logRecord
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("разбор записи журнала: %v; raw: %s", err, buf.String())
	}
	return rec
}

// TestRequestLogger_ClientKey проверяет, что запись журнала несёт
// ключ клиента без порта — тот же, что в трекере и аудите.
func TestRequestLogger_ClientKey(t *testing.T) {
	rec := captureRequest(t, http.StatusOK, "192.0.2.10:51000")

	if rec.ClientKey != "192.0.2.10" {
		t.Errorf("client_key = %q, ожидалось 192.0.2.10", rec.ClientKey)
	}
	if rec.Method != http.MethodGet || rec.Path != "/api/documents" {
		t.Errorf("method/path = %q %q", rec.Method, rec.Path)
	}
	if rec.Status != http.StatusOK {
		t.Errorf("status = %d, ожидался 200", rec.Status)
	}
	if rec.Component != "http" {
		t.Errorf("component = %q, ожидалось http", rec.Component)
	}
}

// TestRequestLogger_Levels проверяет уровень записи по статус-коду.
func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		rec := captureRequest(t, tt.status, "192.0.2.10:51000")
		if rec.Level != tt.level {
			t.Errorf("статус %d: уровень = %q, ожидался %q", tt.status, rec.Level, tt.level)
		}
	}
}
