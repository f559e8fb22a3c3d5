package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestRecoverer_PanicReturns500 проверяет, что паника обработчика
// превращается в стандартный ответ 500, а стек попадает в журнал.
func TestRecoverer_PanicReturns500(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("что-то пошло не так")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.RemoteAddr = "192.0.2.10:51000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, ожидался 500", rr.Code)
	}

	body, _ := io.ReadAll(rr.Body)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("разбор тела ответа: %v", err)
	}
	if resp.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("код ошибки = %q, ожидался INTERNAL_ERROR", resp.Error.Code)
	}
	if strings.Contains(resp.Error.Message, "что-то пошло не так") {
		t.Error("детали паники не должны попадать в ответ клиенту")
	}

	logged := buf.String()
	if !strings.Contains(logged, "что-то пошло не так") {
		t.Error("детали паники должны попадать в журнал")
	}
	if !strings.Contains(logged, "stack") {
		t.Error("в журнале нет стека вызовов")
	}
}

// TestRecoverer_PassThrough проверяет, что без паники ответ
// обработчика проходит без изменений.
func TestRecoverer_PassThrough(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	handler := Recoverer(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("ок"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusCreated {
		t.Errorf("статус = %d, ожидался 201", rr.Code)
	}
	if rr.Body.String() != "ок" {
		t.Errorf("тело = %q, ожидалось ок", rr.Body.String())
	}
}
