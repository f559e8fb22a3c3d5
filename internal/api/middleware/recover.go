// recover.go — перехват паник в обработчиках.
// Паника в одном запросе не должна ронять весь процесс: клиент получает
// стандартный 500, стек попадает в журнал для разбора.
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	apierrors "github.com/bigkaa/godocportal/internal/api/errors"
)

// Recoverer возвращает middleware, перехватывающий панику обработчика.
// Клиенту отправляется 500 в стандартном формате ошибок, детали паники
// остаются только в журнале.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("Паника в обработчике",
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.String("client_key", ClientKey(r)),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					apierrors.InternalError(w, "Внутренняя ошибка сервера")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
