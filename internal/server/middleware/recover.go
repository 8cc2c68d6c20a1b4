package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// ErrPanic is handed to the ErrorWriter when a handler panics.
var ErrPanic = errors.New("handler panicked")

// Recoverer turns a handler panic into an ordinary error response rendered by
// onPanic, logging the panic value and stack. http.ErrAbortHandler is
// re-raised so net/http can abort the connection.
func Recoverer(log *zap.Logger, onPanic ErrorWriter) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("handler panicked",
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("panic", fmt.Sprint(rec)),
					zap.ByteString("stack", debug.Stack()))
				onPanic(w, r, ErrPanic)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
