package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/iho/creditledger/internal/adapter/http/dto"
	"github.com/iho/creditledger/internal/domain"
)

var httpPanicsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_panics_total",
		Help: "Handler panics recovered, by route",
	},
	[]string{"method", "path"},
)

// Recovery turns a handler panic into a 500 carrying the internal error
// code. Aborted handlers keep propagating.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			path := normalizePath(r.URL.Path)
			httpPanicsTotal.WithLabelValues(r.Method, path).Inc()

			logger := zerolog.Ctx(r.Context())
			if logger.GetLevel() == zerolog.Disabled {
				logger = &log.Logger
			}

			logger.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Str("method", r.Method).
				Str("path", path).
				Msg("panic recovered")

			resp := dto.ErrorResponse{
				Error: "internal server error",
				Code:  string(domain.CodeInternal),
			}
			if id := chimiddleware.GetReqID(r.Context()); id != "" {
				resp.Message = "request " + id
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(resp)
		}()

		next.ServeHTTP(w, r)
	})
}
