package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/factorlab/internal/api/handlers"
	"github.com/wonny/factorlab/pkg/logger"
)

// HTTPRecorder records request metrics (metrics.Recorder)
type HTTPRecorder interface {
	RecordHTTP(route, method string, status int, d time.Duration)
}

// Deps are the components the router wires.
// A nil Analysis/Events/Metrics leaves its routes out.
type Deps struct {
	Analysis *handlers.AnalysisHandler
	Preview  *handlers.PreviewHandler
	Events   http.HandlerFunc // websocket status stream
	Metrics  http.Handler     // /metrics
	Recorder HTTPRecorder
	Logger   *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods("GET")
	}
	if d.Events != nil {
		r.HandleFunc("/ws/analyses", d.Events).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	if d.Preview != nil {
		api.HandleFunc("/score/preview", d.Preview.Preview).Methods("POST")
	}
	if d.Analysis != nil {
		api.HandleFunc("/analyses", d.Analysis.Create).Methods("POST")
		api.HandleFunc("/analyses/{id:[0-9]+}", d.Analysis.Get).Methods("GET")
		api.HandleFunc("/analyses/{id:[0-9]+}/process", d.Analysis.Process).Methods("POST")
		api.HandleFunc("/analyses/{id:[0-9]+}/result", d.Analysis.Result).Methods("GET")
		api.HandleFunc("/analyses/{id:[0-9]+}/transactions", d.Analysis.Transactions).Methods("GET")
	}

	// Apply middleware (outermost first)
	r.Use(recoveryMiddleware(d.Logger))
	r.Use(loggingMiddleware(d.Logger))
	if d.Recorder != nil {
		r.Use(metricsMiddleware(d.Recorder))
	}

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "factorlab-api",
	})
}

// statusWriter captures the response status; Hijack keeps websocket upgrades working
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func wrap(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)

			next.ServeHTTP(sw, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   sw.status,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// metricsMiddleware records request count and latency per route template
func metricsMiddleware(rec HTTPRecorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)

			next.ServeHTTP(sw, r)

			route := "unknown"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			rec.RecordHTTP(route, r.Method, sw.status, time.Since(start))
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
