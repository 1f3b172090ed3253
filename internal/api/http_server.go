package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"kassabot/internal/config"
	"kassabot/internal/dispatch"
	"kassabot/internal/domain"
	"kassabot/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// HTTPServer exposes the control channel next to the Telegram front end.
// Both drive the same command dispatcher.
type HTTPServer struct {
	cfg        config.APIConfig
	dispatcher domain.Dispatcher
	metrics    *metrics.Metrics
	logger     *zerolog.Logger
	server     *http.Server
	limiters   sync.Map // map[string]*rate.Limiter
}

func NewHTTPServer(cfg config.APIConfig, dispatcher domain.Dispatcher, m *metrics.Metrics, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	srv := &HTTPServer{cfg: cfg, dispatcher: dispatcher, metrics: m, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/commands", srv.handleCommand)
	mux.HandleFunc("/healthz", srv.handleHealthz)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP control channel listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// commandRequest is the control channel body. Extra fields carry command
// arguments; set_schedule uses "time".
type commandRequest struct {
	Command string `json:"command"`
	Time    string `json:"time"`
}

func (s *HTTPServer) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := s.checkRateLimit(r); err != nil {
		s.writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	var body commandRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if body.Command == "" {
		s.writeError(w, http.StatusBadRequest, "Command not provided")
		return
	}

	cmd := domain.Command{Name: body.Command}
	if body.Command == dispatch.CmdSetSchedule {
		if strings.TrimSpace(body.Time) == "" {
			s.writeError(w, http.StatusBadRequest, "Time not provided")
			return
		}
		cmd.Args = []string{body.Time}
	}

	if s.metrics != nil {
		s.metrics.CommandsProcessed.WithLabelValues(cmd.Name, "http").Inc()
	}

	result, err := s.dispatcher.Handle(r.Context(), cmd)
	if err != nil {
		var usage *dispatch.UsageError
		if errors.As(err, &usage) {
			s.writeError(w, http.StatusBadRequest, usage.Message)
		} else {
			s.writeError(w, http.StatusBadRequest, "Unknown command")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) checkRateLimit(r *http.Request) error {
	if s.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	key := clientKey(r)
	lim := s.getLimiter(key)
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}
	return nil
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (s *HTTPServer) getLimiter(key string) *rate.Limiter {
	if v, ok := s.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := s.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RPS), burst)
	actual, loaded := s.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(recorder.status)).Inc()
		}
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *HTTPServer) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
