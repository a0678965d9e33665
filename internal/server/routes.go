package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vitalvas/signgate/internal/api"
	"github.com/vitalvas/signgate/internal/metrics"
	"github.com/vitalvas/signgate/internal/middleware"
	"github.com/vitalvas/signgate/querysig"
)

const (
	serviceName  = "signgate"
	corsMaxAge   = 600
	jsonMimeType = "application/json; charset=utf-8"
)

func (s *Server) routes() (http.Handler, error) {
	securityHeaders, err := middleware.SecurityHeaders(middleware.SecurityHeadersConfig{})
	if err != nil {
		return nil, err
	}

	cors, err := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: s.cfg.CORS.Origins,
		AllowedHeaders: []string{s.signatureHeader(), "Content-Type", middleware.DefaultRequestIDHeader},
		ExposeHeaders:  []string{middleware.DefaultRequestIDHeader},
		MaxAge:         corsMaxAge,
	})
	if err != nil {
		return nil, err
	}

	auth, err := s.authMiddleware()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID(middleware.RequestIDConfig{TrustIncoming: true}))
	r.Use(middleware.AccessLog(s.log))
	r.Use(securityHeaders)
	r.Use(cors)
	r.Use(middleware.Metrics(s.metrics))

	// Inside the access log and metrics so a recovered panic is recorded
	// as the 500 it becomes.
	r.Use(middleware.Recovery(middleware.RecoveryConfig{
		LogFunc: func(r *http.Request, recovered any, stack []byte) {
			s.log.Error("handler panic",
				"request_id", middleware.RequestIDFromContext(r.Context()),
				"panic", recovered,
				"stack", string(stack))
		},
		OnPanic: func(w http.ResponseWriter, _ *http.Request) {
			api.WriteError(w, api.ErrInternal)
		},
	}))

	if d := s.cfg.HTTP.RequestTimeout; d > 0 {
		timeout, err := middleware.Timeout(middleware.TimeoutConfig{
			Duration:    d,
			Body:        envelopeBody(api.ErrTimeout),
			ContentType: jsonMimeType,
		})
		if err != nil {
			return nil, err
		}

		r.Use(timeout)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, api.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		api.WriteError(w, api.ErrMethodNotAllowed)
	})

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/time", s.handleTime)
		r.With(auth).Get("/task/completion", s.handleTaskCompletion)
	})

	return otelhttp.NewHandler(r, serviceName), nil
}

func (s *Server) signatureHeader() string {
	if h := s.cfg.Auth.SignatureHeader; h != "" {
		return h
	}

	return querysig.DefaultHeader
}

// authMiddleware gates a route on a valid query signature. Rejections are
// rendered as envelopes, counted and attached to the request span.
func (s *Server) authMiddleware() (middleware.Func, error) {
	return querysig.Middleware(querysig.MiddlewareConfig{
		Gate: querysig.GateConfig{
			Verifier: s.verifier,
			Header:   s.signatureHeader(),
			Now:      s.now,
		},
		OnReject: func(w http.ResponseWriter, r *http.Request, err error) {
			requestID := middleware.RequestIDFromContext(r.Context())

			if _, ok := querysig.ReasonOf(err); !ok {
				s.log.Error("signature verification unavailable", "request_id", requestID, "error", err)
				api.WriteError(w, api.FromRejection(err))

				return
			}

			s.log.Debug("request rejected",
				"request_id", requestID,
				"reason", verdictLabel(err),
				"error", err)

			api.WriteError(w, api.FromRejection(err))
		},
		OnVerdict: func(r *http.Request, err error, elapsed time.Duration) {
			result := verdictLabel(err)
			s.metrics.ObserveAuth(result, elapsed)

			span := trace.SpanFromContext(r.Context())
			if err == nil {
				span.AddEvent("auth.authenticated")
				return
			}

			span.AddEvent("auth.rejected", trace.WithAttributes(attribute.String("auth.reason", result)))
		},
	})
}

func verdictLabel(err error) string {
	if err == nil {
		return metrics.ResultAuthenticated
	}

	if reason, ok := querysig.ReasonOf(err); ok {
		return reason.String()
	}

	return "error"
}

// envelopeBody renders e as a fixed response body.
func envelopeBody(e *api.Error) string {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(api.Response{Code: e.Code, Message: e.Message}); err != nil {
		return ""
	}

	return buf.String()
}
