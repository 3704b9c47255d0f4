package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"loyalty-relay/internal/logger"
	"loyalty-relay/internal/models"
)

const maxBodyBytes = 1 << 20

// OrderRouter routes one decoded order
type OrderRouter interface {
	Handle(ctx context.Context, requestID string, order *models.Order) (*models.RoutingOutcome, error)
}

// Handler handles HTTP requests from the ordering platform
type Handler struct {
	router OrderRouter
	logger *logger.Logger
}

// NewHandler creates a new webhook handler
func NewHandler(router OrderRouter, log *logger.Logger) *Handler {
	return &Handler{
		router: router,
		logger: log,
	}
}

// ReceiveWebhook handles POST /webhook requests
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFrom(r)

	if r.Method != http.MethodPost {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", requestID)
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("webhook_panic", "Unexpected failure while routing order", requestID,
				fmt.Errorf("panic: %v", rec), nil)
			h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("body_read_failed", "Failed to read request body", requestID, err, nil)
		h.writeErrorResponse(w, http.StatusBadRequest, "Invalid request body", requestID)
		return
	}

	order, err := models.DecodeWebhook(body)
	if err != nil {
		h.rejectOrFail(w, err, requestID)
		return
	}

	h.logger.Debug("order_received", fmt.Sprintf("Received order %s", order.ID), requestID, map[string]interface{}{
		"order_id": order.ID.String(),
		"status":   string(order.Status),
		"type":     string(order.Type),
		"ready":    order.Ready,
	})

	// A client disconnect must not cut the action sequence short.
	outcome, err := h.router.Handle(context.WithoutCancel(r.Context()), requestID, order)
	if err != nil {
		h.rejectOrFail(w, err, requestID)
		return
	}

	h.logger.Info("order_routed", fmt.Sprintf("Order %s routed", order.ID), requestID, map[string]interface{}{
		"order_id": order.ID.String(),
		"outcome":  string(outcome.Status),
		"reason":   outcome.Reason,
		"actions":  len(outcome.Actions),
	})

	writeJSON(w, http.StatusOK, outcome)
}

// rejectOrFail maps validation errors to 400 and anything else to a generic 500
func (h *Handler) rejectOrFail(w http.ResponseWriter, err error, requestID string) {
	var verr models.ValidationError
	if errors.As(err, &verr) {
		h.logger.Info("validation_failed", "Webhook payload rejected", requestID, map[string]interface{}{
			"field":  verr.Field,
			"reason": verr.Message,
		})
		h.writeErrorResponse(w, http.StatusBadRequest, verr.Error(), requestID)
		return
	}

	h.logger.Error("routing_failed", "Failed to route order", requestID, err, nil)
	h.writeErrorResponse(w, http.StatusInternalServerError, "Internal server error", requestID)
}

// HealthCheck handles GET /health requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed", "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "webhook-service",
	})
}

// writeErrorResponse writes an error response in JSON format
func (h *Handler) writeErrorResponse(w http.ResponseWriter, statusCode int, message, requestID string) {
	writeJSON(w, statusCode, map[string]interface{}{
		"status":     string(models.OutcomeError),
		"error":      message,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", h.withLogging(h.ReceiveWebhook))
	mux.HandleFunc("/health", h.withLogging(h.HealthCheck))
	mux.HandleFunc("/{$}", h.withLogging(h.ReceiveWebhook))

	return mux
}

type ctxKey struct{}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(ctxKey{}).(string); ok {
		return id
	}
	return logger.GenerateRequestID()
}

// withLogging adds request logging middleware
func (h *Handler) withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logger.GenerateRequestID()

		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		r = r.WithContext(ctx)

		h.logger.Debug("request_started",
			fmt.Sprintf("%s %s", r.Method, r.URL.Path),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.Header.Get("User-Agent"),
			})

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(rw, r)

		duration := time.Since(start)
		h.logger.Debug("request_completed",
			fmt.Sprintf("%s %s - %d", r.Method, r.URL.Path, rw.statusCode),
			requestID,
			map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status_code": rw.statusCode,
				"duration_ms": duration.Milliseconds(),
			})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
