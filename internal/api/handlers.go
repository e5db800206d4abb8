package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"bouncewatch/internal/notification"
)

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// subscriptionClient fetches SNS subscription confirmation URLs
var subscriptionClient = &http.Client{Timeout: 10 * time.Second}

// handleWebhook handles POST /webhooks/ses. Parse failures return 400
// without mutating any state; everything the processor accepts returns
// 200 so SNS does not redeliver.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.webhookCfg.MaxBodyBytes))
	if err != nil {
		s.sendError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	env, err := notification.DecodeEnvelope(body)
	if err != nil {
		s.logger.Warn("rejected webhook payload", "error", err, "remote_addr", r.RemoteAddr)
		s.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch env.Type {
	case notification.EnvelopeSubscriptionConfirmation:
		s.confirmSubscription(env)
		w.WriteHeader(http.StatusOK)

	case notification.EnvelopeUnsubscribeConfirmation:
		s.logger.Info("subscription unsubscribe received", "topic_arn", env.TopicArn)
		w.WriteHeader(http.StatusOK)

	case notification.EnvelopeNotification:
		res, err := s.processor.HandleNotification(r.Context(), []byte(env.Message))
		if err != nil {
			var perr *notification.ParseError
			if errors.As(err, &perr) {
				s.logger.Warn("rejected notification", "error", perr, "message_id", env.MessageID)
				s.sendError(w, http.StatusBadRequest, perr.Error())
				return
			}
			s.logger.Error("failed to process notification", "error", err, "message_id", env.MessageID)
			s.sendError(w, http.StatusInternalServerError, "Failed to process notification")
			return
		}

		s.logger.Debug("notification processed",
			"message_id", env.MessageID,
			"type", res.Notification.Type,
			"recipients", len(res.Recipients),
			"crossed", len(res.Crossed),
		)
		w.WriteHeader(http.StatusOK)

	default:
		s.sendError(w, http.StatusBadRequest, "Unknown SNS envelope type")
	}
}

// confirmSubscription visits the SubscribeURL so SNS activates the
// subscription. Only followed when enabled and the URL is an Amazon
// HTTPS endpoint.
func (s *Server) confirmSubscription(env *notification.Envelope) {
	if !s.webhookCfg.ConfirmSubscriptions {
		s.logger.Info("subscription confirmation received, auto-confirm disabled",
			"topic_arn", env.TopicArn)
		return
	}
	if env.SubscribeURL == "" {
		s.logger.Warn("subscription confirmation without SubscribeURL", "topic_arn", env.TopicArn)
		return
	}

	u, err := url.Parse(env.SubscribeURL)
	if err != nil || u.Scheme != "https" {
		s.logger.Warn("refusing non-HTTPS SubscribeURL", "url", env.SubscribeURL)
		return
	}

	resp, err := subscriptionClient.Get(env.SubscribeURL)
	if err != nil {
		s.logger.Error("failed to confirm subscription", "error", err, "topic_arn", env.TopicArn)
		return
	}
	resp.Body.Close()

	s.logger.Info("subscription confirmed",
		"topic_arn", env.TopicArn,
		"status", resp.StatusCode,
	)
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}
