package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/averlon/oauth2-engine/internal/grantflow"
)

func (s *server) handleToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := grantflow.NewRequest(r)
		if err != nil {
			s.metrics.observeToken("", "error")
			writeBadRequest(w, "malformed request body")
			return
		}
		resp := grantflow.NewResponse()

		grantType := req.BodyValue("grant_type")
		if _, err := s.engine.Token(r.Context(), req, resp); err != nil {
			s.metrics.observeToken(grantType, "error")
			s.logger.Info("token request failed",
				zap.String("grant_type", grantType),
				zap.Error(err),
			)
		} else {
			s.metrics.observeToken(grantType, "ok")
		}

		// The engine recorded the full response, error or not.
		if err := resp.WriteTo(w); err != nil {
			s.logger.Error("writing token response", zap.Error(err))
		}
	}
}

func (s *server) handleAuthorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := grantflow.NewRequest(r)
		if err != nil {
			s.metrics.observeAuthorize("", "error")
			writeBadRequest(w, "malformed request body")
			return
		}
		resp := grantflow.NewResponse()

		responseType := req.Param("response_type")
		_, handleErr := s.engine.Authorize(r.Context(), req, resp)
		if handleErr != nil {
			s.metrics.observeAuthorize(responseType, "error")
			s.logger.Info("authorize request failed",
				zap.String("response_type", responseType),
				zap.Error(handleErr),
			)
			// Errors before the client was validated have no redirect
			// target; surface them as a direct JSON error instead.
			if !resp.IsRedirect() {
				writeOAuthError(w, handleErr)
				return
			}
		} else {
			s.metrics.observeAuthorize(responseType, "ok")
		}

		if err := resp.WriteTo(w); err != nil {
			s.logger.Error("writing authorize response", zap.Error(err))
		}
	}
}

func (s *server) handleHealth() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.health != nil {
			if err := s.health.CheckHealth(r.Context()); err != nil {
				s.logger.Warn("health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(response{Status: "unhealthy"})
				return
			}
		}
		_ = json.NewEncoder(w).Encode(response{Status: "ok"})
	}
}

func writeBadRequest(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "invalid_request",
		"error_description": description,
	})
}

func writeOAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "server_error"
	description := ""

	var oe *grantflow.Error
	if errors.As(err, &oe) {
		status = oe.Status()
		code = string(oe.Kind())
		description = oe.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	body := map[string]string{"error": code}
	if description != "" {
		body["error_description"] = description
	}
	_ = json.NewEncoder(w).Encode(body)
}
