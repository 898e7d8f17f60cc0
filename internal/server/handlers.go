package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"newsroom/internal/core"
	"newsroom/internal/logger"
	"newsroom/internal/services"
)

// HealthResponse is the /health body
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewsletterRequest is the POST /api/newsletter body
type NewsletterRequest struct {
	CategoryDir  string   `json:"category_dir"`
	Categories   []string `json:"categories"`
	OpenAIKey    string   `json:"openai_key"`
	AnthropicKey string   `json:"anthropic_key"`
}

// Envelope wraps every newsletter response; StatusCode matches the HTTP status
type Envelope struct {
	StatusCode int `json:"statusCode"`
	Body       any `json:"body"`
}

// NewsletterBody is the success payload
type NewsletterBody struct {
	Newsletter string   `json:"newsletter"`
	Score      float64  `json:"score"`
	Categories []string `json:"categories"`
}

// ErrorBody is the failure payload
type ErrorBody struct {
	Error string `json:"error"`
}

const maxRequestBytes = 1 << 20

// handleHealth handles the /health endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db == nil {
		s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	checks := make(map[string]string)
	if err := s.db.Ping(r.Context()); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status: "unhealthy",
			Checks: checks,
		})
		return
	}

	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Checks: checks,
	})
}

// handleNewsletter handles POST /api/newsletter
func (s *Server) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	var req NewsletterRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.respondEnvelope(w, http.StatusBadRequest, ErrorBody{Error: "failed to read request body"})
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.respondEnvelope(w, http.StatusBadRequest, ErrorBody{Error: "invalid JSON body"})
			return
		}
	}

	if req.OpenAIKey == "" || req.AnthropicKey == "" {
		s.respondEnvelope(w, http.StatusBadRequest, ErrorBody{Error: "Missing required API keys"})
		return
	}

	dir := req.CategoryDir
	if dir == "" {
		dir = s.defaults.Dir
	}
	categories := req.Categories
	if len(categories) == 0 {
		categories = s.defaults.Categories
	}

	result, err := s.newsletter.Generate(r.Context(), services.NewsletterRequest{
		Dir:          dir,
		Categories:   categories,
		OpenAIKey:    req.OpenAIKey,
		AnthropicKey: req.AnthropicKey,
	})
	if err != nil {
		if errors.Is(err, core.ErrMissingCredentials) {
			s.respondEnvelope(w, http.StatusBadRequest, ErrorBody{Error: "Missing required API keys"})
			return
		}
		logger.Error("Newsletter generation failed", err, "dir", dir)
		s.respondEnvelope(w, http.StatusInternalServerError, ErrorBody{Error: err.Error()})
		return
	}

	s.respondEnvelope(w, http.StatusOK, NewsletterBody{
		Newsletter: result.Newsletter,
		Score:      result.Score,
		Categories: categories,
	})
}

func (s *Server) respondEnvelope(w http.ResponseWriter, status int, body any) {
	s.respondJSON(w, status, Envelope{StatusCode: status, Body: body})
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}
