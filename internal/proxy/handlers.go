package proxy

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "quiz-recommender/internal/common/errors"
	httpclient "quiz-recommender/internal/common/http"
	"quiz-recommender/internal/common/validation"
	"quiz-recommender/internal/provider/yelp"
)

type errorBody struct {
	Error   string      `json:"error"`
	Code    string      `json:"code,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type searchResponse struct {
	Businesses []json.RawMessage `json:"businesses"`
}

type detailsResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	IsClosed  *bool           `json:"is_closed"`
	IsOpenNow *bool           `json:"is_open_now"`
	Hours     json.RawMessage `json:"hours"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body SearchBody
	if !s.decode(w, r, searchSchema, &body) {
		return
	}
	if !s.requireCredential(w) {
		return
	}

	resp, err := s.provider.Search(r.Context(), toParams(body, s.cfg))
	if err != nil {
		s.writeProviderError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Businesses: resp.Businesses})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	var body DetailsBody
	if !s.decode(w, r, detailsSchema, &body) {
		return
	}
	id := strings.TrimSpace(body.ID)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error: "missing 'id' in body",
			Code:  string(apperrors.ErrCodeInvalidRequest),
		})
		return
	}
	if !s.requireCredential(w) {
		return
	}

	b, err := s.provider.Business(r.Context(), id)
	if err != nil {
		s.writeProviderError(w, "details", err)
		return
	}
	hours := b.Hours
	if len(hours) == 0 {
		hours = json.RawMessage("null")
	}
	writeJSON(w, http.StatusOK, detailsResponse{
		ID:        b.ID,
		Name:      b.Name,
		IsClosed:  b.IsClosed,
		IsOpenNow: b.IsOpenNow(),
		Hours:     hours,
	})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status, code := "healthy", http.StatusOK
	if !s.provider.HasCredential() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]interface{}{
		"status":        status,
		"credential":    s.provider.HasCredential(),
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
	})
}

// decode reads, validates and unmarshals a JSON body. An empty body is {}.
// It writes a 400 and returns false on any failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, schema *validation.Schema, dst interface{}) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body", Code: string(apperrors.ErrCodeInvalidRequest)})
		return false
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		raw = []byte("{}")
	}

	result, err := schema.ValidateBytes(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON", Code: string(apperrors.ErrCodeInvalidRequest)})
		return false
	}
	if !result.Valid {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid request",
			Code:    string(apperrors.ErrCodeInvalidRequest),
			Details: result.GetErrorMessages(),
		})
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid request",
			Code:    string(apperrors.ErrCodeInvalidRequest),
			Details: err.Error(),
		})
		return false
	}
	return true
}

func (s *Server) requireCredential(w http.ResponseWriter) bool {
	if s.provider.HasCredential() {
		return true
	}
	s.logger.Error("Provider credential is not configured", nil)
	writeJSON(w, http.StatusInternalServerError, errorBody{
		Error: "missing provider credential",
		Code:  string(apperrors.ErrCodeConfiguration),
	})
	return false
}

// writeProviderError passes provider statuses through and reports transport
// failures as 502.
func (s *Server) writeProviderError(w http.ResponseWriter, endpoint string, err error) {
	var statusErr *yelp.StatusError
	switch {
	case errors.As(err, &statusErr):
		writeJSON(w, statusErr.Status, errorBody{Error: "provider error", Details: statusErr.Body})
	case errors.Is(err, yelp.ErrMissingCredential):
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Error: "missing provider credential",
			Code:  string(apperrors.ErrCodeConfiguration),
		})
	default:
		s.logger.Warn("Provider call failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		writeJSON(w, http.StatusBadGateway, errorBody{
			Error: "provider unavailable",
			Code:  string(apperrors.ErrCodeTransientNetwork),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if body, ok := v.(errorBody); ok && body.Code != "" {
		w.Header().Set(httpclient.ErrorCodeHeader, body.Code)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
