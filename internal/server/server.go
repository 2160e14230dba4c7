// Package server exposes the forecast engine and the parameter share-token
// round trip over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/iwvelando/cash-tuner/internal/forecast"
	"github.com/iwvelando/cash-tuner/internal/params"
	"github.com/iwvelando/cash-tuner/pkg/constants"
	"github.com/iwvelando/cash-tuner/pkg/output"
	"go.uber.org/zap"
)

type handler struct {
	logger   *zap.Logger
	engine   *forecast.Engine
	maxBytes int64
	version  string
}

// NewHandler constructs the HTTP handler that serves the forecast API. A nil
// engine uses the default action settings.
func NewHandler(logger *zap.Logger, engine *forecast.Engine, maxBytes int64, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if engine == nil {
		engine = forecast.NewEngine(logger, nil)
	}
	if maxBytes <= 0 {
		maxBytes = constants.DefaultMaxUploadSizeBytes
	}
	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{logger: logger, engine: engine, maxBytes: maxBytes, version: trimmedVersion}

	router := mux.NewRouter()
	router.HandleFunc("/api/simulate", h.handleSimulate).Methods(http.MethodPost)
	router.HandleFunc("/api/params/normalize", h.handleNormalize).Methods(http.MethodPost)
	router.HandleFunc("/api/params/encode", h.handleEncode).Methods(http.MethodPost)
	router.HandleFunc("/api/params/decode", h.handleDecode).Methods(http.MethodGet)
	router.HandleFunc("/api/params/defaults", h.handleDefaults).Methods(http.MethodGet)
	router.HandleFunc("/api/version", h.handleVersion).Methods(http.MethodGet)
	return router
}

type simulateRequest struct {
	Input      forecast.Input `json:"input"`
	Parameters map[string]any `json:"parameters,omitempty"`
	// Token is a share token; it wins over Parameters when set.
	Token string `json:"token,omitempty"`
}

type simulateResponse struct {
	Report   forecast.Report `json:"report"`
	CSV      string          `json:"csv"`
	Token    string          `json:"token"`
	Duration string          `json:"duration"`
}

type parametersResponse struct {
	Parameters params.Parameters `json:"parameters"`
	Notes      []string          `json:"notes,omitempty"`
	Token      string            `json:"token,omitempty"`
	YAML       string            `json:"yaml,omitempty"`
}

func (h *handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulate"
	start := time.Now()

	var req simulateRequest
	if !h.decodeBody(w, r, &req, op) {
		return
	}

	raw := req.Parameters
	if req.Token != "" {
		p, err := params.Decode(req.Token)
		if err != nil {
			h.respondError(w, http.StatusBadRequest, err.Error(), op)
			return
		}
		raw = p.Raw()
	}

	report := h.engine.Run(req.Input, raw)
	token, err := params.Encode(report.Parameters)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}

	elapsed := time.Since(start)
	h.logger.Info("forecast computed",
		zap.String("op", op),
		zap.String("status", report.Status),
		zap.Int("scenarios", len(report.Order)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, simulateResponse{
		Report:   report,
		CSV:      output.CsvString(report),
		Token:    token,
		Duration: elapsed.String(),
	})
}

func (h *handler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleNormalize"
	var raw map[string]any
	if !h.decodeBody(w, r, &raw, op) {
		return
	}
	p, notes := params.NormalizeWithNotes(raw)
	h.respondParameters(w, parametersResponse{Parameters: p, Notes: notes}, op)
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleEncode"
	var raw map[string]any
	if !h.decodeBody(w, r, &raw, op) {
		return
	}
	token, err := params.Encode(params.Normalize(raw))
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
	})
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDecode"
	token := r.URL.Query().Get("token")
	if token == "" {
		h.respondError(w, http.StatusBadRequest, "missing token query parameter", op)
		return
	}
	p, err := params.Decode(token)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	h.respondParameters(w, parametersResponse{Parameters: p}, op)
}

func (h *handler) handleDefaults(w http.ResponseWriter, r *http.Request) {
	h.respondParameters(w, parametersResponse{Parameters: params.Defaults()}, "server.handleDefaults")
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

// respondParameters fills in the token and YAML export of resp.Parameters.
func (h *handler) respondParameters(w http.ResponseWriter, resp parametersResponse, op string) {
	token, err := params.Encode(resp.Parameters)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	yamlBytes, err := params.MarshalYAML(resp.Parameters)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}
	resp.Token = token
	resp.YAML = string(yamlBytes)
	h.writeJSON(w, http.StatusOK, resp)
}

// decodeBody reads a size-limited JSON body into v, responding with an error
// and returning false on failure.
func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, v any, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds limit of %d bytes", h.maxBytes), op)
			return false
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response",
			zap.String("op", "server.writeJSON"),
			zap.Error(err),
		)
	}
}
