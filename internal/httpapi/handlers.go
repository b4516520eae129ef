package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MimeLyc/isp-diag/internal/llm"
	"github.com/MimeLyc/isp-diag/pkg/log"
)

const maxAnalyzeBody = 1 << 20

type analyzeRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.llmConfigured {
		writeError(w, http.StatusServiceUnavailable, llm.ErrNoCredential.Error())
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	var data any
	if len(req.Data) > 0 {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			writeError(w, http.StatusBadRequest, "invalid data")
			return
		}
	}

	out, err := s.analyzer.Analyze(r.Context(), req.Type, data)
	if err != nil {
		log.Error("analyze %s failed: %v", req.Type, err)
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrNoCredential) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type healthResponse struct {
	Status        string   `json:"status"`
	Agents        []string `json:"agents"`
	LLMConfigured bool     `json:"llmConfigured"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	infos := s.diagnoser.Agents()
	names := make([]string, 0, len(infos))
	for _, a := range infos {
		names = append(names, a.Name)
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		Agents:        names,
		LLMConfigured: s.llmConfigured,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
