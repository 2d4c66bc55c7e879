package api

import (
	"net/http"

	"github.com/seenimoa/stackswap/internal/config"
)

const redacted = "[redacted]"

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config config.Config `json:"config"`
}

// handleGetConfig returns the running configuration with secrets redacted.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ConfigResponse{Config: redactConfig(*s.cfg)},
	})
}

// handleGetSecrets returns where each secret comes from, masked.
func (s *Server) handleGetSecrets(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckSecrets(s.cfg),
	})
}

// redactConfig blanks every secret in a copy of cfg.
func redactConfig(cfg config.Config) config.Config {
	if cfg.Backend.APIKey != "" {
		cfg.Backend.APIKey = redacted
	}
	if cfg.Session.RedisPassword != "" {
		cfg.Session.RedisPassword = redacted
	}
	cfg.API.CORSOrigins = append([]string(nil), cfg.API.CORSOrigins...)
	cfg.Asset.QuickAmounts = append([]string(nil), cfg.Asset.QuickAmounts...)
	cfg.Events.Brokers = append([]string(nil), cfg.Events.Brokers...)
	return cfg
}
