package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/csvclean/internal/rules"
	"github.com/JonMunkholm/csvclean/internal/schema"
)

// RuleInfo describes one rule of the vocabulary.
type RuleInfo struct {
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	NeedsHistory bool   `json:"needs_history,omitempty"`
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	var out []RuleInfo
	for _, name := range rules.StandardisationNames() {
		out = append(out, RuleInfo{Name: string(name), Kind: rules.KindStandardisation.String()})
	}
	for _, name := range rules.ValidationNames() {
		out = append(out, RuleInfo{
			Name:         string(name),
			Kind:         rules.KindValidation.String(),
			NeedsHistory: s.registry.NeedsHistory(name),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{"files": s.rules.Files()})
}

// handleGetConfig returns one file's configuration as JSON, or YAML with
// ?format=yaml.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	cfg, ok := schema.Get(s.rules, file)
	if !ok {
		s.respondError(w, r, fmt.Errorf("no config for file %q", file))
		return
	}

	if r.URL.Query().Get("format") == string(schema.FormatYAML) {
		w.Header().Set("Content-Type", "application/yaml")
		if err := schema.Encode(w, schema.RulesByCsv{file: cfg}, schema.FormatYAML); err != nil {
			s.respondError(w, r, err)
		}
		return
	}
	writeJSON(w, r, http.StatusOK, cfg)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	// Configs that only rename or skip rows; their files pass through unchecked.
	ruleless := []string{}
	for _, file := range s.rules.Files() {
		if !s.rules[file].HasRules() {
			ruleless = append(ruleless, file)
		}
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"runs":                  s.limiter.Status(),
		"configs":               len(s.rules),
		"configs_without_rules": ruleless,
		"missing_rules":         s.registry.Missing(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}
