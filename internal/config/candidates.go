package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/mfa_relay/internal/inject"
)

// CandidatesFile is the YAML layout of RELAY_SELECTORS_FILE.
type CandidatesFile struct {
	Candidates []inject.Candidate `yaml:"candidates"`
}

// LoadCandidates reads an ordered selector list. An empty path returns the
// built-in candidates.
func LoadCandidates(path string) ([]inject.Candidate, error) {
	if strings.TrimSpace(path) == "" {
		return inject.DefaultCandidates, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("selectors config: %w", err)
	}
	var cfg CandidatesFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("selectors config: %w", err)
	}
	if len(cfg.Candidates) < 1 {
		return nil, fmt.Errorf("selectors config: at least one candidate is required")
	}
	for i, c := range cfg.Candidates {
		if strings.TrimSpace(c.Name) == "" {
			return nil, fmt.Errorf("selectors config: candidates[%d] missing name", i)
		}
		if strings.TrimSpace(c.Selector) == "" {
			return nil, fmt.Errorf("selectors config: candidates[%d] (%s) missing selector", i, c.Name)
		}
	}
	return cfg.Candidates, nil
}
