package buttons

import (
	"encoding/json"
	"fmt"
	"os"
)

// Registry defines the interface for button config lookups
type Registry interface {
	// ButtonsForSource returns the configured buttons for a source platform,
	// empty when none are configured
	ButtonsForSource(source string) []ButtonConfig
}

// ButtonConfig is one configured button for a source
type ButtonConfig struct {
	// Label is the button display text
	Label string `json:"label"`
	// TemplateURL is the URL template the strategy expands
	TemplateURL string `json:"template_url"`
	// Strategy selects the URL generation strategy; defaults to simple_replace
	Strategy string `json:"strategy"`
	// Config carries strategy-specific settings
	Config StrategyConfig `json:"config"`
}

// StrategyConfig holds per-strategy settings
type StrategyConfig struct {
	// CustomParams adds extra placeholder replacements for simple_replace
	CustomParams map[string]string `json:"custom_params"`
	// ExtraParams adds fixed query parameters for query_param
	ExtraParams map[string]string `json:"extra_params"`
	// TemplateVars adds variables reachable as {{config.name}} in templates
	TemplateVars map[string]string `json:"template_vars"`
}

// registryData represents the structure of the button config file
// Key: source platform -> its button list
type registryData struct {
	Sources map[string]struct {
		Buttons []ButtonConfig `json:"buttons"`
	} `json:"sources"`
}

type buttonRegistry struct {
	buttons map[string][]ButtonConfig
}

// LoadRegistry loads button configuration from a JSON file
func LoadRegistry(filePath string) (Registry, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec,G304 // This should be a trusted file
	if err != nil {
		return nil, fmt.Errorf("failed to read button config file: %w", err)
	}

	var parsed registryData
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse button config JSON: %w", err)
	}

	reg := &buttonRegistry{
		buttons: make(map[string][]ButtonConfig),
	}
	for source, entry := range parsed.Sources {
		reg.buttons[source] = entry.Buttons
	}

	return reg, nil
}

// ButtonsForSource returns the configured buttons for a source platform
func (r *buttonRegistry) ButtonsForSource(source string) []ButtonConfig {
	if r == nil {
		return nil
	}
	return r.buttons[source]
}
