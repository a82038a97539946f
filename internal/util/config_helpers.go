package util

import (
	"encoding/json"
)

// getEnabledFromConfig reads the "enabled" flag out of a plugin config,
// which is either a raw map (TOML section) or a typed struct registered
// through PreParsedConfigs. The second return reports whether the flag
// was present at all.
func getEnabledFromConfig(config any) (bool, bool) {
	if config == nil {
		return false, false
	}

	if configMap, ok := config.(map[string]any); ok {
		if enabled, found := configMap["enabled"]; found {
			if value, ok := enabled.(bool); ok {
				return value, true
			}
		}
		return false, false
	}

	// Typed configs go through a JSON roundtrip so the "enabled" key is
	// resolved by the same json tags the decoder uses.
	data, err := json.Marshal(config)
	if err != nil {
		return false, false
	}

	var parsedConfig map[string]any
	if err := json.Unmarshal(data, &parsedConfig); err != nil {
		return false, false
	}

	if enabled, found := parsedConfig["enabled"]; found {
		if value, ok := enabled.(bool); ok {
			return value, true
		}
	}

	return false, false
}
