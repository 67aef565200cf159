package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// configFilePath resolves the on-disk config file: $XDG_CONFIG_HOME/
// bookforge/config.yaml, falling back to ~/.config/bookforge/config.yaml
// when XDG_CONFIG_HOME is unset.
func configFilePath(env lookup) string {
	if xdg, ok := env("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "bookforge", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bookforge", "config.yaml")
}

// loadFileDefaults reads path as a flat YAML map of the same keys
// env vars use (case-insensitively) and returns them upper-cased, so
// they can seed a lookup that the process environment then overrides.
// A missing file is not an error: the file is optional, the process
// environment alone is a complete configuration.
func loadFileDefaults(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	flatten("", raw, out)
	return out, nil
}

// flatten walks nested YAML maps, joining keys with "_" so a file like
//
//	retry:
//	  max_attempts: 5
//
// produces the same RETRY_MAX_ATTEMPTS key the environment would use.
func flatten(prefix string, raw map[string]any, out map[string]string) {
	for k, v := range raw {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch vv := v.(type) {
		case map[string]any:
			flatten(key, vv, out)
		case []any:
			parts := make([]string, len(vv))
			for i, item := range vv {
				parts[i] = fmt.Sprintf("%v", item)
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprintf("%v", v)
		}
	}
}

// withFileDefaults builds a lookup that consults the process
// environment first and falls back to the YAML file's flattened keys,
// so "env wins, the file is the template" holds for every field.
func withFileDefaults(env lookup, fileDefaults map[string]string) lookup {
	return func(key string) (string, bool) {
		if v, ok := env(key); ok && v != "" {
			return v, true
		}
		if v, ok := fileDefaults[key]; ok && v != "" {
			return v, true
		}
		return "", false
	}
}
