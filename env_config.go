// env_config.go: Environment variable expansion for configuration values
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvironmentVariables replaces ${VAR} and ${VAR:-default} in input.
//
// A variable that is unset and has no default is an error, so a missing
// secret is reported at startup instead of being sent as an empty string.
func ExpandEnvironmentVariables(input string) (string, error) {
	if !strings.Contains(input, "${") {
		return input, nil
	}

	var missing []string
	result := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, hasDefault, def := groups[1], groups[2] != "", groups[3]

		value, ok := os.LookupEnv(name)
		if value != "" {
			return value
		}
		if hasDefault {
			return def
		}
		if ok {
			return ""
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return input, fmt.Errorf("environment variable %s is not set", strings.Join(missing, ", "))
	}
	return result, nil
}

// expandConfigEnvironment expands the connection settings in place.
// Source templates are left alone.
func expandConfigEnvironment(config *Config) error {
	fields := []struct {
		name  string
		value *string
	}{
		{"obs.address", &config.OBS.Address},
		{"obs.password", &config.OBS.Password},
		{"plugins.directory", &config.Plugins.Directory},
		{"plugins.data_directory", &config.Plugins.DataDirectory},
		{"cache.path", &config.Cache.Path},
	}

	for _, f := range fields {
		expanded, err := ExpandEnvironmentVariables(*f.value)
		if err != nil {
			return NewConfigValidationError(f.name, err)
		}
		*f.value = expanded
	}
	return nil
}
