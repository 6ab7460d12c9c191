// env_config_test.go: tests for environment variable expansion
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvironmentVariables(t *testing.T) {
	t.Setenv("TR_HOST", "obs.local")
	t.Setenv("TR_EMPTY", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no variables", "localhost:4455", "localhost:4455", false},
		{"simple", "${TR_HOST}:4455", "obs.local:4455", false},
		{"default unused", "${TR_HOST:-fallback}", "obs.local", false},
		{"default used", "${TR_UNSET_VAR:-fallback}", "fallback", false},
		{"empty default", "${TR_UNSET_VAR:-}", "", false},
		{"empty variable takes default", "${TR_EMPTY:-fallback}", "fallback", false},
		{"empty variable without default", "${TR_EMPTY}", "", false},
		{"several", "${TR_HOST}/${TR_UNSET_VAR:-x}", "obs.local/x", false},
		{"missing", "${TR_UNSET_VAR}", "", true},
		{"not a reference", "$TR_HOST", "$TR_HOST", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvironmentVariables(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "TR_UNSET_VAR")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandConfigEnvironment_ReportsField(t *testing.T) {
	config := DefaultConfig()
	config.OBS.Password = "${TR_SURELY_UNSET_PASSWORD}"

	err := expandConfigEnvironment(&config)
	require.Error(t, err)
	assert.Equal(t, ErrCodeConfigValidation, ErrorCodeOf(err))
	assert.Contains(t, err.Error(), "obs.password")
}
