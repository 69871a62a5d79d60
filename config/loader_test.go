package config

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestNewConfig(t *testing.T) {
	tests := []struct {
		name     string
		baseYAML string  // Base YAML config
		envYAML  string  // Environment-specific YAML (optional)
		env      string  // Environment variable value
		want     *Config // Expected Config
		wantErr  bool    // Expecting an error?
	}{
		{
			name: "Successful Load with Default Env",
			baseYAML: `
extract:
  backoff:
    retry_wait_min: 1s
    retry_wait_max: 30s
    retry_max: 5
postgres:
  max_conns: 4
  min_conns: 1
nyserda:
  batch_size: 500
eia:
  series_id: PET.EER_EPLLPA_PF4_Y35NY_DPG.D
`,
			env: "",
			want: &Config{
				Env: "dev",
				Extract: ExtractConfig{
					Backoff: BackoffConfig{
						RetryWaitMin: time.Second,
						RetryWaitMax: 30 * time.Second,
						RetryMax:     5,
					},
				},
				Postgres: PostgresConfig{
					MaxConns: 4,
					MinConns: 1,
				},
				Nyserda: NyserdaConfig{
					BatchSize: 500,
				},
				EIA: EIAConfig{
					SeriesID: "PET.EER_EPLLPA_PF4_Y35NY_DPG.D",
				},
			},
			wantErr: false,
		},
		{
			name: "Successful Load with Environment Override",
			baseYAML: `
extract:
  backoff:
    retry_max: 5
nyserda:
  batch_size: 500
`,
			envYAML: `
extract:
  backoff:
    retry_max: 2
nyserda:
  batch_size: 100
`,
			env: "prod",
			want: &Config{
				Env: "prod",
				Extract: ExtractConfig{
					Backoff: BackoffConfig{
						RetryMax: 2, // Overridden
					},
				},
				Nyserda: NyserdaConfig{
					BatchSize: 100, // Overridden
				},
			},
			wantErr: false,
		},
		{
			name:     "Invalid Base YAML",
			baseYAML: `extract: [`,
			env:      "dev",
			want:     nil,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset Viper for each test
			viper.Reset()

			baseConfigReader := strings.NewReader(tt.baseYAML)
			var envConfigReader io.Reader
			if tt.envYAML != "" {
				envConfigReader = strings.NewReader(tt.envYAML)
			}

			got, err := NewConfig(baseConfigReader, envConfigReader, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
