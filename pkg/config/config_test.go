package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int      `env:"TEST_CFG_PORT" envDefault:"8000"`
	Host     string   `env:"TEST_CFG_HOST" envDefault:"localhost"`
	Brokers  []string `env:"TEST_CFG_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	SeedData bool     `env:"TEST_CFG_SEED" envDefault:"true"`
	APIKey   string   `env:"TEST_CFG_API_KEY"`
}

type requiredConfig struct {
	Store string `env:"TEST_CFG_STORE,required"`
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		want    testConfig
		wantErr bool
	}{
		{
			name: "defaults",
			want: testConfig{Port: 8000, Host: "localhost", Brokers: []string{"localhost:9092"}, SeedData: true},
		},
		{
			name: "overrides",
			env: map[string]string{
				"TEST_CFG_PORT":    "9090",
				"TEST_CFG_BROKERS": "k1:9092,k2:9092",
				"TEST_CFG_SEED":    "false",
				"TEST_CFG_API_KEY": "abc",
			},
			want: testConfig{Port: 9090, Host: "localhost", Brokers: []string{"k1:9092", "k2:9092"}, APIKey: "abc"},
		},
		{
			name:    "bad int",
			env:     map[string]string{"TEST_CFG_PORT": "eighty"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			var cfg testConfig
			err := Load(&cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "parse config")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}
}

func TestLoad_Required(t *testing.T) {
	var cfg requiredConfig
	require.Error(t, Load(&cfg))

	t.Setenv("TEST_CFG_STORE", "redis")
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "redis", cfg.Store)
}

func TestLoadDotEnv_FillsUnsetVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CFG_HOST=from-dotenv\nTEST_CFG_PORT=7000\n"), 0o600))
	t.Setenv("TEST_CFG_PORT", "9999")
	t.Cleanup(func() { os.Unsetenv("TEST_CFG_HOST") })

	require.NoError(t, LoadDotEnv(path))

	var cfg testConfig
	require.NoError(t, Load(&cfg))
	assert.Equal(t, "from-dotenv", cfg.Host)
	assert.Equal(t, 9999, cfg.Port, "process environment wins over the file")
}

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	err := LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
