package storefront

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"restaurant-app/internal/storefront/app/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"--port=8080", "--store=memory", "--config-path=/nope.yaml"})
	require.NoError(t, err)
	assert.Equal(t, 8080, p.storefrontParams.Port)
	assert.Equal(t, core.StoreMemory, p.storefrontParams.Store)
	assert.Equal(t, "/nope.yaml", p.configPath)

	_, err = parseParams([]string{"--help"})
	assert.ErrorIs(t, err, core.ErrHelp)

	_, err = parseParams([]string{"--port=abc"})
	assert.Error(t, err)
}

func TestValidateParams(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("tracking:\n  tick_interval: 2s\n  prep_duration: 1m\n"), 0o600))

	tests := []struct {
		name    string
		port    int
		store   string
		wantErr bool
	}{
		{name: "ok", port: 3000, store: core.StorePostgres},
		{name: "memory", port: 3000, store: core.StoreMemory},
		{name: "port zero", port: 0, store: core.StoreMemory, wantErr: true},
		{name: "port too big", port: 70000, store: core.StoreMemory, wantErr: true},
		{name: "unknown store", port: 3000, store: "mongo", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &params{
				storefrontParams: &core.StorefrontParams{Port: tt.port, Store: tt.store},
				configPath:       cfgPath,
			}
			err := validateParams(p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 2*time.Second, p.cfg.Tracking.TickInterval)
			assert.Equal(t, time.Minute, p.cfg.Tracking.PrepDuration)
		})
	}
}
