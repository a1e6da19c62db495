package notifier

import (
	"path/filepath"
	"testing"

	"restaurant-app/internal/notifier/app/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParams(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "config.yaml")

	p, err := parseParams([]string{"--prefetch=3", "--config-path=" + missing})
	require.NoError(t, err)
	assert.Equal(t, 3, p.notifierParams.Prefetch)
	require.NoError(t, validateParams(p))
	assert.NotNil(t, p.cfg.SMTP)

	p, err = parseParams([]string{"--prefetch=0", "--config-path=" + missing})
	require.NoError(t, err)
	assert.Error(t, validateParams(p))

	_, err = parseParams([]string{"--help"})
	assert.ErrorIs(t, err, core.ErrHelp)
}
