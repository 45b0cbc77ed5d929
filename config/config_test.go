// config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.QueueBackend)
	assert.Equal(t, 3, cfg.RetryMax)
	assert.Equal(t, 2*time.Second, cfg.RetryBackoffBase)
	assert.Equal(t, 30*time.Minute, cfg.TranscodeTimeout)

	// Default ladder: 480p/720p required, 1080p optional
	require.Len(t, cfg.Tiers, 3)
	assert.True(t, cfg.Tiers[0].Required)
	assert.True(t, cfg.Tiers[1].Required)
	assert.False(t, cfg.Tiers[2].Required)
}

func TestLoadCustomTiers(t *testing.T) {
	t.Setenv("QUALITY_TIERS", `[
		{"label": "360p", "width": 640, "height": 360, "bitrate": "800k", "required": true}
	]`)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Tiers, 1)
	assert.Equal(t, "360p", cfg.Tiers[0].Label)
	assert.Equal(t, "800k", cfg.Tiers[0].Bitrate)
}

func TestLoadRejectsBadTiers(t *testing.T) {
	cases := map[string]string{
		"parse xatosi":       `bu json emas`,
		"bo'sh ladder":       `[]`,
		"width yo'q":         `[{"label": "480p", "height": 480, "bitrate": "1000k"}]`,
		"takrorlangan label": `[{"label": "480p", "width": 854, "height": 480, "bitrate": "1000k"}, {"label": "480p", "width": 854, "height": 480, "bitrate": "1200k"}]`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("QUALITY_TIERS", raw)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsUnknownQueueBackend(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "rabbitmq")
	_, err := Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RETRY_MAX", "5")
	t.Setenv("RETRY_BACKOFF_BASE", "500ms")
	t.Setenv("QUEUE_BACKEND", "kafka")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.RetryMax)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoffBase)
	assert.Equal(t, "kafka", cfg.QueueBackend)
}
