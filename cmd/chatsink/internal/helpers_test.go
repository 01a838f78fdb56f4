package internal

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/chatsink/pkg/config"
	"github.com/tinyland-inc/chatsink/pkg/logger"
	"github.com/tinyland-inc/chatsink/pkg/provider"
	"github.com/tinyland-inc/chatsink/pkg/session"
)

func loadTestConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitUsage, ExitCode(&ExitError{Code: ExitUsage}))
	assert.Equal(t, ExitRestartRequired,
		ExitCode(fmt.Errorf("wrapped: %w", &ExitError{Code: ExitRestartRequired})))
}

func TestSessionResult(t *testing.T) {
	assert.NoError(t, SessionResult(nil))

	tests := []struct {
		err  error
		code int
	}{
		{session.ErrRestartRequired, ExitRestartRequired},
		{fmt.Errorf("listing: %w", session.ErrRestartRequired), ExitRestartRequired},
		{session.ErrSessionReplaced, ExitFailure},
		{fmt.Errorf("after 5 attempts: %w", session.ErrRetryExhausted), ExitFailure},
		{errors.New("loading credentials"), ExitFailure},
	}
	for _, tt := range tests {
		err := SessionResult(tt.err)
		assert.Equal(t, tt.code, ExitCode(err), tt.err.Error())
		assert.ErrorIs(t, err, tt.err)
	}
}

func TestLoadConfig_MissingIsUsageError(t *testing.T) {
	_, err := LoadConfig("")
	require.Error(t, err)
	assert.Equal(t, ExitUsage, ExitCode(err))
	assert.ErrorIs(t, err, config.ErrConfigMissing)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestConfigureLogging(t *testing.T) {
	prev := logger.GetLevel()
	t.Cleanup(func() { logger.SetLevel(prev) })

	tests := []struct {
		name    string
		env     string
		verbose bool
		quiet   bool
		want    bool
	}{
		{"default", "", false, false, true},
		{"quiet flag", "", false, true, false},
		{"quiet env", "quiet", false, false, false},
		{"verbose beats quiet env", "quiet", true, false, true},
		{"verbose env beats quiet flag", "verbose", false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger.SetLevel(logger.INFO)
			cfg := &config.Config{Listener: config.ListenerConfig{Log: tt.env}}
			assert.Equal(t, tt.want, ConfigureLogging(cfg, tt.verbose, tt.quiet))
		})
	}

	logger.SetLevel(logger.INFO)
	ConfigureLogging(&config.Config{}, true, false)
	assert.Equal(t, logger.DEBUG, logger.GetLevel())
}

func TestRetryPolicy(t *testing.T) {
	t.Setenv("LISTENER_MAX_RETRIES", "7")
	t.Setenv("LISTENER_RETRY_SECONDS", "1.5")
	cfg := loadTestConfig(t, "{}\n")

	p := RetryPolicy(cfg)
	assert.Equal(t, 7, p.MaxAttempts)
	assert.Equal(t, 1500*time.Millisecond, p.BaseDelay)
}

func TestNewProvider(t *testing.T) {
	cfg := loadTestConfig(t, "whatsapp_bridge_url: ws://example:1\n")
	assert.IsType(t, &provider.Bridge{}, NewProvider(cfg))

	cfg = loadTestConfig(t, "whatsapp_bridge_command: node bridge.js\n")
	assert.IsType(t, &provider.Bridge{}, NewProvider(cfg))
}

func TestNewStore(t *testing.T) {
	cfg := loadTestConfig(t, "whatsapp_auth_dir: auth\n")
	store, err := NewStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Dir(), "auth"), store.Dir())
	assert.False(t, store.Present())

	cfg = loadTestConfig(t, "whatsapp_auth_identity: missing.txt\n")
	_, err = NewStore(cfg)
	assert.Error(t, err)
}

func TestQRPresenter(t *testing.T) {
	var buf bytes.Buffer
	NewQRPresenter(&buf).PresentQR("2@abc,def,ghi")

	out := buf.String()
	assert.Contains(t, out, "scan this QR code")
	assert.Greater(t, len(out), 200)
}
