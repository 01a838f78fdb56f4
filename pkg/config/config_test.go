package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrConfigMissing)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("LISTENER_MAX_RETRIES", "")
	os.Unsetenv("LISTENER_MAX_RETRIES")
	path := writeConfig(t, "{}\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, filepath.Join(dir, "data/whatsapp_auth"), cfg.AuthDirPath())
	assert.Equal(t, filepath.Join(dir, "data/messages.jsonl"), cfg.OutputPath())
	assert.Empty(t, cfg.IdentityPath())
	assert.Empty(t, cfg.Chats)
	assert.Equal(t, 5, cfg.Listener.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Listener.RetryDelay())
}

func TestLoadConfig_Values(t *testing.T) {
	path := writeConfig(t, `
whatsapp_auth_dir: /var/lib/chatsink/auth
output_jsonl: out/all.jsonl
whatsapp_chats:
  - "+4915112345678"
  - 1203630-1555
  - 4915199999999
whatsapp_bridge_url: ws://bridge:3001
whatsapp_version: [2, 3000, 1023223821]
whatsapp_auth_identity: keys/age.txt
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "/var/lib/chatsink/auth", cfg.AuthDirPath())
	assert.Equal(t, filepath.Join(dir, "out/all.jsonl"), cfg.OutputPath())
	assert.Equal(t, filepath.Join(dir, "keys/age.txt"), cfg.IdentityPath())
	assert.Equal(t, FlexibleStringSlice{"+4915112345678", "1203630-1555", "4915199999999"}, cfg.Chats)
	assert.Equal(t, "ws://bridge:3001", cfg.BridgeURL)
	assert.Equal(t, []int{2, 3000, 1023223821}, cfg.Version)
	assert.Equal(t, path, cfg.Path())
}

func TestLoadConfig_OutputPreference(t *testing.T) {
	path := writeConfig(t, "whatsapp_output_jsonl: wa.jsonl\noutput_jsonl: shared.jsonl\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "wa.jsonl"), cfg.OutputPath())
}

func TestLoadConfig_SingleChat(t *testing.T) {
	path := writeConfig(t, "whatsapp_chats: 4915112345678\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, FlexibleStringSlice{"4915112345678"}, cfg.Chats)
}

func TestLoadConfig_RejectsNestedChats(t *testing.T) {
	path := writeConfig(t, "whatsapp_chats:\n  - {id: 1}\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvReferences(t *testing.T) {
	t.Setenv("CHATSINK_TEST_AUTH", "/secure/auth")
	t.Setenv("CHATSINK_TEST_CHAT", "1-2")
	path := writeConfig(t, `
whatsapp_auth_dir: ${CHATSINK_TEST_AUTH}
whatsapp_chats: [$CHATSINK_TEST_CHAT, $CHATSINK_TEST_UNSET, "3"]
whatsapp_bridge_command: $CHATSINK_TEST_UNSET
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/secure/auth", cfg.AuthDirPath())
	assert.Equal(t, FlexibleStringSlice{"1-2", "3"}, cfg.Chats)
	assert.Empty(t, cfg.BridgeCommand)
}

func TestLoadConfig_DotEnv(t *testing.T) {
	path := writeConfig(t, "whatsapp_bridge_url: ${CHATSINK_TEST_BRIDGE}\n")
	dir := filepath.Dir(path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("CHATSINK_TEST_BRIDGE=ws://from-dotenv:3001\nLISTENER_RETRY_SECONDS=0.5\n"), 0o600))

	t.Setenv("CHATSINK_TEST_BRIDGE", "")
	os.Unsetenv("CHATSINK_TEST_BRIDGE")
	t.Setenv("LISTENER_RETRY_SECONDS", "")
	os.Unsetenv("LISTENER_RETRY_SECONDS")
	t.Setenv("LISTENER_LOG", "VERBOSE")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://from-dotenv:3001", cfg.BridgeURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Listener.RetryDelay())
	assert.True(t, cfg.Listener.Verbose())
	assert.False(t, cfg.Listener.Quiet())
}

func TestLoadConfig_DotEnvDoesNotOverride(t *testing.T) {
	path := writeConfig(t, "{}\n")
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), ".env"),
		[]byte("LISTENER_MAX_RETRIES=9\n"), 0o600))
	t.Setenv("LISTENER_MAX_RETRIES", "2")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Listener.MaxRetries)
}

func TestLoadConfig_BadEnv(t *testing.T) {
	path := writeConfig(t, "{}\n")

	t.Setenv("LISTENER_MAX_RETRIES", "lots")
	_, err := LoadConfig(path)
	assert.Error(t, err)

	t.Setenv("LISTENER_MAX_RETRIES", "-1")
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x"), expandHome("~/x"))
	assert.Equal(t, "/abs", expandHome("/abs"))
	assert.Equal(t, "", expandHome(""))
}

func TestLoadConfig_Telegram(t *testing.T) {
	t.Setenv("CHATSINK_TEST_TG_TOKEN", "123456:secret")
	path := writeConfig(t, `
telegram_bot_token: ${CHATSINK_TEST_TG_TOKEN}
telegram_api_url: http://localhost:8081
output_jsonl: all.jsonl
chats:
  - "@opsroom"
  - -1001234567890
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	dir := filepath.Dir(path)
	assert.Equal(t, "123456:secret", cfg.BotToken())
	assert.Equal(t, "http://localhost:8081", cfg.TelegramAPIURL)
	assert.Equal(t, FlexibleStringSlice{"@opsroom", "-1001234567890"}, cfg.TelegramChats)
	assert.Empty(t, cfg.Chats)
	assert.Equal(t, filepath.Join(dir, "all.jsonl"), cfg.TelegramOutputPath())
	assert.Equal(t, filepath.Join(dir, "all.jsonl"), cfg.OutputPath())
}

func TestLoadConfig_TelegramDefaults(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "654321:from-env")
	path := writeConfig(t, "telegram_output_jsonl: tg.jsonl\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "654321:from-env", cfg.BotToken())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "tg.jsonl"), cfg.TelegramOutputPath())

	path = writeConfig(t, "{}\n")
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data/telegram_messages.jsonl"), cfg.TelegramOutputPath())
}
