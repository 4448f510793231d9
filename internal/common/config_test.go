package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.Equal(t, "badger", config.Storage.Type)
	assert.Equal(t, 10, config.Email.BatchSize)
	assert.Equal(t, 3, config.Retry.MaxAttempts)
	assert.Equal(t, "first_match", config.Watchlist.MatchPolicy)
	assert.NoError(t, ValidateSchedule(config.Scheduler.Schedule))
}

func TestLoadFromFiles_MergesInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "base.toml")
	override := filepath.Join(dir, "override.toml")

	require.NoError(t, os.WriteFile(base, []byte(`
[server]
port = 9000

[email]
batch_size = 20
from = "briefing@example.com"
`), 0644))
	require.NoError(t, os.WriteFile(override, []byte(`
[server]
port = 9100

[watchlist]
match_policy = "per_user"
`), 0644))

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, 9100, config.Server.Port, "later file wins")
	assert.Equal(t, 20, config.Email.BatchSize)
	assert.Equal(t, "briefing@example.com", config.Email.From)
	assert.Equal(t, "per_user", config.Watchlist.MatchPolicy)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("BRIEFING_SERVER_PORT", "7777")
	t.Setenv("BRIEFING_STORAGE_TYPE", "sqlite")
	t.Setenv("BRIEFING_LOG_OUTPUT", "stdout, file ,")
	t.Setenv("BRIEFING_TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("BRIEFING_TELEGRAM_CHAT_ID", "@channel")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "sqlite", config.Storage.Type)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.True(t, config.TelegramConfigured())
}

func TestLoadFromFiles_RejectsBadSchedule(t *testing.T) {
	t.Setenv("BRIEFING_SCHEDULE", "* * * * *")

	_, err := LoadFromFiles()
	assert.Error(t, err)
}

func TestLoadFromFiles_MissingFile(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		schedule string
		wantErr  bool
	}{
		{"30 7 * * 1-5", false},
		{"*/15 * * * *", false},
		{"*/2 * * * *", true},
		{"* * * * *", true},
		{"not a cron", true},
	}

	for _, tt := range tests {
		t.Run(tt.schedule, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 8181, "0.0.0.0")

	assert.Equal(t, 8181, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)

	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 8181, config.Server.Port, "zero values leave config untouched")
}

func TestChannelMissingKeys(t *testing.T) {
	tests := []struct {
		name    string
		missing []string
		want    []string
	}{
		{name: "email unset", missing: EmailConfig{Port: 587}.MissingKeys(), want: []string{"email.host", "email.from"}},
		{name: "email complete", missing: EmailConfig{Host: "smtp.example", From: "brief@example"}.MissingKeys()},
		{name: "telegram token only", missing: TelegramConfig{BotToken: "123:abc"}.MissingKeys(), want: []string{"telegram.chat_id"}},
		{name: "github token without repo", missing: GitHubBlogConfig{Token: "ghp", Owner: "me", Repo: " "}.MissingKeys(), want: []string{"blog.github.repo"}},
		{name: "rest without credentials", missing: RESTBlogConfig{Endpoint: "https://blog/wp-json"}.MissingKeys(),
			want: []string{"blog.rest.token_url", "blog.rest.client_id", "blog.rest.client_secret"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.missing)
		})
	}
}
