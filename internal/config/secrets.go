package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

const redacted = "***"

// secret is one credential-bearing field. env names the variable whose _FILE
// variant may point at a mounted secret; urlish fields keep their host visible
// when redacted.
type secret struct {
	env    string
	field  *string
	urlish bool
}

func secretsOf(cfg *Config) []secret {
	return []secret{
		{env: "AUCTION_POSTGRES_DSN", field: &cfg.Postgres.DSN, urlish: true},
		{env: "AUCTION_POSTGRES_PASSWORD", field: &cfg.Postgres.Password},
		{env: "AUCTION_REDIS_PASSWORD", field: &cfg.Redis.Password},
		{env: "AUCTION_S3_ACCESS_KEY", field: &cfg.S3.AccessKey},
		{env: "AUCTION_S3_SECRET_KEY", field: &cfg.S3.SecretKey},
		{env: "AUCTION_SERVER_API_KEY", field: &cfg.Server.APIKey},
		{env: "AUCTION_NOTIFY_TELEGRAM_TOKEN", field: &cfg.Notify.TelegramToken},
		{env: "AUCTION_NOTIFY_DISCORD_WEBHOOK_URL", field: &cfg.Notify.DiscordWebhookURL, urlish: true},
	}
}

// applySecretFiles reads every <ENV>_FILE variable that is set and stores the
// trimmed file contents in the matching field. A file wins over the plain
// variable so orchestrator-mounted secrets never need to enter the environment.
func applySecretFiles(cfg *Config) error {
	for _, s := range secretsOf(cfg) {
		path := os.Getenv(s.env + "_FILE")
		if path == "" {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("config: %s_FILE: %w", s.env, err)
		}
		*s.field = strings.TrimSpace(string(b))
	}
	return nil
}

// RedactedConfig returns a copy of cfg that is safe to log. Plain secrets
// become "***"; DSNs and webhook URLs keep scheme and host so an operator can
// still tell which database or channel is configured. Empty secrets stay empty.
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Server.CORSOrigins = append([]string(nil), cfg.Server.CORSOrigins...)

	for _, s := range secretsOf(&out) {
		if *s.field == "" {
			continue
		}
		if s.urlish {
			*s.field = redactURL(*s.field)
			continue
		}
		*s.field = redacted
	}
	return out
}

// redactURL drops the userinfo password, the path and the query, which is
// where DSN passwords and webhook tokens live.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), redacted)
	}
	if u.Path != "" && u.Path != "/" {
		u.Path = "/" + redacted
	}
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
