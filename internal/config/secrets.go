package config

import "slices"

const redacted = "***"

// RedactedConfig returns a copy of cfg safe to log: every credential,
// password and signing secret that is set reads "***".
func RedactedConfig(cfg *Config) Config {
	out := *cfg
	out.Notify.Events = slices.Clone(cfg.Notify.Events)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)

	for _, s := range out.secrets() {
		if *s != "" {
			*s = redacted
		}
	}
	return out
}

// secrets lists the sensitive fields of c.
func (c *Config) secrets() []*string {
	return []*string{
		&c.Session.Passphrase,
		&c.Supabase.DSN,
		&c.Supabase.Password,
		&c.Redis.Password,
		&c.S3.AccessKey,
		&c.S3.SecretKey,
		&c.Server.APIKey,
		&c.Notify.TelegramToken,
		&c.Notify.DiscordWebhookURL,
		&c.Export.SigningSecret,
	}
}
