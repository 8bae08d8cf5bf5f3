package config

import "slices"

const redacted = "***"

// Redacted returns a copy of cfg with credentials masked, for logging the
// active configuration.
func Redacted(cfg *Config) Config {
	out := *cfg
	redact(&out.Indexer.APIKey)
	redact(&out.Redis.Password)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	out.Book.Assets = slices.Clone(cfg.Book.Assets)
	out.Server.CORSOrigins = slices.Clone(cfg.Server.CORSOrigins)
	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
