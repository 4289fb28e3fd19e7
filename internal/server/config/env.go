package config

import (
	"errors"
	"time"

	"github.com/joeshaw/envdecode"
)

// EnvConfig maps BEEPDATA_* environment variables. Unset variables decode to
// zero values and leave the current setting alone.
type EnvConfig struct {
	EndpointAddrHTTP             string        `env:"BEEPDATA_HTTP_ADDR"`
	DatabaseDSN                  string        `env:"BEEPDATA_DATABASE_DSN"`
	SecretKey                    string        `env:"BEEPDATA_SECRET_KEY"`
	AccessTokenValidityDuration  time.Duration `env:"BEEPDATA_ACCESS_TOKEN_TTL"`
	RefreshTokenValidityDuration time.Duration `env:"BEEPDATA_REFRESH_TOKEN_TTL"`
	SessionValidityDuration      time.Duration `env:"BEEPDATA_SESSION_TTL"`
	S3RootUser                   string        `env:"BEEPDATA_S3_ROOT_USER"`
	S3RootPassword               string        `env:"BEEPDATA_S3_ROOT_PASSWORD"`
	S3Bucket                     string        `env:"BEEPDATA_S3_BUCKET"`
	S3Region                     string        `env:"BEEPDATA_S3_REGION"`
	S3BaseEndpoint               string        `env:"BEEPDATA_S3_BASE_ENDPOINT"`
	PresignExpiry                time.Duration `env:"BEEPDATA_PRESIGN_EXPIRY"`
	MaxUploadSize                int64         `env:"BEEPDATA_MAX_UPLOAD_SIZE"`
	LogLevel                     string        `env:"BEEPDATA_LOG_LEVEL"`
	LogFormat                    string        `env:"BEEPDATA_LOG_FORMAT"`
	RateLimitRPS                 float64       `env:"BEEPDATA_RATE_LIMIT_RPS"`
	RateLimitBurst               int           `env:"BEEPDATA_RATE_LIMIT_BURST"`
}

// parseEnv overlays BEEPDATA_* variables onto config. A malformed value
// (e.g. a duration that does not parse) panics, like a broken config file.
func parseEnv(config *Config) {
	e := &EnvConfig{}

	if err := envdecode.Decode(e); err != nil {
		if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return
		}
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, e.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, e.DatabaseDSN)
	setString(&config.SecretKey, e.SecretKey)
	setEnvDuration(&config.AccessTokenValidityDuration, e.AccessTokenValidityDuration)
	setEnvDuration(&config.RefreshTokenValidityDuration, e.RefreshTokenValidityDuration)
	setEnvDuration(&config.SessionValidityDuration, e.SessionValidityDuration)
	setString(&config.S3RootUser, e.S3RootUser)
	setString(&config.S3RootPassword, e.S3RootPassword)
	setString(&config.S3Bucket, e.S3Bucket)
	setString(&config.S3Region, e.S3Region)
	setString(&config.S3BaseEndpoint, e.S3BaseEndpoint)
	setEnvDuration(&config.PresignExpiry, e.PresignExpiry)
	setString(&config.LogLevel, e.LogLevel)
	setString(&config.LogFormat, e.LogFormat)

	if e.MaxUploadSize > 0 {
		config.MaxUploadSize = e.MaxUploadSize
	}
	if e.RateLimitRPS > 0 {
		config.RateLimitRPS = e.RateLimitRPS
	}
	if e.RateLimitBurst > 0 {
		config.RateLimitBurst = e.RateLimitBurst
	}
}

func setEnvDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
