package config

import (
	"os"

	"github.com/dmitrijs2005/inspectsync/internal/flagx"
)

// Environment variables read by parseEnv.
const (
	EnvDatabaseDSN    = "INSPECTSYNC_DATABASE_DSN"
	EnvSecretKey      = "INSPECTSYNC_SECRET_KEY"
	EnvS3RootUser     = "INSPECTSYNC_S3_ROOT_USER"
	EnvS3RootPassword = "INSPECTSYNC_S3_ROOT_PASSWORD"
	EnvS3BaseEndpoint = "INSPECTSYNC_S3_BASE_ENDPOINT"
)

func parseEnv(config *Config) {
	flagx.ApplyEnv(os.LookupEnv, map[string]*string{
		EnvDatabaseDSN:    &config.DatabaseDSN,
		EnvSecretKey:      &config.SecretKey,
		EnvS3RootUser:     &config.S3RootUser,
		EnvS3RootPassword: &config.S3RootPassword,
		EnvS3BaseEndpoint: &config.S3BaseEndpoint,
	})
}
