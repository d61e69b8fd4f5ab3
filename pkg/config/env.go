package config

// EnvPrefix is passed to envconfig; individual fields carry explicit names.
const EnvPrefix = "PELOTON"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "PELOTON_DB_DSN"
	EnvDBHost = "PELOTON_DB_HOST"
	EnvDBUser = "PELOTON_DB_USER"
	EnvDBName = "PELOTON_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
