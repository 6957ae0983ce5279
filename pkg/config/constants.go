package config

// EnvPrefix is the envconfig prefix shared by every ZIMMER_* variable.
const EnvPrefix = "zimmer"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvDBDSN  = "ZIMMER_DB_DSN"
	EnvDBHost = "ZIMMER_DB_HOST"
	EnvDBUser = "ZIMMER_DB_USER"
	EnvDBName = "ZIMMER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
