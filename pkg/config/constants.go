package config

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "FAIRWAVE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
