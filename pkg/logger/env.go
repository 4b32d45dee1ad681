package logger

import (
	"os"
	"strings"
)

type Env string

const (
	EnvDev   Env = "dev"
	EnvStage Env = "stage"
	EnvProd  Env = "prod"
)

// EnvVar selects the deployment environment. APP_ENV is honoured when it is unset.
const EnvVar = "WATCH_BUDDY_ENV"

// DetectEnv maps the environment variable onto dev, stage or prod.
// Anything unrecognised is dev.
func DetectEnv() Env {
	raw := os.Getenv(EnvVar)
	if strings.TrimSpace(raw) == "" {
		raw = os.Getenv("APP_ENV")
	}

	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return EnvProd
	case "stage", "staging", "preprod", "pre-production":
		return EnvStage
	default:
		return EnvDev
	}
}
