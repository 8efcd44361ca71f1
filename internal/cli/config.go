package cli

import (
	"os"
	"strings"

	"github.com/mcoot/playerhub/internal/client/session"
	"github.com/mcoot/playerhub/internal/model"
)

// Config holds CLI configuration
type Config struct {
	ServerURL   string
	SessionFile string
	Output      string
	Verbose     bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL:   getEnvOrDefault("PLAYERHUB_SERVER", "http://localhost:8080"),
		SessionFile: getEnvOrDefault("PLAYERHUB_SESSION_FILE", session.DefaultPath()),
		Output:      "text",
		Verbose:     false,
	}
}

// providerTokenEnv is the environment variable holding a provider's access token,
// e.g. PLAYERHUB_SOCIAL_TOKEN
func providerTokenEnv(kind model.ProviderKind) string {
	return "PLAYERHUB_" + strings.ToUpper(string(kind)) + "_TOKEN"
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
