package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/eventrelay/internal/infrastructure/env"
)

// DetermineConfigPath resolves the config file from --config, EVENTRELAY_CONFIG
// or a list of well-known locations. An empty result means "defaults and env
// only".
func DetermineConfigPath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("EVENTRELAY_CONFIG", "")
	}

	if configPath == "" {
		configPath = firstExisting([]string{
			"./config.yaml",
			"./config.yml",
			"./tmp/config.yaml",
			"../../config.yaml", // keep for local dev
			"/etc/eventrelay/config.yaml",
			"/app/config.yaml", // common in Docker
		})
	}

	return configPath
}

func firstExisting(candidates []string) string {
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
