package conf

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

var config *OrchestratorConfig

// OrchestratorConfig is the provider-level configuration, loaded from
// config.toml in the repo directory.
type OrchestratorConfig struct {
	API     API
	VERTEX  VERTEX
	MONITOR MONITOR
}

type API struct {
	Port          int
	RedisUrl      string
	RedisPassword string
}

type VERTEX struct {
	AccessToken string
}

type MONITOR struct {
	PollIntervalSeconds int
	SnapshotDir         string
	RegistryDir         string
}

func InitConfig(repoPath string) error {
	configFile := filepath.Join(repoPath, "config.toml")

	if metaData, err := toml.DecodeFile(configFile, &config); err != nil {
		return fmt.Errorf("failed load config file, path: %s, error: %w", configFile, err)
	} else {
		if !requiredFieldsAreGiven(metaData) {
			log.Fatal("Required fields not given")
		}
	}
	return nil
}

func GetConfig() *OrchestratorConfig {
	return config
}

func requiredFieldsAreGiven(metaData toml.MetaData) bool {
	requiredFields := [][]string{
		{"API"},
		{"VERTEX"},
		{"MONITOR"},

		{"API", "Port"},
		{"API", "RedisUrl"},

		{"VERTEX", "AccessToken"},

		{"MONITOR", "PollIntervalSeconds"},
		{"MONITOR", "SnapshotDir"},
	}

	for _, v := range requiredFields {
		if !metaData.IsDefined(v...) {
			log.Fatal("Required fields ", v)
		}
	}

	return true
}
