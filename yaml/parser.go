package yaml

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// Parser turns a versioned experiment definition file into an
// ExperimentConfig.
type Parser interface {
	Parse(yamlFile []byte) error
	GetExperiment() (models.ExperimentConfig, error)
}

type Version struct {
	Version string `yaml:"version"`
}

func getYAMLFileVersion(yamlFile []byte) (string, error) {
	var version Version
	err := yaml.Unmarshal(yamlFile, &version)
	if err != nil {
		return "", err
	}
	return version.Version, nil
}

func NewParser(yamlFile []byte) (Parser, error) {
	version, err := getYAMLFileVersion(yamlFile)
	if err != nil {
		return nil, err
	}

	switch version {
	case "2.0":
		return &ParserV2{}, nil
	default:
		return nil, fmt.Errorf("unsupported experiment file version: %q", version)
	}
}

// ParseExperimentFile reads and parses one experiment definition file.
func ParseExperimentFile(path string) (models.ExperimentConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return models.ExperimentConfig{}, fmt.Errorf("failed read experiment file %s: %w", path, err)
	}

	parser, err := NewParser(yamlFile)
	if err != nil {
		return models.ExperimentConfig{}, err
	}
	if err := parser.Parse(yamlFile); err != nil {
		return models.ExperimentConfig{}, err
	}
	return parser.GetExperiment()
}
