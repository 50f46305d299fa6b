package yaml

import (
	yamlV2 "gopkg.in/yaml.v2"
	"gopkg.in/errgo.v2/errors"

	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// ExperimentYamlV2 is the on-disk shape of a version 2.0 experiment file.
type ExperimentYamlV2 struct {
	Version    string `yaml:"version"`
	Experiment struct {
		ProjectID      string            `yaml:"project_id"`
		Region         string            `yaml:"region"`
		ImageURI       string            `yaml:"image_uri"`
		ExperimentName string            `yaml:"experiment_name"`
		BucketName     string            `yaml:"bucket_name"`
		Labels         map[string]string `yaml:"labels"`
	} `yaml:"experiment"`
	Jobs []models.JobConfig `yaml:"jobs"`
}

type ParserV2 struct {
	config ExperimentYamlV2
}

func (p *ParserV2) Parse(yamlFile []byte) error {
	var experiment ExperimentYamlV2
	if err := yamlV2.Unmarshal(yamlFile, &experiment); err != nil {
		return errors.Wrap(err)
	}
	p.config = experiment
	return nil
}

// GetExperiment validates every job and assembles the ExperimentConfig.
func (p *ParserV2) GetExperiment() (models.ExperimentConfig, error) {
	experiment := models.ExperimentConfig{
		ProjectID:      p.config.Experiment.ProjectID,
		Region:         p.config.Experiment.Region,
		ImageURI:       p.config.Experiment.ImageURI,
		ExperimentName: p.config.Experiment.ExperimentName,
		BucketName:     p.config.Experiment.BucketName,
		Labels:         p.config.Experiment.Labels,
	}

	for _, job := range p.config.Jobs {
		validated, err := models.NewJobConfig(job)
		if err != nil {
			return models.ExperimentConfig{}, errors.Wrap(err)
		}
		experiment.Jobs = append(experiment.Jobs, validated)
	}

	if err := experiment.Validate(); err != nil {
		return models.ExperimentConfig{}, errors.Wrap(err)
	}
	return experiment, nil
}
