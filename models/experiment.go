package models

import (
	"fmt"

	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
)

// JobConfig describes one unit of compute work: the hardware it needs and the
// container it runs. Build it with NewJobConfig; instances are not mutated
// after construction.
type JobConfig struct {
	MachineType      string            `json:"machine_type" yaml:"machine_type"`
	AcceleratorType  string            `json:"accelerator_type,omitempty" yaml:"accelerator_type"`
	AcceleratorCount int64             `json:"accelerator_count,omitempty" yaml:"accelerator_count"`
	ContainerArgs    []string          `json:"container_args,omitempty" yaml:"container_args"`
	ContainerEnv     map[string]string `json:"container_env,omitempty" yaml:"container_env"`
	DisplayName      string            `json:"display_name,omitempty" yaml:"display_name"`
	Labels           map[string]string `json:"labels,omitempty" yaml:"labels"`
	ServiceAccount   string            `json:"service_account,omitempty" yaml:"service_account"`
	Network          string            `json:"network,omitempty" yaml:"network"`
}

// NewJobConfig validates and normalizes a job description. An accelerator
// count without a type is an error; a type without a count is corrected to a
// count of one.
func NewJobConfig(job JobConfig) (JobConfig, error) {
	if job.MachineType == "" {
		return JobConfig{}, fmt.Errorf("machine_type must be specified")
	}
	if job.AcceleratorCount > 0 && job.AcceleratorType == "" {
		return JobConfig{}, fmt.Errorf("accelerator_type must be specified when accelerator_count > 0")
	}
	if job.AcceleratorType != "" && job.AcceleratorCount == 0 {
		job.AcceleratorCount = 1
		logs.GetLogger().Warnf("accelerator_count was 0 but accelerator_type was specified, setting count to 1")
	}
	return job, nil
}

// ExperimentConfig is one deployment unit: a named group of jobs sharing
// project, region, image and bucket.
type ExperimentConfig struct {
	ProjectID      string            `json:"project_id" yaml:"project_id"`
	Region         string            `json:"region" yaml:"region"`
	ImageURI       string            `json:"image_uri" yaml:"image_uri"`
	ExperimentName string            `json:"experiment_name" yaml:"experiment_name"`
	Jobs           []JobConfig       `json:"jobs" yaml:"jobs"`
	BucketName     string            `json:"bucket_name,omitempty" yaml:"bucket_name"`
	Labels         map[string]string `json:"labels,omitempty" yaml:"labels"`
}

func (e ExperimentConfig) Validate() error {
	if e.ProjectID == "" || e.Region == "" || e.ImageURI == "" || e.ExperimentName == "" {
		return fmt.Errorf("project_id, region, image_uri and experiment_name are all required")
	}
	if len(e.Jobs) == 0 {
		return fmt.Errorf("experiment %s has no jobs", e.ExperimentName)
	}
	return nil
}

// ParentScope is the platform location path every job of this experiment is
// submitted under.
func (e ExperimentConfig) ParentScope() string {
	return fmt.Sprintf("projects/%s/locations/%s", e.ProjectID, e.Region)
}

// ConsoleURLs holds the human-facing links for one deployed job.
type ConsoleURLs struct {
	Monitor string `json:"monitor"`
	Logs    string `json:"logs"`
}
