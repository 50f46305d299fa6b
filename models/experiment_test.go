package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobConfigRequiresMachineType(t *testing.T) {
	_, err := NewJobConfig(JobConfig{})
	assert.Error(t, err)
}

func TestNewJobConfigRejectsCountWithoutType(t *testing.T) {
	_, err := NewJobConfig(JobConfig{
		MachineType:      "a2-highgpu-1g",
		AcceleratorCount: 2,
	})
	assert.Error(t, err)
}

func TestNewJobConfigCoercesZeroCount(t *testing.T) {
	job, err := NewJobConfig(JobConfig{
		MachineType:     "a2-highgpu-1g",
		AcceleratorType: "NVIDIA_TESLA_A100",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), job.AcceleratorCount)
}

func TestNewJobConfigKeepsExplicitCount(t *testing.T) {
	job, err := NewJobConfig(JobConfig{
		MachineType:      "a3-highgpu-8g",
		AcceleratorType:  "NVIDIA_H100_80GB",
		AcceleratorCount: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), job.AcceleratorCount)
}

func TestExperimentConfigValidate(t *testing.T) {
	experiment := ExperimentConfig{
		ProjectID:      "demo-project",
		Region:         "us-central1",
		ImageURI:       "gcr.io/demo-project/trainer:latest",
		ExperimentName: "exp-1",
		Jobs:           []JobConfig{{MachineType: "n1-standard-4"}},
	}
	assert.NoError(t, experiment.Validate())

	experiment.Jobs = nil
	assert.Error(t, experiment.Validate())

	experiment.Jobs = []JobConfig{{MachineType: "n1-standard-4"}}
	experiment.Region = ""
	assert.Error(t, experiment.Validate())
}

func TestParentScope(t *testing.T) {
	experiment := ExperimentConfig{ProjectID: "demo-project", Region: "us-central1"}
	assert.Equal(t, "projects/demo-project/locations/us-central1", experiment.ParentScope())
}
