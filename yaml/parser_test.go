package yaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const experimentFileV2 = `
version: "2.0"
experiment:
  project_id: demo-project
  region: us-central1
  image_uri: gcr.io/demo-project/trainer:latest
  experiment_name: exp-1
  bucket_name: demo-bucket
  labels:
    team: research
jobs:
  - machine_type: a3-highgpu-8g
    accelerator_type: NVIDIA_H100_80GB
    accelerator_count: 8
    display_name: h100-job
    container_args:
      - train.py
      - "--epochs=10"
    container_env:
      WORLD_SIZE: "8"
  - machine_type: a2-highgpu-1g
    accelerator_type: NVIDIA_TESLA_A100
`

func TestParseExperimentFileV2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte(experimentFileV2), 0644))

	experiment, err := ParseExperimentFile(path)
	require.NoError(t, err)

	assert.Equal(t, "demo-project", experiment.ProjectID)
	assert.Equal(t, "us-central1", experiment.Region)
	assert.Equal(t, "gcr.io/demo-project/trainer:latest", experiment.ImageURI)
	assert.Equal(t, "exp-1", experiment.ExperimentName)
	assert.Equal(t, "demo-bucket", experiment.BucketName)
	assert.Equal(t, map[string]string{"team": "research"}, experiment.Labels)

	require.Len(t, experiment.Jobs, 2)
	assert.Equal(t, "h100-job", experiment.Jobs[0].DisplayName)
	assert.Equal(t, int64(8), experiment.Jobs[0].AcceleratorCount)
	assert.Equal(t, []string{"train.py", "--epochs=10"}, experiment.Jobs[0].ContainerArgs)
	assert.Equal(t, map[string]string{"WORLD_SIZE": "8"}, experiment.Jobs[0].ContainerEnv)

	// count omitted but type given, normalized to 1
	assert.Equal(t, int64(1), experiment.Jobs[1].AcceleratorCount)
}

func TestNewParserRejectsUnsupportedVersion(t *testing.T) {
	_, err := NewParser([]byte(`version: "1.0"`))
	assert.Error(t, err)

	_, err = NewParser([]byte(`experiment: {}`))
	assert.Error(t, err)
}

func TestParserV2RejectsInvalidJob(t *testing.T) {
	invalid := `
version: "2.0"
experiment:
  project_id: demo-project
  region: us-central1
  image_uri: gcr.io/demo-project/trainer:latest
  experiment_name: exp-1
jobs:
  - accelerator_type: NVIDIA_TESLA_A100
`
	parser, err := NewParser([]byte(invalid))
	require.NoError(t, err)
	require.NoError(t, parser.Parse([]byte(invalid)))

	_, err = parser.GetExperiment()
	assert.Error(t, err)
}

func TestParserV2RejectsExperimentWithoutJobs(t *testing.T) {
	empty := `
version: "2.0"
experiment:
  project_id: demo-project
  region: us-central1
  image_uri: gcr.io/demo-project/trainer:latest
  experiment_name: exp-1
jobs: []
`
	parser, err := NewParser([]byte(empty))
	require.NoError(t, err)
	require.NoError(t, parser.Parse([]byte(empty)))

	_, err = parser.GetExperiment()
	assert.Error(t, err)
}

func TestParseExperimentFileMissing(t *testing.T) {
	_, err := ParseExperimentFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
