package vertex

import (
	"fmt"
	"sort"
	"strings"

	"github.com/silent-stones/vertex-universal-orchestrator/constants"
	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// ResolveStrategy maps a machine type to the scheduling strategy the platform
// requires for it. A3 machines (H100) must be submitted with AUTOMATIC;
// everything else runs STANDARD. Total over all machine type strings.
func ResolveStrategy(machineType string) models.Strategy {
	if strings.HasPrefix(machineType, constants.H100_MACHINE_PREFIX) {
		return models.StrategyAutomatic
	}
	return models.StrategyStandard
}

// BuildCustomJobPayload assembles the create-job request for one job. Pure:
// no network, no side effects, deterministic for a given input.
func BuildCustomJobPayload(experiment models.ExperimentConfig, job models.JobConfig, displayName string) models.CustomJobPayload {
	workerPool := models.WorkerPoolSpec{
		MachineSpec: models.MachineSpec{
			MachineType: job.MachineType,
		},
		ReplicaCount: 1,
		ContainerSpec: models.ContainerSpec{
			ImageURI: experiment.ImageURI,
			Args:     job.ContainerArgs,
		},
	}

	if job.AcceleratorCount > 0 {
		workerPool.MachineSpec.AcceleratorType = job.AcceleratorType
		workerPool.MachineSpec.AcceleratorCount = job.AcceleratorCount
	}

	if len(job.ContainerEnv) > 0 {
		names := make([]string, 0, len(job.ContainerEnv))
		for name := range job.ContainerEnv {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			workerPool.ContainerSpec.Env = append(workerPool.ContainerSpec.Env, models.EnvVar{
				Name:  name,
				Value: job.ContainerEnv[name],
			})
		}
	}

	payload := models.CustomJobPayload{
		DisplayName: displayName,
		JobSpec: models.JobSpec{
			WorkerPoolSpecs: []models.WorkerPoolSpec{workerPool},
			Scheduling: models.Scheduling{
				Strategy: ResolveStrategy(job.MachineType),
			},
			ServiceAccount: job.ServiceAccount,
			Network:        job.Network,
		},
	}

	if experiment.BucketName != "" {
		payload.JobSpec.BaseOutputDirectory = &models.BaseOutputDirectory{
			OutputURIPrefix: fmt.Sprintf("gs://%s/%s/output/%s", experiment.BucketName, experiment.ExperimentName, displayName),
		}
	}

	if merged := mergeLabels(experiment.Labels, job.Labels); len(merged) > 0 {
		payload.Labels = merged
	}

	return payload
}

// mergeLabels combines experiment-wide labels with job labels; job labels win
// on key collision.
func mergeLabels(experimentLabels, jobLabels map[string]string) map[string]string {
	merged := make(map[string]string, len(experimentLabels)+len(jobLabels))
	for k, v := range experimentLabels {
		merged[k] = v
	}
	for k, v := range jobLabels {
		merged[k] = v
	}
	return merged
}
