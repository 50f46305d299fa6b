package vertex

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"

	"github.com/silent-stones/vertex-universal-orchestrator/constants"
	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

// Orchestrator deploys one experiment to the platform and tracks its jobs
// until every one of them settles. It exclusively owns the deployed-jobs
// registry and the status map; submissions fan out concurrently but all map
// writes happen on the coordinating goroutine.
type Orchestrator struct {
	experiment models.ExperimentConfig
	jobService JobService
	snapshots  *SnapshotWriter
	clock      clock.Clock

	deployedJobs map[string]string
	jobStatuses  map[string]string
}

func NewOrchestrator(experiment models.ExperimentConfig, jobService JobService, snapshots *SnapshotWriter) *Orchestrator {
	return &Orchestrator{
		experiment:   experiment,
		jobService:   jobService,
		snapshots:    snapshots,
		clock:        clock.New(),
		deployedJobs: make(map[string]string),
		jobStatuses:  make(map[string]string),
	}
}

// WithClock swaps the wall clock used between poll rounds.
func (o *Orchestrator) WithClock(c clock.Clock) *Orchestrator {
	o.clock = c
	return o
}

type deployResult struct {
	displayName string
	resourceID  string
	payload     models.CustomJobPayload
	err         error
}

// Deploy submits every job of the experiment concurrently. One job's
// rejection never blocks or cancels another's submission; failed jobs are
// recorded as DEPLOYMENT_FAILED and the map of successfully deployed jobs is
// returned, empty if nothing went through.
func (o *Orchestrator) Deploy(ctx context.Context) map[string]string {
	logs.GetLogger().Infof("Deploying experiment '%s' with %d jobs", o.experiment.ExperimentName, len(o.experiment.Jobs))

	results := make(chan deployResult, len(o.experiment.Jobs))
	for i, job := range o.experiment.Jobs {
		displayName := o.resolveDisplayName(job, i)
		go func(job models.JobConfig, displayName string) {
			payload := BuildCustomJobPayload(o.experiment, job, displayName)
			resourceID, err := o.jobService.SubmitJob(ctx, o.experiment.ParentScope(), payload)
			results <- deployResult{
				displayName: displayName,
				resourceID:  resourceID,
				payload:     payload,
				err:         err,
			}
		}(job, displayName)
	}

	successCount := 0
	for range o.experiment.Jobs {
		result := <-results
		if result.err != nil {
			logs.GetLogger().Errorf("Failed to deploy job %s: %v", result.displayName, result.err)
			o.logFailedPayload(result.displayName, result.payload)
			o.jobStatuses[result.displayName] = constants.STATUS_DEPLOYMENT_FAILED
			continue
		}
		logs.GetLogger().Infof("Successfully submitted job %s: %s", result.displayName, result.resourceID)
		o.deployedJobs[result.displayName] = result.resourceID
		o.jobStatuses[result.displayName] = constants.STATUS_SUBMITTED
		successCount++
	}

	logs.GetLogger().Infof("Experiment deployment submission complete: %d/%d jobs submitted", successCount, len(o.experiment.Jobs))
	return o.deployedJobs
}

func (o *Orchestrator) resolveDisplayName(job models.JobConfig, index int) string {
	if job.DisplayName != "" {
		return job.DisplayName
	}
	return fmt.Sprintf("%s-job-%d", o.experiment.ExperimentName, index+1)
}

// logFailedPayload keeps the exact request of a rejected submission visible
// for the operator.
func (o *Orchestrator) logFailedPayload(displayName string, payload models.CustomJobPayload) {
	payloadJson, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		logs.GetLogger().Errorf("Could not serialize failed payload for %s: %v", displayName, err)
		return
	}
	logs.GetLogger().Errorf("Failed payload for %s: %s", displayName, string(payloadJson))
}

// Monitor polls every deployed job until all of them reach a terminal state,
// writing a status snapshot after each round. A failed status query marks the
// job STATUS_ERROR but keeps it in the active set so a transient error cannot
// mislabel a job permanently.
func (o *Orchestrator) Monitor(ctx context.Context, pollInterval time.Duration) map[string]string {
	if len(o.deployedJobs) == 0 {
		logs.GetLogger().Warnf("No jobs have been deployed to monitor")
		return map[string]string{}
	}

	logs.GetLogger().Infof("Starting monitor for %d jobs", len(o.deployedJobs))
	activeJobs := make(map[string]struct{}, len(o.deployedJobs))
	for displayName := range o.deployedJobs {
		activeJobs[displayName] = struct{}{}
	}

	for len(activeJobs) > 0 {
		logs.GetLogger().Infof("Polling status for %d active jobs", len(activeJobs))

		for displayName := range activeJobs {
			resourceID := o.deployedJobs[displayName]
			status, err := o.jobService.GetJobStatus(ctx, resourceID)
			if err != nil {
				logs.GetLogger().Errorf("Error getting status for job %s (%s): %v", displayName, resourceID, err)
				o.jobStatuses[displayName] = constants.STATUS_ERROR
				continue
			}

			o.jobStatuses[displayName] = status
			if constants.IsTerminalJobState(status) {
				logs.GetLogger().Infof("Job %s finished or finishing with status: %s", displayName, status)
				delete(activeJobs, displayName)
			} else if status == constants.JOB_STATE_UPDATING {
				logs.GetLogger().Infof("Job %s is currently updating", displayName)
			}
		}

		o.snapshots.Write(o.buildSnapshot())

		if len(activeJobs) == 0 {
			break
		}

		logs.GetLogger().Infof("%d jobs still active, waiting %s", len(activeJobs), pollInterval)
		timer := o.clock.Timer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			logs.GetLogger().Warnf("Monitor stopped early: %v", ctx.Err())
			return o.jobStatuses
		case <-timer.C:
		}
	}

	logs.GetLogger().Infof("All jobs have completed or reached a terminal state")
	return o.jobStatuses
}

func (o *Orchestrator) buildSnapshot() models.StatusSnapshot {
	now := o.clock.Now()
	activeCount := 0
	for _, status := range o.jobStatuses {
		if !constants.IsSettledStatus(status) {
			activeCount++
		}
	}

	return models.StatusSnapshot{
		ExperimentName:  o.experiment.ExperimentName,
		Timestamp:       float64(now.UnixNano()) / 1e9,
		TimestampISO:    now.UTC().Format("2006-01-02T15:04:05Z"),
		JobStatuses:     copyStringMap(o.jobStatuses),
		DeployedJobs:    copyStringMap(o.deployedJobs),
		TotalJobs:       len(o.deployedJobs),
		ActiveJobsCount: activeCount,
	}
}

// GetConsoleURLs derives the monitoring and log console links for every
// deployed job from the last path segment of its resource id.
func (o *Orchestrator) GetConsoleURLs() map[string]models.ConsoleURLs {
	urls := make(map[string]models.ConsoleURLs, len(o.deployedJobs))
	for displayName, resourceID := range o.deployedJobs {
		segments := strings.Split(resourceID, "/")
		jobID := segments[len(segments)-1]

		urls[displayName] = models.ConsoleURLs{
			Monitor: fmt.Sprintf("https://console.cloud.google.com/vertex-ai/training/%s/locations/%s?project=%s",
				jobID, o.experiment.Region, o.experiment.ProjectID),
			Logs: fmt.Sprintf("https://console.cloud.google.com/logs/query;query="+
				"resource.type%%3D%%22aiplatform.googleapis.com%%2FCustomJob%%22%%20"+
				"AND%%20resource.labels.custom_job_id%%3D%%22%s%%22?project=%s&region=%s",
				jobID, o.experiment.ProjectID, o.experiment.Region),
		}
	}
	return urls
}

// CancelJob asks the platform to cancel one deployed job. The monitor's
// active set is untouched; the next poll round observes the resulting state.
func (o *Orchestrator) CancelJob(ctx context.Context, displayName string) bool {
	resourceID, ok := o.deployedJobs[displayName]
	if !ok {
		logs.GetLogger().Errorf("Job %s not found in deployed jobs", displayName)
		return false
	}

	if err := o.jobService.CancelJob(ctx, resourceID); err != nil {
		logs.GetLogger().Errorf("Error cancelling job %s: %v", displayName, err)
		return false
	}
	logs.GetLogger().Infof("Requested cancellation of job %s", displayName)
	return true
}

// DeployedJobs returns a copy of the display-name to resource-id registry.
func (o *Orchestrator) DeployedJobs() map[string]string {
	return copyStringMap(o.deployedJobs)
}

// JobStatuses returns a copy of the current status map.
func (o *Orchestrator) JobStatuses() map[string]string {
	return copyStringMap(o.jobStatuses)
}

func copyStringMap(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
