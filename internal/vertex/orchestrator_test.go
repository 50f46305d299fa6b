package vertex

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silent-stones/vertex-universal-orchestrator/constants"
	"github.com/silent-stones/vertex-universal-orchestrator/models"
)

type pollResult struct {
	status string
	err    error
}

// fakeJobService records submissions and replays a scripted status sequence
// per resource id. The last entry of a sequence repeats once exhausted.
type fakeJobService struct {
	mu         sync.Mutex
	submitErrs map[string]error
	statusSeq  map[string][]pollResult
	statusIdx  map[string]int
	submitted  map[string]models.CustomJobPayload
	cancelErr  error
	cancelled  []string
}

func newFakeJobService() *fakeJobService {
	return &fakeJobService{
		submitErrs: make(map[string]error),
		statusSeq:  make(map[string][]pollResult),
		statusIdx:  make(map[string]int),
		submitted:  make(map[string]models.CustomJobPayload),
	}
}

func resourceIDFor(displayName string) string {
	return "projects/demo-project/locations/us-central1/customJobs/" + displayName
}

func (f *fakeJobService) SubmitJob(ctx context.Context, parent string, payload models.CustomJobPayload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted[payload.DisplayName] = payload
	if err, ok := f.submitErrs[payload.DisplayName]; ok {
		return "", err
	}
	return resourceIDFor(payload.DisplayName), nil
}

func (f *fakeJobService) GetJobStatus(ctx context.Context, resourceID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seq, ok := f.statusSeq[resourceID]
	if !ok || len(seq) == 0 {
		return constants.JOB_STATE_SUCCEEDED, nil
	}
	idx := f.statusIdx[resourceID]
	if idx >= len(seq) {
		idx = len(seq) - 1
	}
	f.statusIdx[resourceID] = idx + 1
	return seq[idx].status, seq[idx].err
}

func (f *fakeJobService) CancelJob(ctx context.Context, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancelled = append(f.cancelled, resourceID)
	return f.cancelErr
}

func (f *fakeJobService) pollCount(resourceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusIdx[resourceID]
}

func (f *fakeJobService) submittedPayload(displayName string) (models.CustomJobPayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.submitted[displayName]
	return payload, ok
}

func newTestOrchestrator(t *testing.T, experiment models.ExperimentConfig, jobService JobService) *Orchestrator {
	t.Helper()
	return NewOrchestrator(experiment, jobService, NewSnapshotWriter(t.TempDir()))
}

func TestDeployIsolatesFailedSubmissions(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{
		{MachineType: "n1-standard-4", DisplayName: "job-a"},
		{MachineType: "n1-standard-4", DisplayName: "job-b"},
		{MachineType: "n1-standard-4", DisplayName: "job-c"},
	}

	jobService := newFakeJobService()
	jobService.submitErrs["job-b"] = errors.New("quota exceeded")

	orchestrator := newTestOrchestrator(t, experiment, jobService)
	deployedJobs := orchestrator.Deploy(context.Background())

	assert.Len(t, deployedJobs, 2)
	assert.Equal(t, resourceIDFor("job-a"), deployedJobs["job-a"])
	assert.Equal(t, resourceIDFor("job-c"), deployedJobs["job-c"])
	assert.NotContains(t, deployedJobs, "job-b")

	statuses := orchestrator.JobStatuses()
	assert.Equal(t, constants.STATUS_SUBMITTED, statuses["job-a"])
	assert.Equal(t, constants.STATUS_DEPLOYMENT_FAILED, statuses["job-b"])
	assert.Equal(t, constants.STATUS_SUBMITTED, statuses["job-c"])
}

func TestDeployDefaultDisplayNames(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{
		{MachineType: "n1-standard-4"},
		{MachineType: "n1-standard-4", DisplayName: "custom-name"},
		{MachineType: "n1-standard-4"},
	}

	jobService := newFakeJobService()
	orchestrator := newTestOrchestrator(t, experiment, jobService)
	deployedJobs := orchestrator.Deploy(context.Background())

	assert.Contains(t, deployedJobs, "exp-1-job-1")
	assert.Contains(t, deployedJobs, "custom-name")
	assert.Contains(t, deployedJobs, "exp-1-job-3")
}

func TestMonitorWithoutDeployedJobs(t *testing.T) {
	orchestrator := newTestOrchestrator(t, testExperiment(), newFakeJobService())
	statuses := orchestrator.Monitor(context.Background(), time.Millisecond)
	assert.Empty(t, statuses)
}

func TestMonitorRunsUntilAllJobsSettle(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{
		{MachineType: "n1-standard-4", DisplayName: "job-a"},
		{MachineType: "n1-standard-4", DisplayName: "job-b"},
	}

	jobService := newFakeJobService()
	jobService.statusSeq[resourceIDFor("job-a")] = []pollResult{
		{status: constants.JOB_STATE_RUNNING},
		{status: constants.JOB_STATE_RUNNING},
		{status: constants.JOB_STATE_SUCCEEDED},
	}
	jobService.statusSeq[resourceIDFor("job-b")] = []pollResult{
		{status: constants.JOB_STATE_FAILED},
	}

	orchestrator := newTestOrchestrator(t, experiment, jobService)
	orchestrator.Deploy(context.Background())
	statuses := orchestrator.Monitor(context.Background(), 5*time.Millisecond)

	assert.Equal(t, constants.JOB_STATE_SUCCEEDED, statuses["job-a"])
	assert.Equal(t, constants.JOB_STATE_FAILED, statuses["job-b"])
	assert.Equal(t, 3, jobService.pollCount(resourceIDFor("job-a")))
	assert.Equal(t, 1, jobService.pollCount(resourceIDFor("job-b")))
}

func TestMonitorUpdatingIsNotTerminal(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{{MachineType: "n1-standard-4", DisplayName: "job-a"}}

	jobService := newFakeJobService()
	jobService.statusSeq[resourceIDFor("job-a")] = []pollResult{
		{status: constants.JOB_STATE_UPDATING},
		{status: constants.JOB_STATE_SUCCEEDED},
	}

	orchestrator := newTestOrchestrator(t, experiment, jobService)
	orchestrator.Deploy(context.Background())
	statuses := orchestrator.Monitor(context.Background(), time.Millisecond)

	assert.Equal(t, constants.JOB_STATE_SUCCEEDED, statuses["job-a"])
	assert.Equal(t, 2, jobService.pollCount(resourceIDFor("job-a")))
}

func TestMonitorKeepsJobActiveAfterPollError(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{{MachineType: "n1-standard-4", DisplayName: "job-a"}}

	jobService := newFakeJobService()
	jobService.statusSeq[resourceIDFor("job-a")] = []pollResult{
		{err: errors.New("deadline exceeded")},
		{status: constants.JOB_STATE_SUCCEEDED},
	}

	orchestrator := newTestOrchestrator(t, experiment, jobService)
	orchestrator.Deploy(context.Background())
	statuses := orchestrator.Monitor(context.Background(), time.Millisecond)

	assert.Equal(t, constants.JOB_STATE_SUCCEEDED, statuses["job-a"])
	assert.Equal(t, 2, jobService.pollCount(resourceIDFor("job-a")))
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{{MachineType: "n1-standard-4", DisplayName: "job-a"}}

	jobService := newFakeJobService()
	jobService.statusSeq[resourceIDFor("job-a")] = []pollResult{
		{status: constants.JOB_STATE_RUNNING},
	}

	orchestrator := newTestOrchestrator(t, experiment, jobService)
	orchestrator.Deploy(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan map[string]string, 1)
	go func() {
		done <- orchestrator.Monitor(ctx, time.Hour)
	}()

	select {
	case statuses := <-done:
		assert.Equal(t, constants.JOB_STATE_RUNNING, statuses["job-a"])
	case <-time.After(5 * time.Second):
		t.Fatal("monitor did not stop after context cancellation")
	}
}

func TestMonitorSurvivesSnapshotFailure(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{{MachineType: "n1-standard-4", DisplayName: "job-a"}}

	jobService := newFakeJobService()
	jobService.statusSeq[resourceIDFor("job-a")] = []pollResult{
		{status: constants.JOB_STATE_RUNNING},
		{status: constants.JOB_STATE_SUCCEEDED},
	}

	// A regular file in place of the snapshot dir makes every write fail.
	blocked := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))

	orchestrator := NewOrchestrator(experiment, jobService, NewSnapshotWriter(blocked))
	orchestrator.Deploy(context.Background())
	statuses := orchestrator.Monitor(context.Background(), time.Millisecond)

	assert.Equal(t, constants.JOB_STATE_SUCCEEDED, statuses["job-a"])
}

func TestDeployAndMonitorMixedMachineTypes(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{
		{
			MachineType:      "a3-highgpu-8g",
			AcceleratorType:  "NVIDIA_H100_80GB",
			AcceleratorCount: 8,
			DisplayName:      "h100-job",
		},
		{
			MachineType: "a2-highgpu-1g",
			DisplayName: "a100-job",
		},
	}

	jobService := newFakeJobService()
	snapshotDir := t.TempDir()
	orchestrator := NewOrchestrator(experiment, jobService, NewSnapshotWriter(snapshotDir))

	deployedJobs := orchestrator.Deploy(context.Background())
	require.Len(t, deployedJobs, 2)

	h100Payload, ok := jobService.submittedPayload("h100-job")
	require.True(t, ok)
	assert.Equal(t, models.StrategyAutomatic, h100Payload.JobSpec.Scheduling.Strategy)
	assert.Equal(t, int64(8), h100Payload.JobSpec.WorkerPoolSpecs[0].MachineSpec.AcceleratorCount)

	a100Payload, ok := jobService.submittedPayload("a100-job")
	require.True(t, ok)
	assert.Equal(t, models.StrategyStandard, a100Payload.JobSpec.Scheduling.Strategy)
	assert.Empty(t, a100Payload.JobSpec.WorkerPoolSpecs[0].MachineSpec.AcceleratorType)
	assert.Zero(t, a100Payload.JobSpec.WorkerPoolSpecs[0].MachineSpec.AcceleratorCount)

	statuses := orchestrator.Monitor(context.Background(), time.Millisecond)
	assert.Equal(t, constants.JOB_STATE_SUCCEEDED, statuses["h100-job"])
	assert.Equal(t, constants.JOB_STATE_SUCCEEDED, statuses["a100-job"])

	entries, err := os.ReadDir(snapshotDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := os.ReadFile(filepath.Join(snapshotDir, entries[len(entries)-1].Name()))
	require.NoError(t, err)
	var snapshot models.StatusSnapshot
	require.NoError(t, json.Unmarshal(data, &snapshot))

	assert.Equal(t, "exp-1", snapshot.ExperimentName)
	assert.Equal(t, 2, snapshot.TotalJobs)
	assert.Zero(t, snapshot.ActiveJobsCount)
	assert.Greater(t, snapshot.Timestamp, float64(0))
	assert.NotEmpty(t, snapshot.TimestampISO)
	assert.Equal(t, orchestrator.DeployedJobs(), snapshot.DeployedJobs)
}

func TestGetConsoleURLs(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{{MachineType: "n1-standard-4", DisplayName: "job-a"}}

	orchestrator := newTestOrchestrator(t, experiment, newFakeJobService())
	orchestrator.Deploy(context.Background())

	urls := orchestrator.GetConsoleURLs()
	require.Contains(t, urls, "job-a")
	assert.Equal(t,
		"https://console.cloud.google.com/vertex-ai/training/job-a/locations/us-central1?project=demo-project",
		urls["job-a"].Monitor)
	assert.True(t, strings.Contains(urls["job-a"].Logs, "custom_job_id%3D%22job-a%22"))
	assert.True(t, strings.Contains(urls["job-a"].Logs, "project=demo-project&region=us-central1"))
}

func TestCancelJob(t *testing.T) {
	experiment := testExperiment()
	experiment.Jobs = []models.JobConfig{{MachineType: "n1-standard-4", DisplayName: "job-a"}}

	jobService := newFakeJobService()
	orchestrator := newTestOrchestrator(t, experiment, jobService)
	orchestrator.Deploy(context.Background())

	assert.False(t, orchestrator.CancelJob(context.Background(), "unknown-job"))

	assert.True(t, orchestrator.CancelJob(context.Background(), "job-a"))
	assert.Equal(t, []string{resourceIDFor("job-a")}, jobService.cancelled)

	jobService.cancelErr = errors.New("already terminal")
	assert.False(t, orchestrator.CancelJob(context.Background(), "job-a"))
}
