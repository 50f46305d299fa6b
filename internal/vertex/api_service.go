package vertex

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/filswan/go-mcs-sdk/mcs/api/common/logs"
	"github.com/gin-gonic/gin"
	"github.com/gomodule/redigo/redis"
	"golang.org/x/xerrors"

	"github.com/silent-stones/vertex-universal-orchestrator/conf"
	"github.com/silent-stones/vertex-universal-orchestrator/constants"
	"github.com/silent-stones/vertex-universal-orchestrator/models"
	"github.com/silent-stones/vertex-universal-orchestrator/util"
)

// runningExperiments tracks the orchestrator of every experiment deployed by
// this process, keyed by experiment name.
var runningExperiments sync.Map

var experimentStore *ExperimentStore
var storeOnce sync.Once

func getExperimentStore() *ExperimentStore {
	storeOnce.Do(func() {
		store, err := OpenOrInitStore(conf.GetConfig().MONITOR.RegistryDir)
		if err != nil {
			logs.GetLogger().Fatalf("Failed open experiment registry, error: %+v", err)
		}
		experimentStore = store
	})
	return experimentStore
}

// ReceiveExperiment accepts an experiment definition and hands the deployment
// to a background celery task, so the HTTP caller never waits on submissions.
func ReceiveExperiment(c *gin.Context) {
	var experiment models.ExperimentConfig
	if err := c.ShouldBindJSON(&experiment); err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.JsonError, err.Error()))
		return
	}
	logs.GetLogger().Infof("Experiment received: %s with %d jobs", experiment.ExperimentName, len(experiment.Jobs))

	if err := experiment.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.ExperimentParamError, err.Error()))
		return
	}
	for i, job := range experiment.Jobs {
		validated, err := models.NewJobConfig(job)
		if err != nil {
			c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.ExperimentParamError, err.Error()))
			return
		}
		experiment.Jobs[i] = validated
	}

	experimentJson, err := json.Marshal(experiment)
	if err != nil {
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.JsonError))
		return
	}

	delayTask, err := NewCeleryService().DelayTask(constants.TASK_DEPLOY_EXPERIMENT, string(experimentJson))
	if err != nil {
		logs.GetLogger().Errorf("Failed async deploy task, error: %v", err)
		c.JSON(http.StatusInternalServerError, util.CreateErrorResponse(util.DeployTaskError))
		return
	}
	logs.GetLogger().Infof("delayTask detail info: %+v", delayTask)

	c.JSON(http.StatusOK, util.CreateSuccessResponse("experiment submitted"))
}

// DeployExperimentTask is the celery worker body: deploy the experiment, then
// monitor it to completion. Registered under TASK_DEPLOY_EXPERIMENT.
func DeployExperimentTask(experimentJson string) (string, error) {
	var experiment models.ExperimentConfig
	if err := json.Unmarshal([]byte(experimentJson), &experiment); err != nil {
		return "", err
	}

	cfg := conf.GetConfig()
	jobService := NewRestJobService(experiment.Region, cfg.VERTEX.AccessToken)
	orchestrator := NewOrchestrator(experiment, jobService, NewSnapshotWriter(cfg.MONITOR.SnapshotDir))
	runningExperiments.Store(experiment.ExperimentName, orchestrator)

	ctx := context.Background()
	deployedJobs := orchestrator.Deploy(ctx)
	for displayName, resourceID := range deployedJobs {
		saveJobMetadata(experiment, displayName, resourceID)
	}
	persistExperimentRecord(experiment, orchestrator)

	pollInterval := time.Duration(cfg.MONITOR.PollIntervalSeconds) * time.Second
	statuses := orchestrator.Monitor(ctx, pollInterval)

	for displayName, status := range statuses {
		updateJobMetadataStatus(displayName, status)
	}
	persistExperimentRecord(experiment, orchestrator)

	return strconv.Itoa(len(deployedJobs)) + "/" + strconv.Itoa(len(experiment.Jobs)) + " jobs deployed", nil
}

func persistExperimentRecord(experiment models.ExperimentConfig, orchestrator *Orchestrator) {
	record := models.ExperimentRecord{
		Config:       experiment,
		DeployedJobs: orchestrator.DeployedJobs(),
		JobStatuses:  orchestrator.JobStatuses(),
		UpdatedAt:    time.Now().Unix(),
	}
	if err := getExperimentStore().Put(experiment.ExperimentName, record); err != nil {
		logs.GetLogger().Errorf("Failed persist experiment record: %s, error: %+v", experiment.ExperimentName, err)
	}
}

// GetExperimentStatus reports the live status map of a running experiment, or
// the stored record of a finished one.
func GetExperimentStatus(c *gin.Context) {
	experimentName := c.Param("name")

	if value, ok := runningExperiments.Load(experimentName); ok {
		orchestrator := value.(*Orchestrator)
		c.JSON(http.StatusOK, util.CreateSuccessResponse(gin.H{
			"experiment_name": experimentName,
			"job_statuses":    orchestrator.JobStatuses(),
			"deployed_jobs":   orchestrator.DeployedJobs(),
		}))
		return
	}

	record, err := getExperimentStore().Get(experimentName)
	if err != nil {
		c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.ExperimentNotFoundError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, util.CreateSuccessResponse(gin.H{
		"experiment_name": experimentName,
		"job_statuses":    record.JobStatuses,
		"deployed_jobs":   record.DeployedJobs,
	}))
}

// GetExperimentUrls returns the console links for every deployed job of one
// experiment.
func GetExperimentUrls(c *gin.Context) {
	experimentName := c.Param("name")
	value, ok := runningExperiments.Load(experimentName)
	if !ok {
		c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.ExperimentNotFoundError))
		return
	}
	orchestrator := value.(*Orchestrator)
	c.JSON(http.StatusOK, util.CreateSuccessResponse(orchestrator.GetConsoleURLs()))
}

// CancelDeployedJob cancels one job of a running experiment by display name.
func CancelDeployedJob(c *gin.Context) {
	experimentName := c.Query("experiment_name")
	displayName := c.Query("display_name")
	if experimentName == "" || displayName == "" {
		c.JSON(http.StatusBadRequest, util.CreateErrorResponse(util.ExperimentParamError, "experiment_name and display_name are required"))
		return
	}

	value, ok := runningExperiments.Load(experimentName)
	if !ok {
		c.JSON(http.StatusNotFound, util.CreateErrorResponse(util.ExperimentNotFoundError))
		return
	}
	orchestrator := value.(*Orchestrator)

	if !orchestrator.CancelJob(c.Request.Context(), displayName) {
		c.JSON(http.StatusOK, util.CreateErrorResponse(util.CancelJobError))
		return
	}
	updateJobMetadataStatus(displayName, constants.JOB_STATE_CANCELLING)
	c.JSON(http.StatusOK, util.CreateSuccessResponse("cancel requested"))
}

// saveJobMetadata mirrors one submitted job into a redis hash for the CLI
// listing path.
func saveJobMetadata(experiment models.ExperimentConfig, displayName, resourceID string) {
	conn := GetRedisClient()
	defer conn.Close()

	var machineType string
	for i, job := range experiment.Jobs {
		name := job.DisplayName
		if name == "" {
			name = experiment.ExperimentName + "-job-" + strconv.Itoa(i+1)
		}
		if name == displayName {
			machineType = job.MachineType
			break
		}
	}

	key := constants.REDIS_JOB_PREFIX + displayName
	fullArgs := []interface{}{key}
	fields := map[string]string{
		"experiment_name": experiment.ExperimentName,
		"display_name":    displayName,
		"resource_id":     resourceID,
		"machine_type":    machineType,
		"status":          constants.STATUS_SUBMITTED,
		"submit_time":     strconv.Itoa(int(time.Now().Unix())),
	}
	for field, val := range fields {
		fullArgs = append(fullArgs, field, val)
	}
	if _, err := conn.Do("HSET", fullArgs...); err != nil {
		logs.GetLogger().Errorf("Failed save job metadata, key: %s, error: %+v", key, err)
	}
}

func updateJobMetadataStatus(displayName, status string) {
	conn := GetRedisClient()
	defer conn.Close()

	key := constants.REDIS_JOB_PREFIX + displayName
	if _, err := conn.Do("HSET", key, "status", status); err != nil {
		logs.GetLogger().Errorf("Failed update job metadata, key: %s, error: %+v", key, err)
	}
}

// ListJobMetadataKeys returns the redis keys of every mirrored job record.
func ListJobMetadataKeys() ([]string, error) {
	conn := GetRedisClient()
	defer conn.Close()

	prefix := constants.REDIS_JOB_PREFIX + "*"
	keys, err := redis.Strings(conn.Do("KEYS", prefix))
	if err != nil {
		return nil, xerrors.Errorf("failed get redis %s prefix: %w", prefix, err)
	}
	return keys, nil
}

// RetrieveJobMetadata reads one mirrored job record back out of redis.
func RetrieveJobMetadata(key string) (models.JobMetadata, error) {
	conn := GetRedisClient()
	defer conn.Close()

	values, err := redis.StringMap(conn.Do("HGETALL", key))
	if err != nil {
		return models.JobMetadata{}, err
	}

	submitTime, _ := strconv.ParseInt(values["submit_time"], 10, 64)
	return models.JobMetadata{
		ExperimentName: values["experiment_name"],
		DisplayName:    values["display_name"],
		ResourceID:     values["resource_id"],
		MachineType:    values["machine_type"],
		Status:         values["status"],
		SubmitTime:     submitTime,
	}, nil
}
