package models

// StatusSnapshot is a point-in-time copy of an experiment's job statuses,
// written once per poll round.
type StatusSnapshot struct {
	ExperimentName  string            `json:"experiment_name"`
	Timestamp       float64           `json:"timestamp"`
	TimestampISO    string            `json:"timestamp_iso"`
	JobStatuses     map[string]string `json:"job_statuses"`
	DeployedJobs    map[string]string `json:"deployed_jobs"`
	TotalJobs       int               `json:"total_jobs"`
	ActiveJobsCount int               `json:"active_jobs_count"`
}

// JobMetadata is the per-job record mirrored into redis after a successful
// submission, consumed by the CLI listing commands.
type JobMetadata struct {
	ExperimentName string `json:"experiment_name"`
	DisplayName    string `json:"display_name"`
	ResourceID     string `json:"resource_id"`
	MachineType    string `json:"machine_type"`
	Status         string `json:"status"`
	SubmitTime     int64  `json:"submit_time"`
}

// ExperimentRecord is what the local registry stores per experiment so the
// CLI can inspect past runs without the API process.
type ExperimentRecord struct {
	Config       ExperimentConfig  `json:"config"`
	DeployedJobs map[string]string `json:"deployed_jobs"`
	JobStatuses  map[string]string `json:"job_statuses"`
	UpdatedAt    int64             `json:"updated_at"`
}
