package models

// Strategy is the platform scheduling strategy. Exactly two values exist;
// a payload always carries one of them.
type Strategy string

const (
	StrategyAutomatic Strategy = "AUTOMATIC"
	StrategyStandard  Strategy = "STANDARD"
)

// CustomJobPayload is the request body for the platform's create-job call.
// Field names follow the platform wire schema.
type CustomJobPayload struct {
	DisplayName string            `json:"display_name"`
	JobSpec     JobSpec           `json:"job_spec"`
	Labels      map[string]string `json:"labels,omitempty"`
}

type JobSpec struct {
	WorkerPoolSpecs     []WorkerPoolSpec     `json:"worker_pool_specs"`
	Scheduling          Scheduling           `json:"scheduling"`
	ServiceAccount      string               `json:"service_account,omitempty"`
	Network             string               `json:"network,omitempty"`
	BaseOutputDirectory *BaseOutputDirectory `json:"base_output_directory,omitempty"`
}

type WorkerPoolSpec struct {
	MachineSpec   MachineSpec   `json:"machine_spec"`
	ReplicaCount  int64         `json:"replica_count"`
	ContainerSpec ContainerSpec `json:"container_spec"`
}

type MachineSpec struct {
	MachineType      string `json:"machine_type"`
	AcceleratorType  string `json:"accelerator_type,omitempty"`
	AcceleratorCount int64  `json:"accelerator_count,omitempty"`
}

type ContainerSpec struct {
	ImageURI string   `json:"image_uri"`
	Args     []string `json:"args,omitempty"`
	Env      []EnvVar `json:"env,omitempty"`
}

type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Scheduling struct {
	Strategy Strategy `json:"strategy"`
}

type BaseOutputDirectory struct {
	OutputURIPrefix string `json:"output_uri_prefix"`
}
