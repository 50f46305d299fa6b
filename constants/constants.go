package constants

// Remote job lifecycle states as reported by the platform.
const JOB_STATE_QUEUED = "JOB_STATE_QUEUED"
const JOB_STATE_PENDING = "JOB_STATE_PENDING"
const JOB_STATE_RUNNING = "JOB_STATE_RUNNING"
const JOB_STATE_SUCCEEDED = "JOB_STATE_SUCCEEDED"
const JOB_STATE_FAILED = "JOB_STATE_FAILED"
const JOB_STATE_CANCELLING = "JOB_STATE_CANCELLING"
const JOB_STATE_CANCELLED = "JOB_STATE_CANCELLED"
const JOB_STATE_EXPIRED = "JOB_STATE_EXPIRED"
const JOB_STATE_UPDATING = "JOB_STATE_UPDATING"

// Local states set by the orchestrator, never by the platform.
const STATUS_SUBMITTED = "SUBMITTED"
const STATUS_DEPLOYMENT_FAILED = "DEPLOYMENT_FAILED"
const STATUS_ERROR = "STATUS_ERROR"

const TASK_DEPLOY_EXPERIMENT string = "worker.deploy_experiment"

const REDIS_JOB_PREFIX = "vjob:"

// Machine families with this prefix (H100 class) must be submitted with the
// AUTOMATIC scheduling strategy.
const H100_MACHINE_PREFIX = "a3-"

// TerminalJobStates stop the monitor from tracking a job. JOB_STATE_CANCELLING
// is transitional on the platform side but treated as terminal here: once a
// cancel has begun we stop tracking, even if the platform later rejects it.
var TerminalJobStates = []string{
	JOB_STATE_SUCCEEDED,
	JOB_STATE_FAILED,
	JOB_STATE_CANCELLED,
	JOB_STATE_EXPIRED,
	JOB_STATE_CANCELLING,
}

func IsTerminalJobState(state string) bool {
	for _, s := range TerminalJobStates {
		if s == state {
			return true
		}
	}
	return false
}

// IsSettledStatus reports whether a status is terminal or an error state, i.e.
// a job no one should count as still active in a snapshot.
func IsSettledStatus(status string) bool {
	if IsTerminalJobState(status) {
		return true
	}
	return status == STATUS_ERROR || status == STATUS_DEPLOYMENT_FAILED
}
