package resflow

const (
	// Event types
	EventWorkflowStarted   = "workflow_started"
	EventWorkflowCompleted = "workflow_completed"
	EventStepSubmitted     = "step_submitted"
	EventStepFailed        = "step_failed"
	EventStepsReset        = "steps_reset"
	EventLockAcquired      = "lock_acquired"
	EventLockReleased      = "lock_released"

	// Log and event data keys
	KeyResourceID   = "resource_id"
	KeyWorkflowID   = "workflow_id"
	KeyWorkflowType = "workflow_type"
	KeyStepID       = "step_id"
	KeyStepName     = "step_name"
	KeyStatus       = "status"
	KeyHolder       = "holder"
)
