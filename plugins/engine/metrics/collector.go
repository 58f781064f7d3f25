package metrics

import (
	"time"

	"github.com/rom8726/resflow"
)

type MetricsCollector interface {
	RecordWorkflowStarted(workflowType string)
	RecordWorkflowCompleted(workflowType string, duration time.Duration)
	RecordStepSubmitted(workflowType string, stepName string, stepType resflow.StepType, status resflow.Status)
	RecordStepFailed(workflowType string, stepName string, stepType resflow.StepType)
	RecordStepsReset(workflowType string, count int)
	RecordLock(workflowType string, action LockAction, scope LockScope)
}

type LockAction string

const (
	LockAcquired LockAction = "acquired"
	LockReleased LockAction = "released"
)

type LockScope string

const (
	LockScopeUser     LockScope = "user"
	LockScopeAllUsers LockScope = "all_users"
)

func lockScope(holder string) LockScope {
	if holder == resflow.LockedForAllUsers {
		return LockScopeAllUsers
	}

	return LockScopeUser
}
