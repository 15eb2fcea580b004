package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile triggers a trial-balance reconciliation run.
	TaskLedgerReconcile = "gl:reconcile"
)

// ReconcilePayload scopes a reconciliation run. Tenant selects the datasource
// when the deployment hosts more than one ledger; empty means the default.
type ReconcilePayload struct {
	Tenant string `json:"tenant"`
}

// NewReconcileTask constructs an Asynq task for a reconciliation run.
func NewReconcileTask(payload ReconcilePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault)), nil
}
