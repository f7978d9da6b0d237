package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ledger-recon/internal/reconcile"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatementRefresh recomputes and publishes one counterparty statement.
	TaskStatementRefresh = "ledger:statement_refresh"
)

// StatementRefreshPayload identifies the counterparty to refresh.
type StatementRefreshPayload struct {
	Kind     string `json:"kind"`
	EntityID int64  `json:"entity_id"`
}

// Ref converts the payload into an entity reference.
func (p StatementRefreshPayload) Ref() reconcile.EntityRef {
	return reconcile.EntityRef{Kind: reconcile.Kind(p.Kind), ID: p.EntityID}
}

// NewStatementRefreshTask constructs an Asynq task for ref.
func NewStatementRefreshTask(ref reconcile.EntityRef) (*asynq.Task, error) {
	if !ref.Kind.Valid() || ref.ID <= 0 {
		return nil, fmt.Errorf("jobs: invalid entity %s", ref)
	}
	body, err := json.Marshal(StatementRefreshPayload{Kind: string(ref.Kind), EntityID: ref.ID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStatementRefresh, body, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// StatementRefreshCron schedules a refresh of every ref on spec.
func StatementRefreshCron(spec string, refs []reconcile.EntityRef) ([]CronRegistration, error) {
	if spec == "" {
		return nil, nil
	}
	entries := make([]CronRegistration, 0, len(refs))
	for _, ref := range refs {
		task, err := NewStatementRefreshTask(ref)
		if err != nil {
			return nil, err
		}
		entries = append(entries, CronRegistration{Spec: spec, Task: task})
	}
	return entries, nil
}
