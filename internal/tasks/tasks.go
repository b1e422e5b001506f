package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeAuditPrune = "audit:prune"
)

type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

func NewAuditPruneTask(retention time.Duration, opts ...asynq.Option) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}

	uniqueOpt := asynq.Unique(1 * time.Hour)
	allOpts := append(opts, uniqueOpt)

	return asynq.NewTask(TypeAuditPrune, payloadBytes, allOpts...), nil
}
