package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSyncRun = "sync.run"

type SyncRunPayload struct {
	Job       string `json:"job"`
	SinceDate string `json:"sinceDate,omitempty"`
}

func NewSyncRunTask(payload SyncRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSyncRun, data), nil
}

func ParseSyncRunPayload(task *asynq.Task) (SyncRunPayload, error) {
	var payload SyncRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SyncRunPayload{}, err
	}
	return payload, nil
}
