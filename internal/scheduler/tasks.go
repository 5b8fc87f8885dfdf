package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"measurehub_backend/internal/measurements/domain"
)

// TaskNotificationRetry re-runs an inbound event whose notification fan-out
// had send failures. The payload is the full event; the orchestrator and the
// dedup reservations make the replay safe.
const TaskNotificationRetry = "notification:retry"

// TaskMeasurementEscalation checks a job that was created without a
// measurer and alerts ops if it is still unassigned.
const TaskMeasurementEscalation = "measurement:escalation"

// MeasurementEscalationPayload identifies the job to check.
type MeasurementEscalationPayload struct {
	ExternalLeadID int64 `json:"externalLeadId"`
}

func NewNotificationRetryTask(event domain.InboundEvent) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationRetry, data), nil
}

func ParseNotificationRetryPayload(task *asynq.Task) (domain.InboundEvent, error) {
	var event domain.InboundEvent
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		return domain.InboundEvent{}, err
	}
	return event, nil
}

func NewMeasurementEscalationTask(payload MeasurementEscalationPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMeasurementEscalation, data), nil
}

func ParseMeasurementEscalationPayload(task *asynq.Task) (MeasurementEscalationPayload, error) {
	var payload MeasurementEscalationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return MeasurementEscalationPayload{}, err
	}
	return payload, nil
}
