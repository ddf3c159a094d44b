package viewmodels

import (
	"time"

	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/goccy/go-json"
)

type InstanceStatus struct {
	InstanceID      string          `json:"instanceId"`
	Name            string          `json:"name"`
	RuntimeStatus   string          `json:"runtimeStatus"`
	Phase           string          `json:"phase"`
	Output          json.RawMessage `json:"output,omitempty"`
	Error           string          `json:"error,omitempty"`
	CreatedTime     time.Time       `json:"createdTime"`
	LastUpdatedTime time.Time       `json:"lastUpdatedTime"`
}

func NewInstanceStatus(instance orchestration.Instance) InstanceStatus {
	result := InstanceStatus{
		InstanceID:      instance.ID,
		Name:            instance.Name,
		RuntimeStatus:   string(instance.Status),
		Phase:           string(instance.Phase),
		Error:           instance.Error,
		CreatedTime:     instance.CreatedAt,
		LastUpdatedTime: instance.UpdatedAt,
	}

	if instance.Output != "" {
		result.Output = json.RawMessage(instance.Output)
	}

	return result
}
