package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "supamon-backend/internal/errors"
)

// TriggerType selects what a notification rule reacts to.
type TriggerType string

const (
	TriggerNewUser   TriggerType = "new_user"
	TriggerNewRow    TriggerType = "new_row"
	TriggerThreshold TriggerType = "threshold"
)

// ThresholdMetric names a resource gauge a threshold rule watches.
type ThresholdMetric string

const (
	MetricCPU    ThresholdMetric = "cpu"
	MetricMemory ThresholdMetric = "memory"
	MetricDisk   ThresholdMetric = "disk"
)

// Threshold is the trigger condition of a threshold rule.
type Threshold struct {
	Metric ThresholdMetric `json:"metric"`
	Value  float64         `json:"value"`
}

// NotificationRule is persisted alerting configuration. Rules are stored and
// listed only; nothing evaluates them against live metrics.
//
// ProjectID refers to Project.ID but is not enforced: rules may outlive the
// project they were created for.
type NotificationRule struct {
	ID          string      `json:"id"`
	ProjectID   string      `json:"projectId"`
	Name        string      `json:"name"`
	Enabled     bool        `json:"enabled"`
	TriggerType TriggerType `json:"triggerType"`
	TableName   string      `json:"tableName,omitempty"`
	Threshold   *Threshold  `json:"threshold,omitempty"`
	Message     string      `json:"message"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// RecordID implements repository.Record.
func (r NotificationRule) RecordID() string { return r.ID }

// Validate enforces that exactly the trigger-specific field is populated.
func (r NotificationRule) Validate() error {
	var problems []string
	if strings.TrimSpace(r.ID) == "" {
		problems = append(problems, "id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		problems = append(problems, "name is required")
	}
	if strings.TrimSpace(r.Message) == "" {
		problems = append(problems, "message is required")
	}

	switch r.TriggerType {
	case TriggerNewUser:
		if r.TableName != "" || r.Threshold != nil {
			problems = append(problems, "new_user rules take neither tableName nor threshold")
		}
	case TriggerNewRow:
		if strings.TrimSpace(r.TableName) == "" {
			problems = append(problems, "tableName is required for new_row rules")
		}
		if r.Threshold != nil {
			problems = append(problems, "threshold is only allowed for threshold rules")
		}
	case TriggerThreshold:
		if r.TableName != "" {
			problems = append(problems, "tableName is only allowed for new_row rules")
		}
		if r.Threshold == nil {
			problems = append(problems, "threshold is required for threshold rules")
		} else {
			switch r.Threshold.Metric {
			case MetricCPU, MetricMemory, MetricDisk:
			default:
				problems = append(problems, fmt.Sprintf("unknown threshold metric %q", r.Threshold.Metric))
			}
			if r.Threshold.Value < 0 || r.Threshold.Value > 100 {
				problems = append(problems, "threshold value must be between 0 and 100")
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown trigger type %q", r.TriggerType))
	}

	if len(problems) > 0 {
		return apperrors.Validation(strings.Join(problems, "; "))
	}
	return nil
}

// Normalize trims the free-text fields. Trigger-specific fields are left as
// given so that Validate can reject a mismatched combination.
func (r NotificationRule) Normalize() NotificationRule {
	r.Name = strings.TrimSpace(r.Name)
	r.Message = strings.TrimSpace(r.Message)
	r.TableName = strings.TrimSpace(r.TableName)
	return r
}
