package queue

import (
	"fmt"
	"strings"
	"time"
)

type TaskType string

const (
	TaskTypeBookingConfirmation TaskType = "sms_booking_confirmation"
	TaskTypeBookingCancellation TaskType = "sms_booking_cancellation"
	TaskTypeResultNotification  TaskType = "sms_result_notification"
	TaskTypeOTP                 TaskType = "sms_otp"
)

// Task represents a unit of notification work in the queue.
type Task struct {
	ID         string                 `json:"id"`
	Type       TaskType               `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Attempts   int                    `json:"attempts"`
	MaxRetries int                    `json:"max_retries"`
}

// Validate checks if the task is valid
func (t *Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("task ID is required")
	}
	if strings.TrimSpace(string(t.Type)) == "" {
		return fmt.Errorf("task type is required")
	}
	if t.Data == nil {
		t.Data = make(map[string]interface{})
	}
	return nil
}

// GetString returns a string value from task data
func (t *Task) GetString(key string) string {
	if val, ok := t.Data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
