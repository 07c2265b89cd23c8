package worker

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rosehq/screening-backend/pkg/queue"
	"github.com/rosehq/screening-backend/pkg/sms"
)

// NotifyWorker drains the notification queue and delivers each task
// through the SMS gateway.
type NotifyWorker struct {
	queue queue.Queue
	sms   *sms.Client
}

func NewNotifyWorker(q queue.Queue, smsClient *sms.Client) *NotifyWorker {
	return &NotifyWorker{
		queue: q,
		sms:   smsClient,
	}
}

func (w *NotifyWorker) Start(ctx context.Context) {
	logrus.Info("Notification worker started")

	if err := w.queue.Subscribe(ctx, w.handleTask); err != nil && ctx.Err() == nil {
		logrus.Errorf("Notification worker exited: %v", err)
	}
}

func (w *NotifyWorker) handleTask(task *queue.Task) error {
	phone := task.GetString("phone")
	if phone == "" {
		// No recipient means the task can never succeed; do not retry.
		logrus.WithField("task_id", task.ID).Error("Notification task has no phone, dropping")
		return nil
	}

	switch task.Type {
	case queue.TaskTypeBookingConfirmation:
		details := sms.BookingDetails{
			EventName: task.GetString("event_name"),
			Date:      task.GetString("event_date"),
			Time:      task.GetString("time_slot"),
			Reference: task.GetString("reference"),
		}
		return w.sms.SendBookingConfirmation(phone, details)

	case queue.TaskTypeBookingCancellation:
		return w.sms.SendBookingCancellation(phone, task.GetString("reference"))

	case queue.TaskTypeResultNotification:
		details := sms.ResultDetails{
			ParticipantName: task.GetString("name"),
			EventName:       task.GetString("event_name"),
		}
		return w.sms.SendResultNotification(phone, details)

	case queue.TaskTypeOTP:
		return w.sms.SendOTP(phone, task.GetString("code"))

	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}
