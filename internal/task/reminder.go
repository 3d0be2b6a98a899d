// Package task は非同期タスク（asynq）の定義とハンドラです
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"go.uber.org/zap"
)

const (
	TypeAppointmentReminder = "appointment:reminder"

	reminderQueue    = "default"
	reminderMaxRetry = 3
)

type ReminderPayload struct {
	AppointmentID string    `json:"appointment_id"`
	ClientID      string    `json:"client_id"`
	CounselorID   string    `json:"counselor_id"`
	StartTime     time.Time `json:"start_time"`
}

func reminderTaskID(appointmentID string) string {
	return "reminder:" + appointmentID
}

// NewAppointmentReminderTask は予約開始のlead前に実行されるリマインドタスクを作成します
// 予約ごとにタスクIDを固定し、同じ予約への二重登録を防ぎます
func NewAppointmentReminderTask(appt model.Appointment, lead time.Duration) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ReminderPayload{
		AppointmentID: appt.ID,
		ClientID:      appt.ClientID,
		CounselorID:   appt.CounselorID,
		StartTime:     appt.StartTime,
	})
	if err != nil {
		return nil, nil, err
	}

	task := asynq.NewTask(TypeAppointmentReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(appt.StartTime.Add(-lead)),
		asynq.TaskID(reminderTaskID(appt.ID)),
		asynq.Queue(reminderQueue),
		asynq.MaxRetry(reminderMaxRetry),
	}
	return task, opts, nil
}

// Scheduler はリマインドタスクをRedisに登録・削除します
type Scheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	lead      time.Duration
}

func NewScheduler(redisOpt asynq.RedisClientOpt, lead time.Duration) *Scheduler {
	return &Scheduler{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		lead:      lead,
	}
}

func (s *Scheduler) Schedule(ctx context.Context, appt model.Appointment) error {
	task, opts, err := NewAppointmentReminderTask(appt, s.lead)
	if err != nil {
		return fmt.Errorf("failed to create reminder task: %w", err)
	}

	info, err := s.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("failed to enqueue reminder task: %w", err)
	}

	logger.L().Debug("reminder scheduled",
		zap.String("task_id", info.ID),
		zap.Time("process_at", info.NextProcessAt))
	return nil
}

// Cancel は未実行のリマインドタスクを削除します。タスクがない場合は何もしません
func (s *Scheduler) Cancel(ctx context.Context, appointmentID string) error {
	err := s.inspector.DeleteTask(reminderQueue, reminderTaskID(appointmentID))
	if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
		return fmt.Errorf("failed to delete reminder task: %w", err)
	}
	return nil
}

func (s *Scheduler) Close() error {
	return utils.FirstError(s.client.Close(), s.inspector.Close())
}

// ReminderHandler はリマインドタスクを通知レコードに変換して保存します
type ReminderHandler struct {
	appointments  repository.AppointmentRepository
	notifications repository.NotificationRepository
}

func NewReminderHandler(appointments repository.AppointmentRepository, notifications repository.NotificationRepository) *ReminderHandler {
	return &ReminderHandler{appointments: appointments, notifications: notifications}
}

func (h *ReminderHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReminderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid reminder payload: %v: %w", err, asynq.SkipRetry)
	}

	log := logger.L().With(zap.String("appointment_id", p.AppointmentID))

	appt, err := h.appointments.GetByID(ctx, p.AppointmentID)
	if err != nil {
		if errors.Is(err, model.ErrAppointmentNotFound) {
			log.Warn("reminder for unknown appointment skipped")
			return nil
		}
		return err
	}

	// キャンセル後にタスクの削除が間に合わなかった場合
	if appt.Status != model.AppointmentStatusConfirmed {
		log.Info("reminder skipped", zap.String("status", string(appt.Status)))
		return nil
	}

	link := ""
	if appt.MeetingLink != nil {
		link = *appt.MeetingLink
	}
	record := model.NewAppointmentReminderRecord(model.NewAppointmentEvent(*appt), link)

	if err := h.notifications.CreateNotifications(ctx, []model.NotificationRecord{record}); err != nil {
		return fmt.Errorf("failed to create reminder notification: %w", err)
	}

	log.Info("reminder notification created", zap.String("user_id", record.UserID))
	return nil
}
