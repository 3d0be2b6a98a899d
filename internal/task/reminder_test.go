package task

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository/memory"
)

// MockNotificationRepository はテスト用のモックリポジトリです
type MockNotificationRepository struct {
	createNotificationsCalled bool
	createNotificationsError  error
	notifications             []model.NotificationRecord
}

func (m *MockNotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	m.createNotificationsCalled = true
	m.notifications = records
	return m.createNotificationsError
}

func (m *MockNotificationRepository) GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	return nil, nil
}

func (m *MockNotificationRepository) MarkRead(ctx context.Context, id int) error {
	return nil
}

func TestNewAppointmentReminderTask(t *testing.T) {
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	appt := model.Appointment{ID: "a1", ClientID: "u1", CounselorID: "c1", StartTime: start}

	task, opts, err := NewAppointmentReminderTask(appt, 30*time.Minute)
	if err != nil {
		t.Fatalf("NewAppointmentReminderTask() error = %v", err)
	}
	if task.Type() != TypeAppointmentReminder {
		t.Errorf("Type() = %v, want %v", task.Type(), TypeAppointmentReminder)
	}

	var p ReminderPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if p.AppointmentID != "a1" || !p.StartTime.Equal(start) {
		t.Errorf("payload = %+v", p)
	}

	var (
		processAt time.Time
		taskID    string
	)
	for _, opt := range opts {
		switch opt.Type() {
		case asynq.ProcessAtOpt:
			processAt = opt.Value().(time.Time)
		case asynq.TaskIDOpt:
			taskID = opt.Value().(string)
		}
	}
	if !processAt.Equal(start.Add(-30 * time.Minute)) {
		t.Errorf("ProcessAt = %v, want %v", processAt, start.Add(-30*time.Minute))
	}
	if taskID != "reminder:a1" {
		t.Errorf("TaskID = %v, want reminder:a1", taskID)
	}
}

func TestReminderHandler_ProcessTask(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	link := "https://meet.google.com/abcd-efgh-ijkm-npqr"

	tests := []struct {
		name       string
		stored     *model.Appointment
		payload    []byte
		repoErr    error
		wantCreate bool
		wantErr    bool
	}{
		{
			name:       "確定済みの予約はリマインド通知を作成",
			stored:     &model.Appointment{ID: "a1", ClientID: "u1", CounselorID: "c1", StartTime: start, Status: model.AppointmentStatusConfirmed, MeetingLink: &link},
			wantCreate: true,
		},
		{
			name:   "キャンセル済みの予約はスキップ",
			stored: &model.Appointment{ID: "a1", ClientID: "u1", CounselorID: "c1", StartTime: start, Status: model.AppointmentStatusCancelled},
		},
		{
			name: "存在しない予約はスキップ",
		},
		{
			name:    "不正なペイロードはリトライしない",
			payload: []byte("{"),
			wantErr: true,
		},
		{
			name:       "通知の保存に失敗した場合はエラー",
			stored:     &model.Appointment{ID: "a1", ClientID: "u1", CounselorID: "c1", StartTime: start, Status: model.AppointmentStatusConfirmed},
			repoErr:    errors.New("db down"),
			wantCreate: true,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewStore()
			if tt.stored != nil {
				if err := store.Appointments().Create(ctx, tt.stored); err != nil {
					t.Fatalf("Create() error = %v", err)
				}
			}
			notifications := &MockNotificationRepository{createNotificationsError: tt.repoErr}
			handler := NewReminderHandler(store.Appointments(), notifications)

			payload := tt.payload
			if payload == nil {
				payload, _ = json.Marshal(ReminderPayload{AppointmentID: "a1", ClientID: "u1", CounselorID: "c1", StartTime: start})
			}

			err := handler.ProcessTask(ctx, asynq.NewTask(TypeAppointmentReminder, payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessTask() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.payload != nil && !errors.Is(err, asynq.SkipRetry) {
				t.Errorf("ProcessTask() error = %v, want SkipRetry", err)
			}
			if notifications.createNotificationsCalled != tt.wantCreate {
				t.Fatalf("CreateNotifications called = %v, want %v", notifications.createNotificationsCalled, tt.wantCreate)
			}
			if !tt.wantCreate || tt.wantErr {
				return
			}

			record := notifications.notifications[0]
			if record.UserID != "u1" || record.Type != model.NotificationTypeAppointmentReminder {
				t.Errorf("record = %+v", record)
			}
			if !strings.Contains(record.Message, link) {
				t.Errorf("Message should contain meeting link: %v", record.Message)
			}
		})
	}
}
