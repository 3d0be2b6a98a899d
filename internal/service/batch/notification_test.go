package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
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

// MockCounselorRepository はテスト用のモックリポジトリです
type MockCounselorRepository struct {
	getByIDCalled int
	getByIDError  error
}

func (m *MockCounselorRepository) List(ctx context.Context) ([]model.CounselorProfile, error) {
	return nil, nil
}

func (m *MockCounselorRepository) GetByID(ctx context.Context, id string) (*model.CounselorProfile, error) {
	m.getByIDCalled++
	if m.getByIDError != nil {
		return nil, m.getByIDError
	}
	return &model.CounselorProfile{ID: id, DisplayName: "TestCounselor"}, nil
}

// newTestNotificationBatchService はテスト用のNotificationBatchServiceを作成します
func newTestNotificationBatchService(mockNotificationRepo *MockNotificationRepository, mockCounselorRepo *MockCounselorRepository) *NotificationBatchService {
	return &NotificationBatchService{
		notificationRepo: mockNotificationRepo,
		counselorRepo:    mockCounselorRepo,
		cfg:              &config.Config{},
	}
}

func completedNotification(userID, counselorID string, at time.Time) model.Notification {
	return model.Notification{
		Type:      model.NotificationTypeAppointmentCompleted,
		Data:      map[string]interface{}{"user_id": userID, "counselor_id": counselorID, "date_time": at.Format(time.RFC3339)},
		CreatedAt: at,
	}
}

func TestNotificationBatchService_Run(t *testing.T) {
	// X-Rayのセグメントを設定
	ctx, seg := xray.BeginSegment(context.Background(), "TestNotificationBatchService_Run")
	defer seg.Close(nil)

	now := time.Now().UTC()
	tests := []struct {
		name              string
		notifications     []model.Notification
		mockError         error
		wantErr           bool
		wantCounselorGets int
	}{
		{
			name:          "0件の通知を正常に処理",
			notifications: []model.Notification{},
		},
		{
			name: "1件の通知を正常に処理",
			notifications: []model.Notification{
				completedNotification("user1", "counselor1", now),
			},
			wantCounselorGets: 1,
		},
		{
			name: "同じカウンセラーの通知は1回だけ取得",
			notifications: []model.Notification{
				completedNotification("user1", "counselor1", now),
				completedNotification("user2", "counselor1", now),
				completedNotification("user3", "counselor2", now),
			},
			wantCounselorGets: 2,
		},
		{
			name: "カウンセラーの取得に失敗",
			notifications: []model.Notification{
				completedNotification("user1", "counselor1", now),
			},
			mockError:         errors.New("db down"),
			wantErr:           true,
			wantCounselorGets: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockNotificationRepo := &MockNotificationRepository{}
			mockCounselorRepo := &MockCounselorRepository{
				getByIDError: tt.mockError,
			}

			service := newTestNotificationBatchService(mockNotificationRepo, mockCounselorRepo)
			service.SetArgs(tt.notifications)
			err := service.Run(ctx)
			if (err != nil) != tt.wantErr {
				t.Errorf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}

			if mockCounselorRepo.getByIDCalled != tt.wantCounselorGets {
				t.Errorf("GetByID called %d times, want %d", mockCounselorRepo.getByIDCalled, tt.wantCounselorGets)
			}

			if tt.wantErr {
				if mockNotificationRepo.createNotificationsCalled {
					t.Error("CreateNotifications should not be called on error")
				}
				return
			}

			if !mockNotificationRepo.createNotificationsCalled {
				t.Error("CreateNotifications was not called")
			}

			if len(mockNotificationRepo.notifications) != len(tt.notifications) {
				t.Errorf("Expected %d notifications, got %d", len(tt.notifications), len(mockNotificationRepo.notifications))
			}
		})
	}
}

func TestParseNotificationInput(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	output, err := buildNotificationOutput([]model.AppointmentEvent{
		{AppointmentID: "a1", UserID: "user1", CounselorID: "counselor1", DateTime: at, CreatedAt: at},
	})
	if err != nil {
		t.Fatalf("buildNotificationOutput() error = %v", err)
	}

	notifications, err := ParseNotificationInput(output)
	if err != nil {
		t.Fatalf("ParseNotificationInput() error = %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("ParseNotificationInput() returned %d notifications, want 1", len(notifications))
	}

	record, err := notifications[0].ToNotificationRecord(map[string]string{"counselor1": "佐藤"})
	if err != nil {
		t.Fatalf("ToNotificationRecord() error = %v", err)
	}
	if record.UserID != "user1" || record.Type != model.NotificationTypeAppointmentCompleted {
		t.Errorf("record = %+v", record)
	}

	if _, err := ParseNotificationInput("not json"); err == nil {
		t.Error("ParseNotificationInput() should fail for invalid json")
	}
}
