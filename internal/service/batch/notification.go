package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/common/database"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"go.uber.org/zap"
)

// NotificationBatchService は通知バッチ処理を担当します
type NotificationBatchService struct {
	args             []model.Notification
	db               *database.DB
	notificationRepo repository.NotificationRepository
	counselorRepo    repository.CounselorRepository
	cfg              *config.Config
}

// NewNotificationBatchService は新しいNotificationBatchServiceを作成します
func NewNotificationBatchService(cfg *config.Config) (*NotificationBatchService, error) {
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	repoDb := repository.NewDB(db)

	return &NotificationBatchService{
		db:               db,
		notificationRepo: repository.NewNotificationRepository(repoDb),
		counselorRepo:    repository.NewCounselorRepository(repoDb),
		cfg:              cfg,
	}, nil
}

// Close は終了処理を行います
func (s *NotificationBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SetArgs は通知バッチ処理の引数を設定します
func (s *NotificationBatchService) SetArgs(args []model.Notification) {
	s.args = args
}

// Run は通知バッチ処理を実行します
func (s *NotificationBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.Run")
	defer seg.Close(nil)

	notifications := s.args
	logger.L().Info("Starting notification batch process", zap.Int("notifications", len(notifications)))

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("notification_count", len(notifications)); err != nil {
		logger.L().Warn("Failed to add notification_count metadata", zap.Error(err))
	}

	// 処理開始時刻を記録
	startTime := time.Now()

	// カウンセラー名を取得
	counselorNameMap, err := s.getCounselorNameMap(ctx, notifications)
	if err != nil {
		seg.Close(err)
		return err
	}

	// 通知をレコードに変換
	records := make([]model.NotificationRecord, len(notifications))
	for i, notification := range notifications {
		record, err := notification.ToNotificationRecord(counselorNameMap)
		if err != nil {
			seg.Close(err)
			return err
		}
		records[i] = *record
	}

	// 通知レコードを作成
	if err := s.notificationRepo.CreateNotifications(ctx, records); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	duration := time.Since(startTime)

	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		logger.L().Warn("Failed to add duration metadata", zap.Error(err))
	}
	if err := seg.AddMetadata("counselor_count", len(counselorNameMap)); err != nil {
		logger.L().Warn("Failed to add counselor_count metadata", zap.Error(err))
	}

	logger.L().Info("Notification batch process completed successfully", zap.Duration("duration", duration))
	return nil
}

// 通知データに含まれる情報からカウンセラー名を取得する
// N+1とならないように先に重複がないカウンセラーIDを取得をしておく
// 1. 重複がないカウンセラーIDを取得
// 2. カウンセラーIDから表示名を取得してMapとして保持する
func (s *NotificationBatchService) getCounselorNameMap(ctx context.Context, notifications []model.Notification) (map[string]string, error) {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "NotificationBatchService.getCounselorNameMap")
	defer seg.Close(nil)

	counselorIDs := make([]string, 0)
	counselorNameMap := make(map[string]string)
	for _, notification := range notifications {
		// 終了通知以外はカウンセラー名を使わない
		if notification.Type != model.NotificationTypeAppointmentCompleted {
			continue
		}

		// Dataフィールドの型をチェック
		data, ok := notification.Data.(map[string]interface{})
		if !ok {
			err := fmt.Errorf("invalid notification data format")
			seg.Close(err)
			return nil, err
		}

		counselorID, ok := data["counselor_id"].(string)
		if !ok {
			err := fmt.Errorf("counselor_id is not a string")
			seg.Close(err)
			return nil, err
		}

		// counselorIDが重複している場合はスキップ
		if slices.Contains(counselorIDs, counselorID) {
			continue
		}

		counselorIDs = append(counselorIDs, counselorID)
	}

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("unique_counselor_count", len(counselorIDs)); err != nil {
		logger.L().Warn("Failed to add unique_counselor_count metadata", zap.Error(err))
	}

	// カウンセラー名を取得
	for _, counselorID := range counselorIDs {
		counselor, err := s.counselorRepo.GetByID(ctx, counselorID)
		if err != nil {
			seg.Close(err)
			return nil, err
		}
		counselorNameMap[counselorID] = counselor.DisplayName
	}

	return counselorNameMap, nil
}

// ParseNotificationInput はStep Functionsから渡された入力を通知に変換します
// 入力は完了バッチのSendTaskSuccessの出力と同じ形式です
func ParseNotificationInput(input string) ([]model.Notification, error) {
	var payload struct {
		Notifications []struct {
			Type      model.NotificationType `json:"type"`
			CreatedAt time.Time              `json:"created_at"`
			Data      struct {
				AppointmentID string    `json:"appointment_id"`
				UserID        string    `json:"user_id"`
				CounselorID   string    `json:"counselor_id"`
				DateTime      time.Time `json:"date_time"`
			} `json:"data"`
		} `json:"notifications"`
	}

	if err := json.Unmarshal([]byte(input), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse notification input: %w", err)
	}

	notifications := make([]model.Notification, len(payload.Notifications))
	for i, n := range payload.Notifications {
		event := model.AppointmentEvent{
			AppointmentID: n.Data.AppointmentID,
			UserID:        n.Data.UserID,
			CounselorID:   n.Data.CounselorID,
			DateTime:      n.Data.DateTime,
			Status:        model.AppointmentStatusCompleted,
			CreatedAt:     n.CreatedAt,
		}
		if n.Type == model.NotificationTypeAppointmentCompleted || n.Type == "" {
			notifications[i] = model.NewAppointmentCompletedNotification(event)
			continue
		}
		notifications[i] = model.Notification{
			Type:      model.NotificationTypeCommon,
			CreatedAt: n.CreatedAt,
			Data:      map[string]interface{}{"user_id": n.Data.UserID},
		}
	}

	return notifications, nil
}
