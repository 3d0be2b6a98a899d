package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/common/config"
	"github.com/uma-arai/sbcntr-counseling/internal/common/database"
	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"go.uber.org/zap"
)

// SFNClient はバッチが利用するStep Functions APIです
type SFNClient interface {
	SendTaskSuccess(ctx context.Context, params *sfn.SendTaskSuccessInput, optFns ...func(*sfn.Options)) (*sfn.SendTaskSuccessOutput, error)
}

// CompletionBatchService は終了時刻を過ぎた予約を完了にするバッチ処理を担当します
type CompletionBatchService struct {
	db              *database.DB
	appointmentRepo repository.AppointmentRepository
	sfnClient       SFNClient
	cfg             *config.Config
	now             func() time.Time
}

// NewCompletionBatchService は新しいCompletionBatchServiceを作成します
func NewCompletionBatchService(cfg *config.Config, sfnClient SFNClient) (*CompletionBatchService, error) {
	db, err := database.NewDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	return &CompletionBatchService{
		db:              db,
		appointmentRepo: repository.NewAppointmentRepository(repository.NewDB(db)),
		sfnClient:       sfnClient,
		cfg:             cfg,
		now:             time.Now,
	}, nil
}

// Close は終了処理を行います
func (s *CompletionBatchService) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run は完了バッチ処理を実行します
func (s *CompletionBatchService) Run(ctx context.Context) error {
	// X-Rayセグメントの作成
	ctx, seg := xray.BeginSubsegment(ctx, "CompletionBatchService.Run")
	defer seg.Close(nil)

	startTime := s.now()

	events, err := s.completeEndedAppointments(ctx, startTime)
	if err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to complete appointments: %w", err))
	}

	// イベントを発行
	if err := s.sendTaskSuccess(ctx, events); err != nil {
		return utils.GetStackWithError(fmt.Errorf("failed to send task success: %w", err))
	}

	duration := s.now().Sub(startTime)

	// セグメントにメタデータを追加
	if err := seg.AddMetadata("duration", duration.String()); err != nil {
		logger.L().Warn("Failed to add duration metadata", zap.Error(err))
	}
	if err := seg.AddMetadata("completed_count", len(events)); err != nil {
		logger.L().Warn("Failed to add completed_count metadata", zap.Error(err))
	}

	logger.L().Info("Completion batch process completed successfully",
		zap.Int("completed", len(events)),
		zap.Duration("duration", duration))
	return nil
}

// completeEndedAppointments は終了時刻を過ぎた確定済みの予約を1件ずつ完了にします
// 更新に失敗した予約はスキップし、次回のバッチで再度対象になります
func (s *CompletionBatchService) completeEndedAppointments(ctx context.Context, now time.Time) ([]model.AppointmentEvent, error) {
	appointments, err := s.appointmentRepo.GetAppointmentsToComplete(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to get appointments to complete: %w", err)
	}

	logger.L().Info("Found appointments to complete", zap.Int("count", len(appointments)))

	events := make([]model.AppointmentEvent, 0, len(appointments))
	for _, appt := range appointments {
		err := s.appointmentRepo.TransitionStatus(ctx, appt.ID,
			model.AppointmentStatusConfirmed, model.AppointmentStatusCompleted)
		if err != nil {
			logger.L().Warn("Failed to complete appointment",
				zap.String("appointment_id", appt.ID), zap.Error(err))
			continue
		}

		appt.Status = model.AppointmentStatusCompleted
		event := model.NewAppointmentEvent(appt)
		event.CreatedAt = now
		events = append(events, event)
	}

	return events, nil
}

// sendTaskSuccess は、Step Functionsのタスク成功を通知し、終了通知を出力として渡します
func (s *CompletionBatchService) sendTaskSuccess(ctx context.Context, events []model.AppointmentEvent) error {
	// ローカルの場合はStep Functionsの処理をスキップ
	if s.cfg.IsLocal() || s.sfnClient == nil {
		logger.L().Info("Local environment detected. Skipping Step Functions task success notification")
		return nil
	}

	output, err := buildNotificationOutput(events)
	if err != nil {
		return err
	}

	// タスクトークンを設定から取得
	taskToken := s.cfg.SFN.TaskToken
	if taskToken == "" {
		return fmt.Errorf("SFN_TASK_TOKEN is not set in config")
	}

	// SendTaskSuccess APIを呼び出す
	input := &sfn.SendTaskSuccessInput{
		TaskToken: aws.String(taskToken),
		Output:    aws.String(output),
	}

	if _, err := s.sfnClient.SendTaskSuccess(ctx, input); err != nil {
		return fmt.Errorf("failed to send task success: %w", err)
	}

	logger.L().Info("Successfully sent task success", zap.Int("notifications", len(events)))
	return nil
}

// buildNotificationOutput は通知バッチの入力となるJSONを作成します
func buildNotificationOutput(events []model.AppointmentEvent) (string, error) {
	notifications := make([]model.Notification, len(events))
	for i, event := range events {
		notifications[i] = model.NewAppointmentCompletedNotification(event)
	}

	output, err := json.Marshal(map[string]any{
		"notifications": notifications,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal notifications: %w", err)
	}
	return string(output), nil
}
