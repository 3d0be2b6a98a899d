package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/common/logger"
	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
	"go.uber.org/zap"
)

// 会議URLが重複した場合に再生成する回数
const maxMeetingLinkAttempts = 3

// MeetingLinkGenerator は予約ごとの会議URLを生成します
type MeetingLinkGenerator interface {
	Generate() (string, error)
}

// ReminderScheduler は予約開始前のリマインドを登録・取り消しします
type ReminderScheduler interface {
	Schedule(ctx context.Context, appt model.Appointment) error
	Cancel(ctx context.Context, appointmentID string) error
}

// NanoIDLinkGenerator はbaseURLにランダムな会議コードを付与したURLを生成します
type NanoIDLinkGenerator struct {
	BaseURL string
}

func (g NanoIDLinkGenerator) Generate() (string, error) {
	code, err := utils.NewMeetingCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate meeting code: %w", err)
	}
	return strings.TrimRight(g.BaseURL, "/") + "/" + code, nil
}

type Option func(*Service)

// WithReminderScheduler はリマインドの登録先を設定します
func WithReminderScheduler(r ReminderScheduler) Option {
	return func(s *Service) { s.reminders = r }
}

// WithProfessionalMonthlyLimit は専門カウンセリングの月間上限を設定します（0は上限なし）
func WithProfessionalMonthlyLimit(limit int) Option {
	return func(s *Service) { s.monthlyLimit = limit }
}

// WithClock はテスト用に現在時刻の取得方法を差し替えます
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service は予約の作成と状態遷移を担当します
type Service struct {
	appointments repository.AppointmentRepository
	counselors   repository.CounselorRepository
	users        repository.UserRepository
	links        MeetingLinkGenerator
	reminders    ReminderScheduler
	monthlyLimit int
	now          func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	counselors repository.CounselorRepository,
	users repository.UserRepository,
	links MeetingLinkGenerator,
	opts ...Option,
) *Service {
	s := &Service{
		appointments: appointments,
		counselors:   counselors,
		users:        users,
		links:        links,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BookSlot は公開されている枠を確保して確定済みの予約を作成します
// 一致する未予約の枠がない場合はmodel.ErrSlotUnavailableを返し、何も変更しません
func (s *Service) BookSlot(ctx context.Context, clientID, counselorID string, start, end time.Time) (appt *model.Appointment, err error) {
	ctx, done := utils.BeginSubsegment(ctx, "AppointmentService.BookSlot")
	defer func() { done(err) }()

	if err := s.requireUser(ctx, clientID); err != nil {
		return nil, err
	}

	counselor, err := s.counselors.GetByID(ctx, counselorID)
	if err != nil {
		if errors.Is(err, model.ErrCounselorNotFound) {
			return nil, fmt.Errorf("%w: unknown counselor %s", model.ErrSlotUnavailable, counselorID)
		}
		return nil, err
	}

	// 専門カウンセリングの月間上限は枠の確保と同じ操作の中で確認される
	appt, err = s.createWithLink(func(candidate *model.Appointment) error {
		return s.appointments.ClaimSlot(ctx, candidate, s.monthlyLimit)
	}, model.Appointment{
		ClientID:       clientID,
		CounselorID:    counselorID,
		StartTime:      start,
		EndTime:        end,
		IsProfessional: counselor.IsProfessional,
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("client_id", appt.ClientID),
		zap.String("counselor_id", appt.CounselorID),
		zap.Time("start_time", appt.StartTime))

	if s.reminders != nil {
		if schedErr := s.reminders.Schedule(ctx, *appt); schedErr != nil {
			logger.L().Warn("failed to schedule reminder",
				zap.String("appointment_id", appt.ID), zap.Error(schedErr))
		}
	}

	return appt, nil
}

// StartImmediateCall は現在時刻から1時間の即時通話を作成します
// 公開枠は消費しないため、同時に呼ばれても全て成功します
func (s *Service) StartImmediateCall(ctx context.Context, clientID, counselorID string) (appt *model.Appointment, err error) {
	ctx, done := utils.BeginSubsegment(ctx, "AppointmentService.StartImmediateCall")
	defer func() { done(err) }()

	if err := s.requireUser(ctx, clientID); err != nil {
		return nil, err
	}

	counselor, err := s.counselors.GetByID(ctx, counselorID)
	if err != nil {
		return nil, err
	}

	start := s.now().UTC()
	appt, err = s.createWithLink(func(candidate *model.Appointment) error {
		return s.appointments.Create(ctx, candidate)
	}, model.Appointment{
		ClientID:       clientID,
		CounselorID:    counselor.ID,
		StartTime:      start,
		EndTime:        start.Add(model.ImmediateCallDuration),
		IsProfessional: counselor.IsProfessional,
		IsImmediate:    true,
	})
	if err != nil {
		return nil, err
	}

	logger.L().Info("immediate call started",
		zap.String("appointment_id", appt.ID),
		zap.String("client_id", appt.ClientID),
		zap.String("counselor_id", appt.CounselorID))

	return appt, nil
}

// createWithLink は会議URLを付与して予約を登録します
// URLが重複した場合は新しいURLで登録をやり直します
func (s *Service) createWithLink(store func(*model.Appointment) error, tmpl model.Appointment) (*model.Appointment, error) {
	var lastErr error
	for attempt := 1; attempt <= maxMeetingLinkAttempts; attempt++ {
		link, err := s.links.Generate()
		if err != nil {
			return nil, err
		}

		candidate := tmpl
		candidate.ID = utils.NewID()
		candidate.Status = model.AppointmentStatusConfirmed
		candidate.MeetingLink = &link
		candidate.CreatedAt = s.now().UTC()

		err = store(&candidate)
		if err == nil {
			return &candidate, nil
		}
		if !errors.Is(err, model.ErrDuplicateMeetingLink) {
			return nil, err
		}

		logger.L().Warn("meeting link collision, regenerating",
			zap.Int("attempt", attempt), zap.Error(err))
		lastErr = err
	}
	return nil, fmt.Errorf("failed to allocate unique meeting link after %d attempts: %w", maxMeetingLinkAttempts, lastErr)
}

// requireUser は空のIDをmodel.ErrInvalidUser、登録されていないIDをmodel.ErrUserNotFoundとして返します
func (s *Service) requireUser(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", model.ErrInvalidUser)
	}
	_, err := s.users.GetByID(ctx, userID)
	return err
}

func (s *Service) Get(ctx context.Context, id string) (*model.Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// ListByUser はクライアントとして、またはカウンセラー本人として関わる予約を開始時刻順に返します
func (s *Service) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.appointments.ListByUser(ctx, userID)
}

// Cancel は確定済みの予約をキャンセルします
// 枠の予約済みフラグは戻しません
func (s *Service) Cancel(ctx context.Context, id string) (*model.Appointment, error) {
	appt, err := s.transition(ctx, id, model.AppointmentStatusCancelled)
	if err != nil {
		return nil, err
	}

	if s.reminders != nil {
		if err := s.reminders.Cancel(ctx, id); err != nil {
			logger.L().Warn("failed to cancel reminder", zap.String("appointment_id", id), zap.Error(err))
		}
	}

	logger.L().Info("appointment cancelled", zap.String("appointment_id", id))
	return appt, nil
}

// Complete は確定済みの予約を完了にします
func (s *Service) Complete(ctx context.Context, id string) (*model.Appointment, error) {
	return s.transition(ctx, id, model.AppointmentStatusCompleted)
}

func (s *Service) transition(ctx context.Context, id string, to model.AppointmentStatus) (*model.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appt.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: appointment %s is %s", model.ErrInvalidStatusTransition, id, appt.Status)
	}

	if err := s.appointments.TransitionStatus(ctx, id, appt.Status, to); err != nil {
		return nil, err
	}

	appt.Status = to
	return appt, nil
}
