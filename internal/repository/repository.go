package repository

import (
	"context"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

// SlotRepository は予約可能な時間枠を保持します
// 予約済みフラグの更新はAppointmentRepository.ClaimSlot経由でのみ行われます
type SlotRepository interface {
	ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailabilitySlot, error)
}

// AppointmentRepository は予約の永続化を担当するインターフェースです
type AppointmentRepository interface {
	// ClaimSlot は (CounselorID, StartTime, EndTime) に一致する未予約枠を予約済みにし、
	// 同じ操作の中で予約を登録します。枠が取れない場合はmodel.ErrSlotUnavailableを返し、何も変更しません
	// professionalLimitが正で専門カウンセリングの予約の場合、同じ操作の中で月間上限も確認し、
	// 上限に達していればmodel.ErrProfessionalQuotaExceededを返します
	ClaimSlot(ctx context.Context, appt *model.Appointment, professionalLimit int) error
	// Create は枠を消費しない予約（即時通話）を登録します
	Create(ctx context.Context, appt *model.Appointment) error
	GetByID(ctx context.Context, id string) (*model.Appointment, error)
	ListByUser(ctx context.Context, userID string) ([]model.Appointment, error)
	TransitionStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error
	GetAppointmentsToComplete(ctx context.Context, endedBefore time.Time) ([]model.Appointment, error)
}

// CounselorRepository はカウンセラープロフィールを参照します
type CounselorRepository interface {
	List(ctx context.Context) ([]model.CounselorProfile, error)
	GetByID(ctx context.Context, id string) (*model.CounselorProfile, error)
}

// UserRepository はユーザーを管理します
type UserRepository interface {
	List(ctx context.Context) ([]model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

// ScreeningRepository はスクリーニング結果を保持します
type ScreeningRepository interface {
	Create(ctx context.Context, result *model.ScreeningResult) error
	// LatestByUser は最新の結果を返します。結果がない場合はmodel.ErrUnknownUserです
	LatestByUser(ctx context.Context, userID string) (*model.ScreeningResult, error)
}
