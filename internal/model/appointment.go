package model

import (
	"fmt"
	"time"
)

// ImmediateCallDuration は即時通話の予約枠の長さです
const ImmediateCallDuration = time.Hour

// AppointmentStatus は予約のステータスです
// PENDING → CONFIRMED → COMPLETED、CONFIRMED → CANCELLED の順に遷移します
type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentStatusPending:   {AppointmentStatusConfirmed, AppointmentStatusCancelled},
	AppointmentStatusConfirmed: {AppointmentStatusCompleted, AppointmentStatusCancelled},
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed, AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// IsTerminal は以降の遷移がないステータスかどうかを返します
func (s AppointmentStatus) IsTerminal() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled
}

// CanTransitionTo は next への遷移が許可されているかどうかを返します
func (s AppointmentStatus) CanTransitionTo(next AppointmentStatus) bool {
	for _, to := range appointmentTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID             string            `json:"id" db:"id"`
	ClientID       string            `json:"client_id" db:"client_id"`
	CounselorID    string            `json:"counselor_id" db:"counselor_id"`
	StartTime      time.Time         `json:"start_time" db:"start_time"`
	EndTime        time.Time         `json:"end_time" db:"end_time"`
	Status         AppointmentStatus `json:"status" db:"status"`
	MeetingLink    *string           `json:"meeting_link,omitempty" db:"meeting_link"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	IsProfessional bool              `json:"is_professional" db:"is_professional"`
	// 即時通話の場合はtrue（公開枠を消費しない）
	IsImmediate bool `json:"is_immediate" db:"is_immediate"`
}

// CountsTowardQuota は月あたりの専門カウンセリング上限に数える予約かどうかを返します（月はUTCで判定）
func (a Appointment) CountsTowardQuota(year int, month time.Month) bool {
	if !a.IsProfessional || a.Status == AppointmentStatusCancelled {
		return false
	}
	y, m, _ := a.StartTime.UTC().Date()
	return y == year && m == month
}

// CheckProfessionalQuota は同じ月の件数が上限に達している場合にErrProfessionalQuotaExceededを返します
// limitが0以下の場合は上限なしです
func CheckProfessionalQuota(count, limit int, year int, month time.Month) error {
	if limit > 0 && count >= limit {
		return fmt.Errorf("%w: %d of %d used in %04d-%02d", ErrProfessionalQuotaExceeded, count, limit, year, month)
	}
	return nil
}

// AppointmentEvent は予約のステータス変更時に発行されるイベントの構造体
type AppointmentEvent struct {
	AppointmentID string            `json:"appointment_id"`
	UserID        string            `json:"user_id"`
	CounselorID   string            `json:"counselor_id"`
	DateTime      time.Time         `json:"date_time"`
	Status        AppointmentStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewAppointmentEvent は予約からイベントを作成します
func NewAppointmentEvent(a Appointment) AppointmentEvent {
	return AppointmentEvent{
		AppointmentID: a.ID,
		UserID:        a.ClientID,
		CounselorID:   a.CounselorID,
		DateTime:      a.StartTime,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
}
