package model

import "errors"

// 呼び出し側の入力や状態の競合を表すエラーです
// いずれもプロセスを停止させるものではなく、呼び出し元でメッセージに変換されます
var (
	ErrSlotUnavailable           = errors.New("slot unavailable")
	ErrCounselorNotFound         = errors.New("counselor not found")
	ErrUnknownUser               = errors.New("no screening result for user")
	ErrIncompleteSubmission      = errors.New("incomplete screening submission")
	ErrAppointmentNotFound       = errors.New("appointment not found")
	ErrUserNotFound              = errors.New("user not found")
	ErrInvalidStatusTransition   = errors.New("invalid appointment status transition")
	ErrProfessionalQuotaExceeded = errors.New("monthly limit for professional counseling sessions reached")
	ErrDuplicateMeetingLink      = errors.New("meeting link already in use")
	ErrInvalidSlot               = errors.New("invalid slot")
	ErrInvalidUser               = errors.New("invalid user")
	ErrNotificationNotFound      = errors.New("notification not found")
)
