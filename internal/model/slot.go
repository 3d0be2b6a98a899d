package model

import (
	"fmt"
	"time"
)

// AvailabilitySlot はカウンセラーが公開している予約可能な時間枠です
// (CounselorID, StartTime) はストア内で一意です
type AvailabilitySlot struct {
	CounselorID string    `json:"counselor_id" db:"counselor_id"`
	StartTime   time.Time `json:"start_time" db:"start_time"`
	EndTime     time.Time `json:"end_time" db:"end_time"`
	IsBooked    bool      `json:"is_booked" db:"is_booked"`
}

// Validate は時間枠の不変条件を検証します
func (s AvailabilitySlot) Validate() error {
	if s.CounselorID == "" {
		return fmt.Errorf("%w: counselor id is required", ErrInvalidSlot)
	}
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidSlot)
	}
	if !s.StartTime.Before(s.EndTime) {
		return fmt.Errorf("%w: start %s must be before end %s", ErrInvalidSlot,
			s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339))
	}
	return nil
}

// Matches は同じカウンセラー・同じ時間帯の枠かどうかを返します
func (s AvailabilitySlot) Matches(counselorID string, start, end time.Time) bool {
	return s.CounselorID == counselorID && s.StartTime.Equal(start) && s.EndTime.Equal(end)
}

// SlotFilter は空き枠検索の条件です。nilの項目は絞り込みに使いません
type SlotFilter struct {
	CounselorID *string
	RangeStart  *time.Time
	RangeEnd    *time.Time
}

// Empty は範囲指定が逆転していて結果が必ず空になるかどうかを返します
func (f SlotFilter) Empty() bool {
	return f.RangeStart != nil && f.RangeEnd != nil && f.RangeStart.After(*f.RangeEnd)
}

// Accepts は未予約の枠がこの条件に一致するかどうかを返します
func (f SlotFilter) Accepts(s AvailabilitySlot) bool {
	if s.IsBooked {
		return false
	}
	if f.CounselorID != nil && s.CounselorID != *f.CounselorID {
		return false
	}
	if f.RangeStart != nil && s.StartTime.Before(*f.RangeStart) {
		return false
	}
	if f.RangeEnd != nil && s.StartTime.After(*f.RangeEnd) {
		return false
	}
	return true
}
