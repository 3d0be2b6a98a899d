package model

import (
	"errors"
	"testing"
	"time"
)

func TestAppointmentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{name: "pendingからconfirmed", from: AppointmentStatusPending, to: AppointmentStatusConfirmed, want: true},
		{name: "pendingからcancelled", from: AppointmentStatusPending, to: AppointmentStatusCancelled, want: true},
		{name: "confirmedからcompleted", from: AppointmentStatusConfirmed, to: AppointmentStatusCompleted, want: true},
		{name: "confirmedからcancelled", from: AppointmentStatusConfirmed, to: AppointmentStatusCancelled, want: true},
		{name: "confirmedからpendingには戻れない", from: AppointmentStatusConfirmed, to: AppointmentStatusPending, want: false},
		{name: "completedは終端", from: AppointmentStatusCompleted, to: AppointmentStatusCancelled, want: false},
		{name: "cancelledは終端", from: AppointmentStatusCancelled, to: AppointmentStatusConfirmed, want: false},
		{name: "pendingからcompletedは飛ばせない", from: AppointmentStatusPending, to: AppointmentStatusCompleted, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("%s.CanTransitionTo(%s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAppointmentStatus_IsTerminal(t *testing.T) {
	for _, s := range []AppointmentStatus{AppointmentStatusCompleted, AppointmentStatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = false, want true", s)
		}
	}
	for _, s := range []AppointmentStatus{AppointmentStatusPending, AppointmentStatusConfirmed} {
		if s.IsTerminal() {
			t.Errorf("%s.IsTerminal() = true, want false", s)
		}
	}
	if AppointmentStatus("unknown").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestAppointment_CountsTowardQuota(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		appt  Appointment
		year  int
		month time.Month
		want  bool
	}{
		{
			name:  "同月の専門カウンセリング",
			appt:  Appointment{StartTime: start, Status: AppointmentStatusConfirmed, IsProfessional: true},
			year:  2025,
			month: time.March,
			want:  true,
		},
		{
			name:  "キャンセル済みは数えない",
			appt:  Appointment{StartTime: start, Status: AppointmentStatusCancelled, IsProfessional: true},
			year:  2025,
			month: time.March,
			want:  false,
		},
		{
			name:  "ピアカウンセリングは数えない",
			appt:  Appointment{StartTime: start, Status: AppointmentStatusConfirmed},
			year:  2025,
			month: time.March,
			want:  false,
		},
		{
			name:  "別の月は数えない",
			appt:  Appointment{StartTime: start, Status: AppointmentStatusCompleted, IsProfessional: true},
			year:  2025,
			month: time.April,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appt.CountsTowardQuota(tt.year, tt.month); got != tt.want {
				t.Errorf("CountsTowardQuota() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckProfessionalQuota(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		limit   int
		wantErr bool
	}{
		{name: "上限未満", count: 3, limit: 4},
		{name: "上限に達している", count: 4, limit: 4, wantErr: true},
		{name: "上限を超えている", count: 5, limit: 4, wantErr: true},
		{name: "上限0は無制限", count: 100, limit: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckProfessionalQuota(tt.count, tt.limit, 2025, time.June)
			if tt.wantErr != errors.Is(err, ErrProfessionalQuotaExceeded) {
				t.Errorf("CheckProfessionalQuota() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("CheckProfessionalQuota() unexpected error = %v", err)
			}
		})
	}
}

func TestNewAppointmentEvent(t *testing.T) {
	now := time.Now()
	appt := Appointment{
		ID:          "a1",
		ClientID:    "user1",
		CounselorID: "c1",
		StartTime:   now,
		EndTime:     now.Add(time.Hour),
		Status:      AppointmentStatusCompleted,
		CreatedAt:   now,
	}

	event := NewAppointmentEvent(appt)

	if event.AppointmentID != "a1" {
		t.Errorf("AppointmentEvent.AppointmentID = %v, want %v", event.AppointmentID, "a1")
	}
	if event.UserID != "user1" {
		t.Errorf("AppointmentEvent.UserID = %v, want %v", event.UserID, "user1")
	}
	if !event.DateTime.Equal(now) {
		t.Errorf("AppointmentEvent.DateTime = %v, want %v", event.DateTime, now)
	}
	if event.Status != AppointmentStatusCompleted {
		t.Errorf("AppointmentEvent.Status = %v, want %v", event.Status, AppointmentStatusCompleted)
	}
}
