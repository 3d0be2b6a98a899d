package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository/memory"
)

func TestService_ListCounselorAvailability(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	if err := store.Seed(memory.Fixtures{
		Counselors: []model.CounselorProfile{
			{ID: "c1", DisplayName: "佐藤", Specialties: []model.Specialty{model.SpecialtyGeneral}},
			{ID: "c2", DisplayName: "田中", Specialties: []model.Specialty{model.SpecialtyAnxiety}},
		},
		Slots: []model.AvailabilitySlot{
			{CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour)},
			{CounselorID: "c1", StartTime: base.Add(24 * time.Hour), EndTime: base.Add(25 * time.Hour)},
			{CounselorID: "c2", StartTime: base, EndTime: base.Add(time.Hour)},
		},
	}); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	service := NewService(store.Slots(), store.Counselors())

	dayEnd := base.Add(12 * time.Hour)
	before := base.Add(-time.Hour)

	tests := []struct {
		name        string
		counselorID string
		start, end  *time.Time
		wantCount   int
		wantErr     error
	}{
		{name: "期間指定なし", counselorID: "c1", wantCount: 2},
		{name: "期間で絞り込み", counselorID: "c1", start: &base, end: &dayEnd, wantCount: 1},
		{name: "期間が逆転", counselorID: "c1", start: &base, end: &before, wantCount: 0},
		{name: "枠がないカウンセラー", counselorID: "c2", start: &dayEnd, wantCount: 0},
		{name: "存在しないカウンセラー", counselorID: "unknown", wantErr: model.ErrCounselorNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := service.ListCounselorAvailability(ctx, tt.counselorID, tt.start, tt.end)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ListCounselorAvailability() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ListCounselorAvailability() error = %v", err)
			}
			if len(slots) != tt.wantCount {
				t.Errorf("ListCounselorAvailability() returned %d slots, want %d", len(slots), tt.wantCount)
			}
			for _, s := range slots {
				if s.CounselorID != tt.counselorID {
					t.Errorf("slot of %s returned for %s", s.CounselorID, tt.counselorID)
				}
			}
		})
	}
}
