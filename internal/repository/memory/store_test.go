package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

var base = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newSeededStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore()
	err := store.Seed(Fixtures{
		Counselors: []model.CounselorProfile{
			{ID: "c1", UserID: "u-c1", DisplayName: "佐藤", Specialties: []model.Specialty{model.SpecialtyGeneral}},
			{ID: "c2", UserID: "u-c2", DisplayName: "田中", Specialties: []model.Specialty{model.SpecialtyStress}, IsProfessional: true},
		},
		Slots: []model.AvailabilitySlot{
			{CounselorID: "c2", StartTime: base, EndTime: base.Add(time.Hour)},
			{CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour)},
			{CounselorID: "c1", StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour)},
			{CounselorID: "c1", StartTime: base.Add(4 * time.Hour), EndTime: base.Add(5 * time.Hour), IsBooked: true},
		},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return store
}

func TestStore_Seed(t *testing.T) {
	tests := []struct {
		name    string
		slots   []model.AvailabilitySlot
		wantErr error
	}{
		{
			name: "正常な枠を投入",
			slots: []model.AvailabilitySlot{
				{CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour)},
			},
		},
		{
			name: "同じカウンセラー・開始時刻の枠は重複エラー",
			slots: []model.AvailabilitySlot{
				{CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour)},
				{CounselorID: "c1", StartTime: base, EndTime: base.Add(30 * time.Minute)},
			},
			wantErr: model.ErrInvalidSlot,
		},
		{
			name: "終了が開始より前の枠はエラー",
			slots: []model.AvailabilitySlot{
				{CounselorID: "c1", StartTime: base, EndTime: base.Add(-time.Hour)},
			},
			wantErr: model.ErrInvalidSlot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStore().Seed(Fixtures{Slots: tt.slots})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Seed() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Seed() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSlotRepository_ListAvailable(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)

	c1 := "c1"
	later := base.Add(time.Hour)
	earlier := base.Add(-time.Hour)

	tests := []struct {
		name   string
		filter model.SlotFilter
		want   []string
	}{
		{
			name:   "条件なしは未予約の全枠を開始時刻・カウンセラー順で返す",
			filter: model.SlotFilter{},
			want:   []string{"c1@0", "c2@0", "c1@2"},
		},
		{
			name:   "カウンセラーで絞り込み",
			filter: model.SlotFilter{CounselorID: &c1},
			want:   []string{"c1@0", "c1@2"},
		},
		{
			name:   "開始時刻の下限",
			filter: model.SlotFilter{RangeStart: &later},
			want:   []string{"c1@2"},
		},
		{
			name:   "範囲の境界は含む",
			filter: model.SlotFilter{RangeStart: &base, RangeEnd: &base},
			want:   []string{"c1@0", "c2@0"},
		},
		{
			name:   "範囲が逆転している場合は空",
			filter: model.SlotFilter{RangeStart: &base, RangeEnd: &earlier},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := store.Slots().ListAvailable(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListAvailable() error = %v", err)
			}
			if slots == nil {
				t.Fatal("ListAvailable() returned nil slice")
			}

			got := make([]string, len(slots))
			for i, s := range slots {
				got[i] = fmt.Sprintf("%s@%d", s.CounselorID, int(s.StartTime.Sub(base).Hours()))
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListAvailable() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ListAvailable()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestAppointmentRepository_ClaimSlot(t *testing.T) {
	ctx := context.Background()

	link := func(s string) *string { return &s }

	tests := []struct {
		name    string
		appt    model.Appointment
		wantErr error
	}{
		{
			name: "一致する未予約枠を確保",
			appt: model.Appointment{ID: "a1", CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour), MeetingLink: link("https://meet.example/x")},
		},
		{
			name:    "終了時刻が一致しない",
			appt:    model.Appointment{ID: "a1", CounselorID: "c1", StartTime: base, EndTime: base.Add(30 * time.Minute)},
			wantErr: model.ErrSlotUnavailable,
		},
		{
			name:    "予約済みの枠",
			appt:    model.Appointment{ID: "a1", CounselorID: "c1", StartTime: base.Add(4 * time.Hour), EndTime: base.Add(5 * time.Hour)},
			wantErr: model.ErrSlotUnavailable,
		},
		{
			name:    "存在しないカウンセラー",
			appt:    model.Appointment{ID: "a1", CounselorID: "unknown", StartTime: base, EndTime: base.Add(time.Hour)},
			wantErr: model.ErrSlotUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSeededStore(t)
			repo := store.Appointments()

			err := repo.ClaimSlot(ctx, &tt.appt, 0)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ClaimSlot() error = %v, want %v", err, tt.wantErr)
				}
				if _, err := repo.GetByID(ctx, tt.appt.ID); !errors.Is(err, model.ErrAppointmentNotFound) {
					t.Errorf("appointment should not be stored on failure, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ClaimSlot() error = %v", err)
			}

			slots, _ := store.Slots().ListAvailable(ctx, model.SlotFilter{})
			for _, s := range slots {
				if s.Matches(tt.appt.CounselorID, tt.appt.StartTime, tt.appt.EndTime) {
					t.Error("claimed slot is still listed as available")
				}
			}
		})
	}
}

func TestAppointmentRepository_ClaimSlot_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	repo := store.Appointments()

	const n = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			appt := &model.Appointment{
				ID:          fmt.Sprintf("a%d", i),
				CounselorID: "c1",
				StartTime:   base,
				EndTime:     base.Add(time.Hour),
			}
			err := repo.ClaimSlot(ctx, appt, 0)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrSlotUnavailable):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want 1", succeeded)
	}
	if rejected != n-1 {
		t.Errorf("rejected = %d, want %d", rejected, n-1)
	}
}

func TestStore_MarkSlotBookedLocked(t *testing.T) {
	tests := []struct {
		name        string
		counselorID string
		start       time.Time
		end         time.Time
		wantErr     error
	}{
		{name: "未予約の枠を予約済みにする", counselorID: "c1", start: base, end: base.Add(time.Hour)},
		{name: "予約済みの枠", counselorID: "c1", start: base.Add(4 * time.Hour), end: base.Add(5 * time.Hour), wantErr: model.ErrSlotUnavailable},
		{name: "終了時刻が一致しない", counselorID: "c1", start: base, end: base.Add(90 * time.Minute), wantErr: model.ErrSlotUnavailable},
		{name: "存在しない枠", counselorID: "c1", start: base.Add(time.Hour), end: base.Add(2 * time.Hour), wantErr: model.ErrSlotUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSeededStore(t)

			store.mu.Lock()
			err := store.markSlotBookedLocked(tt.counselorID, tt.start, tt.end)
			store.mu.Unlock()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("markSlotBookedLocked() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("markSlotBookedLocked() error = %v", err)
			}
			if slot := store.slots[keyOf(tt.counselorID, tt.start)]; !slot.IsBooked {
				t.Error("slot should be booked")
			}

			// 2回目は確保できない
			store.mu.Lock()
			err = store.markSlotBookedLocked(tt.counselorID, tt.start, tt.end)
			store.mu.Unlock()
			if !errors.Is(err, model.ErrSlotUnavailable) {
				t.Errorf("second markSlotBookedLocked() error = %v, want %v", err, model.ErrSlotUnavailable)
			}
		})
	}
}

func TestAppointmentRepository_ClaimSlot_ProfessionalQuota(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	// 専門カウンセラーの同じ月の枠を5つ用意し、上限2で同時に確保する
	counselor := model.CounselorProfile{ID: "pro", DisplayName: "鈴木", Specialties: []model.Specialty{model.SpecialtyGeneral}, IsProfessional: true}
	fixtures := Fixtures{Counselors: []model.CounselorProfile{counselor}}
	for i := 0; i < 5; i++ {
		start := base.Add(time.Duration(i) * 24 * time.Hour)
		fixtures.Slots = append(fixtures.Slots, model.AvailabilitySlot{CounselorID: "pro", StartTime: start, EndTime: start.Add(time.Hour)})
	}
	if err := store.Seed(fixtures); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	repo := store.Appointments()

	const limit = 2
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		exceeded  int
	)
	for i, slot := range fixtures.Slots {
		wg.Add(1)
		go func(i int, slot model.AvailabilitySlot) {
			defer wg.Done()
			err := repo.ClaimSlot(ctx, &model.Appointment{
				ID:             fmt.Sprintf("p%d", i),
				ClientID:       "u1",
				CounselorID:    slot.CounselorID,
				StartTime:      slot.StartTime,
				EndTime:        slot.EndTime,
				Status:         model.AppointmentStatusConfirmed,
				IsProfessional: true,
			}, limit)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, model.ErrProfessionalQuotaExceeded):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i, slot)
	}
	wg.Wait()

	if succeeded != limit || exceeded != len(fixtures.Slots)-limit {
		t.Errorf("succeeded = %d, exceeded = %d, want %d and %d", succeeded, exceeded, limit, len(fixtures.Slots)-limit)
	}

	// 上限で拒否された枠は消費されない
	pro := "pro"
	slots, _ := store.Slots().ListAvailable(ctx, model.SlotFilter{CounselorID: &pro})
	if len(slots) != len(fixtures.Slots)-limit {
		t.Fatalf("available slots = %d, want %d", len(slots), len(fixtures.Slots)-limit)
	}

	// 別のクライアントは上限の影響を受けない
	err := repo.ClaimSlot(ctx, &model.Appointment{
		ID: "other", ClientID: "u2", CounselorID: "pro",
		StartTime: slots[0].StartTime, EndTime: slots[0].EndTime,
		Status: model.AppointmentStatusConfirmed, IsProfessional: true,
	}, limit)
	if err != nil {
		t.Errorf("ClaimSlot() for another client error = %v", err)
	}
}

func TestAppointmentRepository_DuplicateMeetingLink(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	repo := store.Appointments()

	link := "https://meet.example/same"
	first := &model.Appointment{ID: "a1", CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour), MeetingLink: &link}
	if err := repo.ClaimSlot(ctx, first, 0); err != nil {
		t.Fatalf("ClaimSlot() error = %v", err)
	}

	second := &model.Appointment{ID: "a2", CounselorID: "c2", StartTime: base, EndTime: base.Add(time.Hour), MeetingLink: &link}
	if err := repo.ClaimSlot(ctx, second, 0); !errors.Is(err, model.ErrDuplicateMeetingLink) {
		t.Fatalf("ClaimSlot() error = %v, want %v", err, model.ErrDuplicateMeetingLink)
	}

	// 失敗した確保で枠が消費されていないこと
	c2 := "c2"
	slots, _ := store.Slots().ListAvailable(ctx, model.SlotFilter{CounselorID: &c2})
	if len(slots) != 1 {
		t.Errorf("slot of c2 should remain available, got %d slots", len(slots))
	}
}

func TestAppointmentRepository_TransitionStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		from    model.AppointmentStatus
		to      model.AppointmentStatus
		id      string
		wantErr error
	}{
		{name: "確定からキャンセル", id: "a1", from: model.AppointmentStatusConfirmed, to: model.AppointmentStatusCancelled},
		{name: "確定から完了", id: "a1", from: model.AppointmentStatusConfirmed, to: model.AppointmentStatusCompleted},
		{name: "現在のステータスと異なる", id: "a1", from: model.AppointmentStatusPending, to: model.AppointmentStatusConfirmed, wantErr: model.ErrInvalidStatusTransition},
		{name: "存在しない予約", id: "missing", from: model.AppointmentStatusConfirmed, to: model.AppointmentStatusCancelled, wantErr: model.ErrAppointmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newSeededStore(t)
			repo := store.Appointments()
			appt := &model.Appointment{ID: "a1", CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour), Status: model.AppointmentStatusConfirmed}
			if err := repo.Create(ctx, appt); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			err := repo.TransitionStatus(ctx, tt.id, tt.from, tt.to)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("TransitionStatus() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TransitionStatus() error = %v", err)
			}

			got, _ := repo.GetByID(ctx, tt.id)
			if got.Status != tt.to {
				t.Errorf("Status = %v, want %v", got.Status, tt.to)
			}
		})
	}
}

func TestAppointmentRepository_ListByUser(t *testing.T) {
	ctx := context.Background()
	store := newSeededStore(t)
	repo := store.Appointments()

	appts := []*model.Appointment{
		{ID: "late", ClientID: "u1", CounselorID: "c1", StartTime: base.Add(2 * time.Hour), EndTime: base.Add(3 * time.Hour)},
		{ID: "early", ClientID: "u1", CounselorID: "c2", StartTime: base, EndTime: base.Add(time.Hour)},
		{ID: "other", ClientID: "u2", CounselorID: "c1", StartTime: base, EndTime: base.Add(time.Hour)},
	}
	for _, a := range appts {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		userID string
		want   []string
	}{
		{name: "クライアントの予約を開始時刻順に返す", userID: "u1", want: []string{"early", "late"}},
		{name: "カウンセラー本人の予約も返す", userID: "u-c1", want: []string{"other", "late"}},
		{name: "予約がないユーザー", userID: "nobody", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListByUser(ctx, tt.userID)
			if err != nil {
				t.Fatalf("ListByUser() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ListByUser() returned %d appointments, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("ListByUser()[%d].ID = %v, want %v", i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestScreeningRepository_LatestByUser(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Screenings()

	if _, err := repo.LatestByUser(ctx, "u1"); !errors.Is(err, model.ErrUnknownUser) {
		t.Fatalf("LatestByUser() error = %v, want %v", err, model.ErrUnknownUser)
	}

	for _, r := range []model.ScreeningResult{
		{ID: "s1", UserID: "u1", Result: model.ScreeningTierRefer, CreatedAt: base},
		{ID: "s2", UserID: "u1", Result: model.ScreeningTierPass, CreatedAt: base.Add(time.Minute)},
	} {
		r := r
		if err := repo.Create(ctx, &r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.LatestByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("LatestByUser() error = %v", err)
	}
	if got.ID != "s2" {
		t.Errorf("LatestByUser().ID = %v, want s2", got.ID)
	}
}

func TestNotificationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Notifications()

	records := []model.NotificationRecord{
		{UserID: "u1", Title: "古い通知", CreatedAt: base},
		{UserID: "u1", Title: "新しい通知", CreatedAt: base.Add(time.Hour)},
		{UserID: "u2", Title: "別ユーザー", CreatedAt: base},
	}
	if err := repo.CreateNotifications(ctx, records); err != nil {
		t.Fatalf("CreateNotifications() error = %v", err)
	}
	if records[0].ID != 1 || records[2].ID != 3 {
		t.Errorf("IDs = %d, %d, want 1, 3", records[0].ID, records[2].ID)
	}

	got, err := repo.GetByUserID(ctx, "u1")
	if err != nil {
		t.Fatalf("GetByUserID() error = %v", err)
	}
	if len(got) != 2 || got[0].Title != "新しい通知" {
		t.Fatalf("GetByUserID() = %+v", got)
	}

	if err := repo.MarkRead(ctx, got[0].ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	got, _ = repo.GetByUserID(ctx, "u1")
	if !got[0].IsRead || got[1].IsRead {
		t.Errorf("IsRead = %v, %v, want true, false", got[0].IsRead, got[1].IsRead)
	}

	if err := repo.MarkRead(ctx, 99); !errors.Is(err, model.ErrNotificationNotFound) {
		t.Errorf("MarkRead() error = %v, want %v", err, model.ErrNotificationNotFound)
	}
}
