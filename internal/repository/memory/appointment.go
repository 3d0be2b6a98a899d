package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type AppointmentRepository struct {
	store *Store
}

// ClaimSlot は月間上限の確認、枠の予約済みへの更新、予約の登録をロックを保持したまま行います
func (r *AppointmentRepository) ClaimSlot(ctx context.Context, appt *model.Appointment, professionalLimit int) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if appt.IsProfessional && professionalLimit > 0 {
		y, m, _ := appt.StartTime.UTC().Date()
		if err := model.CheckProfessionalQuota(s.countProfessionalLocked(appt.ClientID, y, m), professionalLimit, y, m); err != nil {
			return err
		}
	}
	if err := s.checkInsertLocked(appt); err != nil {
		return err
	}
	if err := s.markSlotBookedLocked(appt.CounselorID, appt.StartTime, appt.EndTime); err != nil {
		return err
	}

	s.insertLocked(appt)
	return nil
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkInsertLocked(appt); err != nil {
		return err
	}
	s.insertLocked(appt)
	return nil
}

func (s *Store) checkInsertLocked(appt *model.Appointment) error {
	if _, exists := s.appointments[appt.ID]; exists {
		return fmt.Errorf("appointment %s already exists", appt.ID)
	}
	if appt.MeetingLink != nil {
		if owner, exists := s.meetingLinks[*appt.MeetingLink]; exists {
			return fmt.Errorf("%w: already used by %s", model.ErrDuplicateMeetingLink, owner)
		}
	}
	return nil
}

func (s *Store) insertLocked(appt *model.Appointment) {
	stored := *appt
	s.appointments[appt.ID] = &stored
	if appt.MeetingLink != nil {
		s.meetingLinks[*appt.MeetingLink] = appt.ID
	}
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	appt, ok := r.store.appointments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAppointmentNotFound, id)
	}
	found := *appt
	return &found, nil
}

// ListByUser はクライアントまたはカウンセラー本人として関わる予約を開始時刻順に返します
func (r *AppointmentRepository) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	appts := []model.Appointment{}
	for _, appt := range s.appointments {
		counselor, ok := s.counselors[appt.CounselorID]
		if appt.ClientID == userID || ok && counselor.UserID == userID {
			appts = append(appts, *appt)
		}
	}

	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].StartTime.Equal(appts[j].StartTime) {
			return appts[i].StartTime.Before(appts[j].StartTime)
		}
		return appts[i].ID < appts[j].ID
	})
	return appts, nil
}

func (s *Store) countProfessionalLocked(clientID string, year int, month time.Month) int {
	count := 0
	for _, appt := range s.appointments {
		if appt.ClientID == clientID && appt.CountsTowardQuota(year, month) {
			count++
		}
	}
	return count
}

func (r *AppointmentRepository) TransitionStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	appt, ok := r.store.appointments[id]
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrAppointmentNotFound, id)
	}
	if appt.Status != from || !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: appointment %s is %s", model.ErrInvalidStatusTransition, id, appt.Status)
	}

	appt.Status = to
	return nil
}

func (r *AppointmentRepository) GetAppointmentsToComplete(ctx context.Context, endedBefore time.Time) ([]model.Appointment, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	appts := []model.Appointment{}
	for _, appt := range r.store.appointments {
		if appt.Status == model.AppointmentStatusConfirmed && !appt.EndTime.After(endedBefore) {
			appts = append(appts, *appt)
		}
	}

	sort.Slice(appts, func(i, j int) bool {
		return appts[i].EndTime.Before(appts[j].EndTime)
	})
	return appts, nil
}
