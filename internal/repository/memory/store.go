// Package memory はプロセス内で完結するリポジトリ実装です
// ローカル開発とテストで使用し、全ての状態は1つのロックで保護されます
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type slotKey struct {
	counselorID string
	start       int64
}

func keyOf(counselorID string, start time.Time) slotKey {
	return slotKey{counselorID: counselorID, start: start.UnixNano()}
}

// Store はインメモリの状態を保持します
type Store struct {
	mu sync.RWMutex

	slots        map[slotKey]*model.AvailabilitySlot
	appointments map[string]*model.Appointment
	meetingLinks map[string]string
	counselors   map[string]model.CounselorProfile
	users        map[string]model.User
	screenings   map[string][]model.ScreeningResult

	notifications      []model.NotificationRecord
	nextNotificationID int
}

func NewStore() *Store {
	return &Store{
		slots:        make(map[slotKey]*model.AvailabilitySlot),
		appointments: make(map[string]*model.Appointment),
		meetingLinks: make(map[string]string),
		counselors:   make(map[string]model.CounselorProfile),
		users:        make(map[string]model.User),
		screenings:   make(map[string][]model.ScreeningResult),
	}
}

// Fixtures は起動時に投入する初期データです
type Fixtures struct {
	Users      []model.User             `json:"users"`
	Counselors []model.CounselorProfile `json:"counselors"`
	Slots      []model.AvailabilitySlot `json:"slots"`
}

// Seed は初期データを投入します
// 枠は (CounselorID, StartTime) で一意でなければなりません
func (s *Store) Seed(f Fixtures) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range f.Users {
		if u.ID == "" {
			return fmt.Errorf("%w: user id is required", model.ErrInvalidUser)
		}
		s.users[u.ID] = u
	}

	for _, c := range f.Counselors {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid counselor fixture: %w", err)
		}
		s.counselors[c.ID] = c
	}

	for _, slot := range f.Slots {
		if err := slot.Validate(); err != nil {
			return err
		}
		key := keyOf(slot.CounselorID, slot.StartTime)
		if _, exists := s.slots[key]; exists {
			return fmt.Errorf("%w: duplicate slot for counselor %s at %s", model.ErrInvalidSlot,
				slot.CounselorID, slot.StartTime.Format(time.RFC3339))
		}
		slot := slot
		s.slots[key] = &slot
	}

	return nil
}

// LoadSeedFile はJSON形式の初期データファイルを読み込みます
func LoadSeedFile(path string) (Fixtures, error) {
	var f Fixtures

	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("failed to read seed file: %w", err)
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return f, nil
}

func (s *Store) Slots() *SlotRepository {
	return &SlotRepository{store: s}
}

func (s *Store) Appointments() *AppointmentRepository {
	return &AppointmentRepository{store: s}
}

func (s *Store) Counselors() *CounselorRepository {
	return &CounselorRepository{store: s}
}

func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

func (s *Store) Screenings() *ScreeningRepository {
	return &ScreeningRepository{store: s}
}

func (s *Store) Notifications() *NotificationRepository {
	return &NotificationRepository{store: s}
}
