package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type SlotRepository struct {
	store *Store
}

// ListAvailable は未予約の枠を開始時刻、カウンセラーIDの順に返します
func (r *SlotRepository) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailabilitySlot, error) {
	slots := []model.AvailabilitySlot{}
	if filter.Empty() {
		return slots, nil
	}

	r.store.mu.RLock()
	for _, slot := range r.store.slots {
		if filter.Accepts(*slot) {
			slots = append(slots, *slot)
		}
	}
	r.store.mu.RUnlock()

	sortSlots(slots)
	return slots, nil
}

// markSlotBookedLocked は一致する未予約の枠を予約済みにします。呼び出し側でmu.Lockを保持していること
func (s *Store) markSlotBookedLocked(counselorID string, start, end time.Time) error {
	slot, ok := s.slots[keyOf(counselorID, start)]
	if !ok || slot.IsBooked || !slot.EndTime.Equal(end) {
		return fmt.Errorf("%w: counselor %s at %s", model.ErrSlotUnavailable, counselorID, start.Format(time.RFC3339))
	}
	slot.IsBooked = true
	return nil
}

func sortSlots(slots []model.AvailabilitySlot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].StartTime.Before(slots[j].StartTime)
		}
		return slots[i].CounselorID < slots[j].CounselorID
	})
}
