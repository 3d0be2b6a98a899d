package availability

import (
	"context"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
)

// Service は予約可能な枠の参照を提供します
// 枠の予約済みへの更新は予約サービスのみが行います
type Service struct {
	slots      repository.SlotRepository
	counselors repository.CounselorRepository
}

func NewService(slots repository.SlotRepository, counselors repository.CounselorRepository) *Service {
	return &Service{slots: slots, counselors: counselors}
}

// ListAvailable は未予約の枠を開始時刻、カウンセラーIDの順に返します
// RangeStartがRangeEndより後の場合はエラーではなく空の結果です
func (s *Service) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailabilitySlot, error) {
	if filter.Empty() {
		return []model.AvailabilitySlot{}, nil
	}
	return s.slots.ListAvailable(ctx, filter)
}

// ListCounselorAvailability は指定したカウンセラーの空き枠を返します
// 存在しないカウンセラーの場合はmodel.ErrCounselorNotFoundです
func (s *Service) ListCounselorAvailability(ctx context.Context, counselorID string, start, end *time.Time) ([]model.AvailabilitySlot, error) {
	if _, err := s.counselors.GetByID(ctx, counselorID); err != nil {
		return nil, err
	}
	return s.ListAvailable(ctx, model.SlotFilter{
		CounselorID: &counselorID,
		RangeStart:  start,
		RangeEnd:    end,
	})
}
