package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

// SlotRepositoryImpl は空き枠をPostgreSQLで管理します
type SlotRepositoryImpl struct {
	db *DB
}

func NewSlotRepository(db *DB) *SlotRepositoryImpl {
	return &SlotRepositoryImpl{db: db}
}

// ListAvailable は未予約の枠を開始時刻順に取得します
func (r *SlotRepositoryImpl) ListAvailable(ctx context.Context, filter model.SlotFilter) ([]model.AvailabilitySlot, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "SlotRepository.ListAvailable")
	defer seg.Close(nil)

	if filter.Empty() {
		return []model.AvailabilitySlot{}, nil
	}

	conds := []string{"is_booked = FALSE"}
	args := []interface{}{}
	if filter.CounselorID != nil {
		args = append(args, *filter.CounselorID)
		conds = append(conds, fmt.Sprintf("counselor_id = $%d", len(args)))
	}
	if filter.RangeStart != nil {
		args = append(args, *filter.RangeStart)
		conds = append(conds, fmt.Sprintf("start_time >= $%d", len(args)))
	}
	if filter.RangeEnd != nil {
		args = append(args, *filter.RangeEnd)
		conds = append(conds, fmt.Sprintf("start_time <= $%d", len(args)))
	}

	query := `
		SELECT counselor_id, start_time, end_time, is_booked
		FROM availability_slots
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY start_time ASC, counselor_id ASC`

	slots := []model.AvailabilitySlot{}
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query available slots: %w", err)
	}

	return slots, nil
}

// markSlotBooked は一致する未予約の枠をトランザクション内で予約済みにします
// is_booked = FALSE を条件にした更新のため、同じ枠への同時更新は1件だけが成功します
func markSlotBooked(ctx context.Context, tx *sqlx.Tx, counselorID string, start, end time.Time) error {
	query := `
		UPDATE availability_slots
		SET is_booked = TRUE
		WHERE counselor_id = $1
		AND start_time = $2
		AND end_time = $3
		AND is_booked = FALSE`

	result, err := tx.ExecContext(ctx, query, counselorID, start, end)
	if err != nil {
		return fmt.Errorf("failed to mark slot booked: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: counselor %s at %s", model.ErrSlotUnavailable, counselorID, start.Format(time.RFC3339))
	}

	return nil
}
