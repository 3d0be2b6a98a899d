package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type ScreeningRepositoryImpl struct {
	db *DB
}

func NewScreeningRepository(db *DB) *ScreeningRepositoryImpl {
	return &ScreeningRepositoryImpl{db: db}
}

// Create はスクリーニング結果を保存します
func (r *ScreeningRepositoryImpl) Create(ctx context.Context, result *model.ScreeningResult) error {
	ctx, seg := xray.BeginSubsegment(ctx, "ScreeningRepository.Create")
	defer seg.Close(nil)

	query := `
		INSERT INTO screening_results (id, user_id, result, notes, created_at)
		VALUES (:id, :user_id, :result, :notes, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to create screening result: %w", err)
	}
	return nil
}

// LatestByUser は指定ユーザーの最新のスクリーニング結果を取得します
func (r *ScreeningRepositoryImpl) LatestByUser(ctx context.Context, userID string) (*model.ScreeningResult, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "ScreeningRepository.LatestByUser")
	defer seg.Close(nil)

	query := `
		SELECT id, user_id, result, notes, created_at
		FROM screening_results
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var result model.ScreeningResult
	if err := r.db.GetContext(ctx, &result, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", model.ErrUnknownUser, userID)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get screening result: %w", err)
	}
	return &result, nil
}
