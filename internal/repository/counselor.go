package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/lib/pq"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

// counselorRow はcounselor_profilesテーブルの1行です
type counselorRow struct {
	ID             string          `db:"id"`
	UserID         string          `db:"user_id"`
	DisplayName    string          `db:"display_name"`
	Bio            string          `db:"bio"`
	Specialties    pq.StringArray  `db:"specialties"`
	HourlyRate     sql.NullFloat64 `db:"hourly_rate"`
	IsProfessional bool            `db:"is_professional"`
}

func (row counselorRow) toModel() model.CounselorProfile {
	profile := model.CounselorProfile{
		ID:             row.ID,
		UserID:         row.UserID,
		DisplayName:    row.DisplayName,
		Bio:            row.Bio,
		Specialties:    make([]model.Specialty, len(row.Specialties)),
		IsProfessional: row.IsProfessional,
	}
	for i, s := range row.Specialties {
		profile.Specialties[i] = model.Specialty(s)
	}
	if row.HourlyRate.Valid {
		rate := row.HourlyRate.Float64
		profile.HourlyRate = &rate
	}
	return profile
}

const counselorColumns = `id, user_id, display_name, bio, specialties, hourly_rate, is_professional`

// CounselorRepositoryImpl はカウンセラープロフィールを取得します
type CounselorRepositoryImpl struct {
	db *DB
}

func NewCounselorRepository(db *DB) *CounselorRepositoryImpl {
	return &CounselorRepositoryImpl{db: db}
}

func (r *CounselorRepositoryImpl) List(ctx context.Context) ([]model.CounselorProfile, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CounselorRepository.List")
	defer seg.Close(nil)

	query := `SELECT ` + counselorColumns + ` FROM counselor_profiles ORDER BY id ASC`

	var rows []counselorRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query counselors: %w", err)
	}

	profiles := make([]model.CounselorProfile, len(rows))
	for i, row := range rows {
		profiles[i] = row.toModel()
	}
	return profiles, nil
}

// GetByID は指定されたIDのカウンセラーを取得します
func (r *CounselorRepositoryImpl) GetByID(ctx context.Context, id string) (*model.CounselorProfile, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "CounselorRepository.GetByID")
	defer seg.Close(nil)

	query := `SELECT ` + counselorColumns + ` FROM counselor_profiles WHERE id = $1`

	var row counselorRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", model.ErrCounselorNotFound, id)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get counselor: %w", err)
	}

	profile := row.toModel()
	return &profile, nil
}
