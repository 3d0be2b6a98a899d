package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

const (
	appointmentColumns = `id, client_id, counselor_id, start_time, end_time, status,
		meeting_link, created_at, is_professional, is_immediate`

	meetingLinkConstraint = "appointments_meeting_link_key"
)

type AppointmentRepositoryImpl struct {
	db *DB
}

func NewAppointmentRepository(db *DB) *AppointmentRepositoryImpl {
	return &AppointmentRepositoryImpl{db: db}
}

// ClaimSlot は月間上限の確認、枠の確保、予約の登録を1つのトランザクションで行います
// 上限の確認はクライアント単位のアドバイザリロックを取得してから行うため、同じクライアントの同時予約で上限を超えません
func (r *AppointmentRepositoryImpl) ClaimSlot(ctx context.Context, appt *model.Appointment, professionalLimit int) error {
	ctx, seg := xray.BeginSubsegment(ctx, "AppointmentRepository.ClaimSlot")
	defer seg.Close(nil)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if appt.IsProfessional && professionalLimit > 0 {
			if err := checkProfessionalQuota(ctx, tx, appt, professionalLimit); err != nil {
				return err
			}
		}
		if err := markSlotBooked(ctx, tx, appt.CounselorID, appt.StartTime, appt.EndTime); err != nil {
			return err
		}
		return r.insert(ctx, tx, appt)
	})
	if err != nil {
		seg.Close(err)
		return err
	}

	return nil
}

// Create は枠を消費しない予約を登録します
func (r *AppointmentRepositoryImpl) Create(ctx context.Context, appt *model.Appointment) error {
	ctx, seg := xray.BeginSubsegment(ctx, "AppointmentRepository.Create")
	defer seg.Close(nil)

	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return r.insert(ctx, tx, appt)
	})
	if err != nil {
		seg.Close(err)
		return err
	}
	return nil
}

func (r *AppointmentRepositoryImpl) insert(ctx context.Context, tx *sqlx.Tx, appt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id,
			client_id,
			counselor_id,
			start_time,
			end_time,
			status,
			meeting_link,
			created_at,
			is_professional,
			is_immediate
		) VALUES (
			:id,
			:client_id,
			:counselor_id,
			:start_time,
			:end_time,
			:status,
			:meeting_link,
			:created_at,
			:is_professional,
			:is_immediate
		)`

	if _, err := tx.NamedExecContext(ctx, query, appt); err != nil {
		if isUniqueViolation(err, meetingLinkConstraint) {
			return fmt.Errorf("%w: %v", model.ErrDuplicateMeetingLink, err)
		}
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AppointmentRepository.GetByID")
	defer seg.Close(nil)

	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var appt model.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", model.ErrAppointmentNotFound, id)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	return &appt, nil
}

// ListByUser はクライアントとして、またはカウンセラー本人として関わる予約を取得します
func (r *AppointmentRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AppointmentRepository.ListByUser")
	defer seg.Close(nil)

	query := `
		SELECT a.id, a.client_id, a.counselor_id, a.start_time, a.end_time, a.status,
			a.meeting_link, a.created_at, a.is_professional, a.is_immediate
		FROM appointments a
		LEFT JOIN counselor_profiles c ON c.id = a.counselor_id
		WHERE a.client_id = $1 OR c.user_id = $1
		ORDER BY a.start_time ASC, a.id ASC`

	appts := []model.Appointment{}
	if err := r.db.SelectContext(ctx, &appts, query, userID); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query appointments for user %s: %w", userID, err)
	}

	return appts, nil
}

// checkProfessionalQuota はキャンセルを除く専門カウンセリングの件数を予約開始月（UTC）で数え、上限を確認します
func checkProfessionalQuota(ctx context.Context, tx *sqlx.Tx, appt *model.Appointment, limit int) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appt.ClientID); err != nil {
		return fmt.Errorf("failed to lock client %s: %w", appt.ClientID, err)
	}

	y, m, _ := appt.StartTime.UTC().Date()
	from := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	query := `
		SELECT COUNT(*)
		FROM appointments
		WHERE client_id = $1
		AND is_professional = TRUE
		AND status <> $2
		AND start_time >= $3
		AND start_time < $4`

	var count int
	if err := tx.GetContext(ctx, &count, query, appt.ClientID, model.AppointmentStatusCancelled, from, to); err != nil {
		return fmt.Errorf("failed to count professional appointments: %w", err)
	}

	return model.CheckProfessionalQuota(count, limit, y, m)
}

// TransitionStatus は現在のステータスがfromの場合のみtoに更新します
func (r *AppointmentRepositoryImpl) TransitionStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	ctx, seg := xray.BeginSubsegment(ctx, "AppointmentRepository.TransitionStatus")
	defer seg.Close(nil)

	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidStatusTransition, from, to)
	}

	query := `
		UPDATE appointments
		SET status = $1
		WHERE id = $2
		AND status = $3`

	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		seg.Close(err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// 存在しないのか、ステータスが変わっていたのかを区別する
		current, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: appointment %s is %s", model.ErrInvalidStatusTransition, id, current.Status)
	}

	return nil
}

// GetAppointmentsToComplete は終了時刻を過ぎた確定済みの予約を取得します
func (r *AppointmentRepositoryImpl) GetAppointmentsToComplete(ctx context.Context, endedBefore time.Time) ([]model.Appointment, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "AppointmentRepository.GetAppointmentsToComplete")
	defer seg.Close(nil)

	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE status = $1
		AND end_time <= $2
		ORDER BY end_time ASC`

	appts := []model.Appointment{}
	if err := r.db.SelectContext(ctx, &appts, query, model.AppointmentStatusConfirmed, endedBefore); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query appointments to complete: %w", err)
	}

	return appts, nil
}
