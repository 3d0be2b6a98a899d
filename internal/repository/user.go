package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type UserRepositoryImpl struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepositoryImpl {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) List(ctx context.Context) ([]model.User, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UserRepository.List")
	defer seg.Close(nil)

	users := []model.User{}
	query := `SELECT id, name, email, role, created_at FROM users ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		seg.Close(err)
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (r *UserRepositoryImpl) GetByID(ctx context.Context, id string) (*model.User, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "UserRepository.GetByID")
	defer seg.Close(nil)

	var user model.User
	query := `SELECT id, name, email, role, created_at FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", model.ErrUserNotFound, id)
		}
		seg.Close(err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *model.User) error {
	ctx, seg := xray.BeginSubsegment(ctx, "UserRepository.Create")
	defer seg.Close(nil)

	query := `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES (:id, :name, :email, :role, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err, "") {
			return fmt.Errorf("%w: user %s or email %s already exists", model.ErrInvalidUser, user.ID, user.Email)
		}
		seg.Close(err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
