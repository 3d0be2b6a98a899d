package directory

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/uma-arai/sbcntr-counseling/internal/common/utils"
	"github.com/uma-arai/sbcntr-counseling/internal/model"
	"github.com/uma-arai/sbcntr-counseling/internal/repository"
)

// Service はユーザーとカウンセラーの参照・登録、ユーザー宛ての通知の参照を提供します
type Service struct {
	users         repository.UserRepository
	counselors    repository.CounselorRepository
	notifications repository.NotificationRepository
}

func NewService(users repository.UserRepository, counselors repository.CounselorRepository, notifications repository.NotificationRepository) *Service {
	return &Service{users: users, counselors: counselors, notifications: notifications}
}

type CreateUserInput struct {
	Name  string         `json:"name"`
	Email string         `json:"email"`
	Role  model.UserRole `json:"role"`
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.users.List(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

// CreateUser はユーザーを登録します。roleを省略した場合はclientです
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", model.ErrInvalidUser)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", model.ErrInvalidUser, in.Email)
	}

	role := in.Role
	if role == "" {
		role = model.UserRoleClient
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", model.ErrInvalidUser, role)
	}

	user := &model.User{
		ID:        utils.NewID(),
		Name:      name,
		Email:     in.Email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListCounselors はカウンセラー一覧を返します
// specialtyが空でない場合はその専門分野を持つカウンセラーに絞り込みます
func (s *Service) ListCounselors(ctx context.Context, specialty model.Specialty) ([]model.CounselorProfile, error) {
	profiles, err := s.counselors.List(ctx)
	if err != nil {
		return nil, err
	}
	if specialty == "" {
		return profiles, nil
	}

	filtered := make([]model.CounselorProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.HasSpecialty(specialty) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

func (s *Service) GetCounselor(ctx context.Context, id string) (*model.CounselorProfile, error) {
	return s.counselors.GetByID(ctx, id)
}

// ListNotifications はユーザー宛ての通知を新しい順に返します
// 予約者は未登録のユーザーIDのこともあるため、ユーザーの存在は確認しません
func (s *Service) ListNotifications(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrInvalidUser)
	}
	return s.notifications.GetByUserID(ctx, userID)
}

func (s *Service) MarkNotificationRead(ctx context.Context, id int) error {
	return s.notifications.MarkRead(ctx, id)
}
