package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type CounselorRepository struct {
	store *Store
}

func (r *CounselorRepository) List(ctx context.Context) ([]model.CounselorProfile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	profiles := make([]model.CounselorProfile, 0, len(r.store.counselors))
	for _, c := range r.store.counselors {
		profiles = append(profiles, c)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })
	return profiles, nil
}

func (r *CounselorRepository) GetByID(ctx context.Context, id string) (*model.CounselorProfile, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	c, ok := r.store.counselors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrCounselorNotFound, id)
	}
	return &c, nil
}

type UserRepository struct {
	store *Store
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	users := make([]model.User, 0, len(r.store.users))
	for _, u := range r.store.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	u, ok := r.store.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUserNotFound, id)
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.users[user.ID]; exists {
		return fmt.Errorf("%w: user %s already exists", model.ErrInvalidUser, user.ID)
	}
	r.store.users[user.ID] = *user
	return nil
}

type ScreeningRepository struct {
	store *Store
}

func (r *ScreeningRepository) Create(ctx context.Context, result *model.ScreeningResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	r.store.screenings[result.UserID] = append(r.store.screenings[result.UserID], *result)
	return nil
}

// LatestByUser は最後に保存された結果を返します
func (r *ScreeningRepository) LatestByUser(ctx context.Context, userID string) (*model.ScreeningResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	results := r.store.screenings[userID]
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownUser, userID)
	}
	latest := results[len(results)-1]
	return &latest, nil
}
