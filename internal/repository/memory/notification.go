package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/uma-arai/sbcntr-counseling/internal/model"
)

type NotificationRepository struct {
	store *Store
}

// CreateNotifications は連番のIDを振って保存します。recordsのIDも更新されます
func (r *NotificationRepository) CreateNotifications(ctx context.Context, records []model.NotificationRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i := range records {
		r.store.nextNotificationID++
		records[i].ID = r.store.nextNotificationID
		r.store.notifications = append(r.store.notifications, records[i])
	}
	return nil
}

// GetByUserID は新しい順に返します
func (r *NotificationRepository) GetByUserID(ctx context.Context, userID string) ([]model.NotificationRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	records := []model.NotificationRecord{}
	for _, n := range r.store.notifications {
		if n.UserID == userID {
			records = append(records, n)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})
	return records, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for i := range r.store.notifications {
		if r.store.notifications[i].ID == id {
			r.store.notifications[i].IsRead = true
			return nil
		}
	}
	return fmt.Errorf("%w: %d", model.ErrNotificationNotFound, id)
}
