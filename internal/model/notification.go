package model

import (
	"fmt"
	"time"
)

// NotificationType は通知の種類を表します
type NotificationType string

const (
	// NotificationTypeAppointmentCompleted はセッション終了の通知を表します
	NotificationTypeAppointmentCompleted NotificationType = "appointment_completed"
	// NotificationTypeAppointmentReminder はセッション開始前のリマインドを表します
	NotificationTypeAppointmentReminder NotificationType = "appointment_reminder"
	// NotificationTypeCommon は共通の通知を表します
	NotificationTypeCommon NotificationType = "common"
)

// Notification はStep Functions経由で受け渡される通知の定義です
type Notification struct {
	Type      NotificationType `json:"type"`
	CreatedAt time.Time        `json:"created_at"`
	Data      interface{}      `json:"data"`
}

// NotificationRecord は通知のドメインモデルです
// データベースに永続化される通知レコードと一致しています
type NotificationRecord struct {
	ID        int              `db:"id"`
	UserID    string           `db:"user_id"`
	Title     string           `db:"title"`
	Message   string           `db:"message"`
	IsRead    bool             `db:"is_read"`
	Type      NotificationType `db:"type"`
	CreatedAt time.Time        `db:"created_at"`
	UpdatedAt time.Time        `db:"updated_at"`
}

// ToNotificationRecord は通知を通知レコードに変換します
// counselorNameMapはカウンセラーIDから表示名への対応です
func (n Notification) ToNotificationRecord(counselorNameMap map[string]string) (*NotificationRecord, error) {
	data, ok := n.Data.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid notification data format")
	}

	userID, ok := data["user_id"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("user_id is missing in notification data")
	}

	if n.Type == NotificationTypeAppointmentCompleted {
		counselorID, _ := data["counselor_id"].(string)
		counselorName, ok := counselorNameMap[counselorID]
		if !ok {
			return nil, fmt.Errorf("counselor_id %q not found in counselorNameMap", counselorID)
		}

		dateTime, err := parseDateTime(data["date_time"])
		if err != nil {
			return nil, err
		}

		message := fmt.Sprintf(`カウンセリングセッションが終了しました。ご利用ありがとうございました。
実施日時: %s
カウンセラー: %s`, dateTime.Format("2006-01-02 15:04"), counselorName)

		return &NotificationRecord{
			UserID:    userID,
			Title:     "セッションが終了しました",
			Message:   message,
			IsRead:    false,
			Type:      NotificationTypeAppointmentCompleted,
			CreatedAt: n.CreatedAt,
			UpdatedAt: n.CreatedAt,
		}, nil
	}

	return &NotificationRecord{
		UserID:    userID,
		Title:     "新しい通知が届きました。",
		Message:   "新しい通知です。",
		IsRead:    false,
		Type:      NotificationTypeCommon,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.CreatedAt,
	}, nil
}

// date_timeはtime.TimeかRFC3339文字列のどちらかで渡される
func parseDateTime(v interface{}) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date_time format: %v", err)
		}
		return parsed, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected type for date_time: %T", v)
	}
}

// NewAppointmentCompletedNotification は予約イベントから終了通知を作成します
func NewAppointmentCompletedNotification(event AppointmentEvent) Notification {
	return Notification{
		Type:      NotificationTypeAppointmentCompleted,
		CreatedAt: event.CreatedAt,
		Data: map[string]interface{}{
			"appointment_id": event.AppointmentID,
			"user_id":        event.UserID,
			"counselor_id":   event.CounselorID,
			"date_time":      event.DateTime,
		},
	}
}

// NewAppointmentReminderRecord は予約イベントからリマインド通知レコードを作成します
func NewAppointmentReminderRecord(event AppointmentEvent, meetingLink string) NotificationRecord {
	now := time.Now()
	message := fmt.Sprintf("まもなくカウンセリングが始まります。\n開始日時: %s", event.DateTime.Format("2006-01-02 15:04"))
	if meetingLink != "" {
		message += "\n参加URL: " + meetingLink
	}
	return NotificationRecord{
		UserID:    event.UserID,
		Title:     "カウンセリングのリマインド",
		Message:   message,
		IsRead:    false,
		Type:      NotificationTypeAppointmentReminder,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
