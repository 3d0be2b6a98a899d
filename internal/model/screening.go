package model

import (
	"fmt"
	"strings"
	"time"
)

// ScreeningQuestions は初回スクリーニングの固定の質問です
// 回答は順番どおりに対応付けられます
var ScreeningQuestions = []string{
	"ここ2週間の気分はどうですか？",
	"睡眠の質はどうですか？",
	"食欲に変化はありますか？",
	"自分を傷つけたいと思ったことはありますか？",
	"どのような悩みでカウンセリングを受けたいですか？",
}

// SelfHarmQuestionIndex は自傷に関する質問の位置です
const SelfHarmQuestionIndex = 3

// ScreeningTier はスクリーニングの判定結果です
type ScreeningTier string

const (
	// ScreeningTierPass は通常の予約に進めます
	ScreeningTierPass ScreeningTier = "pass"
	// ScreeningTierRefer は専門家への紹介を推奨します
	ScreeningTierRefer ScreeningTier = "refer"
	// ScreeningTierBlock は自傷リスクがあるため緊急連絡先を案内します
	ScreeningTierBlock ScreeningTier = "block"
)

type ScreeningSubmission struct {
	UserID  string   `json:"user_id"`
	Answers []string `json:"answers"`
}

// Validate は回答数と未回答の有無を検証します
func (s ScreeningSubmission) Validate() error {
	if len(s.Answers) != len(ScreeningQuestions) {
		return fmt.Errorf("%w: got %d answers, want %d",
			ErrIncompleteSubmission, len(s.Answers), len(ScreeningQuestions))
	}
	for i, a := range s.Answers {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: answer %d is empty", ErrIncompleteSubmission, i+1)
		}
	}
	return nil
}

type ScreeningResult struct {
	ID        string        `json:"id" db:"id"`
	UserID    string        `json:"user_id" db:"user_id"`
	Result    ScreeningTier `json:"result" db:"result"`
	Notes     *string       `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
}
