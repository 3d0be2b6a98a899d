package utils

import (
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const meetingCodeAlphabet = "abcdefghijkmnopqrstuvwxyz23456789"

// NewID はエンティティ用のUUID文字列を返します
func NewID() string {
	return uuid.NewString()
}

// NewMeetingCode は会議URLに使う推測困難なコードを生成します
// 例: "k3fq-8wzp-7rna-5xme"
func NewMeetingCode() (string, error) {
	raw, err := gonanoid.Generate(meetingCodeAlphabet, 16)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for i := 0; i < len(raw); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(raw[i : i+4])
	}
	return b.String(), nil
}
