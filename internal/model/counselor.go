package model

import (
	"fmt"
	"slices"
	"time"
)

// Specialty はカウンセラーの専門分野です
type Specialty string

const (
	SpecialtyGeneral       Specialty = "general"
	SpecialtyDepression    Specialty = "depression"
	SpecialtyAnxiety       Specialty = "anxiety"
	SpecialtyRelationships Specialty = "relationships"
	SpecialtyCareer        Specialty = "career"
	SpecialtyStress        Specialty = "stress"
)

// Specialties は定義済みの専門分野一覧です
var Specialties = []Specialty{
	SpecialtyGeneral,
	SpecialtyDepression,
	SpecialtyAnxiety,
	SpecialtyRelationships,
	SpecialtyCareer,
	SpecialtyStress,
}

func (s Specialty) Valid() bool {
	return slices.Contains(Specialties, s)
}

// UserRole はユーザーの種別です
type UserRole string

const (
	UserRoleClient    UserRole = "client"
	UserRoleCounselor UserRole = "counselor"
)

func (r UserRole) Valid() bool {
	return r == UserRoleClient || r == UserRoleCounselor
}

type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      UserRole  `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CounselorProfile はカウンセラーの紹介情報です（参照が中心で更新はほぼない）
type CounselorProfile struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	DisplayName    string      `json:"display_name"`
	Bio            string      `json:"bio"`
	Specialties    []Specialty `json:"specialties"`
	HourlyRate     *float64    `json:"hourly_rate,omitempty"`
	IsProfessional bool        `json:"is_professional"`
}

// IsPeer は料金が未設定または0のピア（ボランティア）カウンセラーかどうかを返します
func (c CounselorProfile) IsPeer() bool {
	return c.HourlyRate == nil || *c.HourlyRate == 0
}

// HasSpecialty は指定した専門分野を持つかどうかを返します
func (c CounselorProfile) HasSpecialty(s Specialty) bool {
	return slices.Contains(c.Specialties, s)
}

// Validate はプロフィールの不変条件を検証します
func (c CounselorProfile) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("counselor id is required")
	}
	if len(c.Specialties) == 0 {
		return fmt.Errorf("counselor %s must have at least one specialty", c.ID)
	}
	for _, s := range c.Specialties {
		if !s.Valid() {
			return fmt.Errorf("counselor %s has unknown specialty %q", c.ID, s)
		}
	}
	if c.HourlyRate != nil && *c.HourlyRate < 0 {
		return fmt.Errorf("counselor %s has negative hourly rate", c.ID)
	}
	return nil
}
