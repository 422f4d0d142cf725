package gorm

import (
	"time"

	sp "github.com/panyam/secretpage"
)

// AccountModel is the GORM model for accounts. Identifier and ExternalID are
// nullable so the unique indexes only apply to rows that set them.
type AccountModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Identifier   *string   `gorm:"size:255;uniqueIndex:idx_accounts_identifier"`
	PasswordHash string    `gorm:"size:72"`
	Provider     *string   `gorm:"size:32;uniqueIndex:idx_accounts_external,priority:1"`
	ExternalID   *string   `gorm:"size:255;uniqueIndex:idx_accounts_external,priority:2"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (AccountModel) TableName() string {
	return "accounts"
}

func (m *AccountModel) ToAccount() *sp.Account {
	return &sp.Account{
		ID:           m.ID,
		Identifier:   deref(m.Identifier),
		PasswordHash: m.PasswordHash,
		Provider:     deref(m.Provider),
		ExternalID:   deref(m.ExternalID),
		CreatedAt:    m.CreatedAt,
	}
}

func AccountToModel(a *sp.Account) *AccountModel {
	return &AccountModel{
		ID:           a.ID,
		Identifier:   ref(a.Identifier),
		PasswordHash: a.PasswordHash,
		Provider:     ref(a.Provider),
		ExternalID:   ref(a.ExternalID),
		CreatedAt:    a.CreatedAt,
	}
}

func ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
