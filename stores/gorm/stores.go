package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	sp "github.com/panyam/secretpage"
)

// AutoMigrate runs database migrations for the accounts table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountModel{})
}

// AccountStore implements sp.CredentialStore using GORM. Uniqueness is left
// to the table's unique indexes.
type AccountStore struct {
	db *gorm.DB
}

func NewAccountStore(db *gorm.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, identifier, password string) (*sp.Account, error) {
	creds := sp.Credentials{Username: identifier, Password: password}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	hash, err := sp.HashPassword(creds.Password)
	if err != nil {
		return nil, err
	}

	account := &sp.Account{
		ID:           uuid.NewString(),
		Identifier:   creds.Username,
		PasswordHash: hash,
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	model := AccountToModel(account)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicate(err) {
			return nil, sp.ErrDuplicateIdentifier
		}
		return nil, unavailable(err)
	}
	return model.ToAccount(), nil
}

func (s *AccountStore) Verify(ctx context.Context, identifier, password string) (*sp.Account, error) {
	identifier = strings.TrimSpace(identifier)
	var model AccountModel
	err := s.db.WithContext(ctx).First(&model, "identifier = ?", identifier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		sp.CheckPassword("", password)
		return nil, sp.ErrInvalidCredentials
	} else if err != nil {
		return nil, unavailable(err)
	}

	if !sp.CheckPassword(model.PasswordHash, password) {
		return nil, sp.ErrInvalidCredentials
	}
	return model.ToAccount(), nil
}

// FindOrCreateByExternalID looks the binding up, inserts on a miss and, if a
// concurrent caller won the insert, reads back the winner's row.
func (s *AccountStore) FindOrCreateByExternalID(ctx context.Context, provider, externalID string) (*sp.Account, error) {
	if provider == "" || externalID == "" {
		return nil, errors.New("provider and external id are required")
	}
	db := s.db.WithContext(ctx)

	if account, err := s.findExternal(db, provider, externalID); account != nil || err != nil {
		return account, err
	}

	model := AccountToModel(&sp.Account{
		ID:         uuid.NewString(),
		Provider:   provider,
		ExternalID: externalID,
	})
	err := db.Create(model).Error
	if err == nil {
		return model.ToAccount(), nil
	}
	if !isDuplicate(err) {
		return nil, unavailable(err)
	}

	account, err := s.findExternal(db, provider, externalID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, unavailable(fmt.Errorf("external id %s/%s conflicted but is not readable", provider, externalID))
	}
	return account, nil
}

func (s *AccountStore) GetAccountByID(ctx context.Context, id string) (*sp.Account, error) {
	var model AccountModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sp.ErrAccountNotFound
		}
		return nil, unavailable(err)
	}
	return model.ToAccount(), nil
}

// DeleteAccount removes an account. Not used by the login flows; sessions
// pointing at a deleted account stop resolving.
func (s *AccountStore) DeleteAccount(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&AccountModel{}, "id = ?", id).Error; err != nil {
		return unavailable(err)
	}
	return nil
}

// CountAccounts returns the number of stored accounts.
func (s *AccountStore) CountAccounts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&AccountModel{}).Count(&n).Error; err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *AccountStore) findExternal(db *gorm.DB, provider, externalID string) (*sp.Account, error) {
	var model AccountModel
	err := db.First(&model, "provider = ? AND external_id = ?", provider, externalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, unavailable(err)
	}
	return model.ToAccount(), nil
}

// isDuplicate matches translated and untranslated unique violations from
// both the SQLite and Postgres drivers.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", sp.ErrStoreUnavailable, err)
}
