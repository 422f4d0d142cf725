package gorm

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	sp "github.com/panyam/secretpage"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("file:" + filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func closeDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestCreateAndVerify(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	account, err := store.Create(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "alice", account.Identifier)
	assert.True(t, account.IsLocal())
	assert.False(t, account.IsExternal())

	verified, err := store.Verify(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, account.ID, verified.ID)

	_, err = store.Verify(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, sp.ErrInvalidCredentials)
	_, err = store.Verify(ctx, "nobody", "pw1")
	assert.ErrorIs(t, err, sp.ErrInvalidCredentials)
}

func TestCreateDuplicateIdentifier(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	_, err := store.Create(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, sp.ErrDuplicateIdentifier)

	n, err := store.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// the original password still works
	_, err = store.Verify(ctx, "alice", "pw1")
	assert.NoError(t, err)
}

func TestConcurrentCreateSameIdentifier(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Create(ctx, "alice", "pw1")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, sp.ErrDuplicateIdentifier)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestCreateMissingFields(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	_, err := store.Create(ctx, "   ", "pw1")
	assert.ErrorIs(t, err, sp.ErrMissingIdentifier)
	_, err = store.Create(ctx, "alice", "")
	assert.ErrorIs(t, err, sp.ErrMissingPassword)

	n, _ := store.CountAccounts(ctx)
	assert.Zero(t, n)
}

func TestFindOrCreateByExternalID(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	first, err := store.FindOrCreateByExternalID(ctx, "google", "g-123")
	require.NoError(t, err)
	assert.Equal(t, "google", first.Provider)
	assert.Equal(t, "g-123", first.ExternalID)
	assert.True(t, first.IsExternal())
	assert.False(t, first.IsLocal())

	second, err := store.FindOrCreateByExternalID(ctx, "google", "g-123")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := store.FindOrCreateByExternalID(ctx, "google", "g-456")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = store.FindOrCreateByExternalID(ctx, "", "g-1")
	assert.Error(t, err)
	_, err = store.FindOrCreateByExternalID(ctx, "google", "")
	assert.Error(t, err)
}

func TestFindOrCreateByExternalIDConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	const workers = 8
	var wg sync.WaitGroup
	ids := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, err := store.FindOrCreateByExternalID(ctx, "google", "g-123")
			errs[i] = err
			if account != nil {
				ids[i] = account.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	n, err := store.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLocalAndExternalAccountsCoexist(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	// several external-only accounts leave identifier NULL
	_, err := store.FindOrCreateByExternalID(ctx, "google", "g-1")
	require.NoError(t, err)
	_, err = store.FindOrCreateByExternalID(ctx, "google", "g-2")
	require.NoError(t, err)

	_, err = store.Create(ctx, "alice", "pw1")
	require.NoError(t, err)
	_, err = store.Create(ctx, "bob", "pw2")
	require.NoError(t, err)

	n, err := store.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	// an external account has no password to verify against
	_, err = store.Verify(ctx, "", "")
	assert.ErrorIs(t, err, sp.ErrInvalidCredentials)
}

func TestGetAndDeleteAccount(t *testing.T) {
	ctx := context.Background()
	store := NewAccountStore(setupTestDB(t))

	account, err := store.Create(ctx, "alice", "pw1")
	require.NoError(t, err)

	got, err := store.GetAccountByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Identifier)
	assert.NotEmpty(t, got.PasswordHash)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, store.DeleteAccount(ctx, account.ID))
	_, err = store.GetAccountByID(ctx, account.ID)
	assert.ErrorIs(t, err, sp.ErrAccountNotFound)

	_, err = store.GetAccountByID(ctx, "does-not-exist")
	assert.ErrorIs(t, err, sp.ErrAccountNotFound)
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := NewAccountStore(db)
	account, err := store.Create(ctx, "alice", "pw1")
	require.NoError(t, err)

	closeDB(t, db)

	_, err = store.GetAccountByID(ctx, account.ID)
	assert.ErrorIs(t, err, sp.ErrStoreUnavailable)
	_, err = store.Verify(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, sp.ErrStoreUnavailable)
	_, err = store.Create(ctx, "bob", "pw2")
	assert.ErrorIs(t, err, sp.ErrStoreUnavailable)
	_, err = store.FindOrCreateByExternalID(ctx, "google", "g-1")
	assert.ErrorIs(t, err, sp.ErrStoreUnavailable)
	assert.False(t, sp.IsAuthFailure(err))
}

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"file:secrets.db", "file:secrets.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{"file:secrets.db?mode=rwc", "file:secrets.db?mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"},
		{"file:secrets.db?_pragma=journal_mode(WAL)", "file:secrets.db?_pragma=journal_mode(WAL)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sqliteDSN(tt.in))
	}
}

func TestSessionStore(t *testing.T) {
	db := setupTestDB(t)
	store, err := NewSessionStore(db, 0)
	require.NoError(t, err)

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, store.Commit("token-1", []byte("payload"), expiry))

	b, found, err := store.Find("token-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("payload"), b)

	require.NoError(t, store.Delete("token-1"))
	_, found, err = store.Find("token-1")
	require.NoError(t, err)
	assert.False(t, found)

	// expired rows are not returned
	require.NoError(t, store.Commit("token-2", []byte("old"), time.Now().Add(-time.Minute)))
	_, found, err = store.Find("token-2")
	require.NoError(t, err)
	assert.False(t, found)
}
