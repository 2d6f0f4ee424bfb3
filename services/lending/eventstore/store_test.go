package eventstore

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"moneymarket/core/events"
	"moneymarket/crypto"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func testAddress(prefix crypto.AddressPrefix, b byte) crypto.Address {
	return crypto.NewAddress(prefix, bytes.Repeat([]byte{b}, crypto.AddressLength))
}

func TestAppendAndList(t *testing.T) {
	store, err := New(setupTestDB(t))
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	asset := testAddress(crypto.AssetPrefix, 1)
	user := testAddress(crypto.AccountPrefix, 2)
	store.Emit(events.Supply{Asset: asset, User: user, OnBehalfOf: user, Amount: uint256.NewInt(500)})
	store.Emit(events.Borrow{Asset: asset, User: user, OnBehalfOf: user, Amount: uint256.NewInt(100), BorrowRate: uint256.NewInt(7)})
	store.Emit(events.MintedToTreasury{Asset: testAddress(crypto.AssetPrefix, 3), Amount: uint256.NewInt(9)})

	all, err := store.List(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, record := range all {
		require.Equal(t, uint64(i+1), record.Sequence)
		require.Equal(t, recordID(record.Sequence, record.Type), record.ID)
	}
	require.Equal(t, events.TypeSupply, all[0].Type)
	require.Equal(t, asset.String(), all[0].Asset)
	require.Equal(t, user.String(), all[0].Account)
	require.True(t, now.Equal(all[0].CreatedAt))

	attrs, err := all[1].Decode()
	require.NoError(t, err)
	require.Equal(t, "100", attrs["amount"])

	byType, err := store.List(context.Background(), Query{Type: events.TypeBorrow})
	require.NoError(t, err)
	require.Len(t, byType, 1)

	byAsset, err := store.List(context.Background(), Query{Asset: asset.String()})
	require.NoError(t, err)
	require.Len(t, byAsset, 2)

	byAccount, err := store.List(context.Background(), Query{Account: user.String(), After: 1})
	require.NoError(t, err)
	require.Len(t, byAccount, 1)
	require.Equal(t, uint64(2), byAccount[0].Sequence)

	page, err := store.List(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	db := setupTestDB(t)
	store, err := New(db)
	require.NoError(t, err)
	_, err = store.Append(context.Background(), events.UserEModeSet{User: testAddress(crypto.AccountPrefix, 1), CategoryID: 1})
	require.NoError(t, err)

	reopened, err := New(db)
	require.NoError(t, err)
	record, err := reopened.Append(context.Background(), events.UserEModeSet{User: testAddress(crypto.AccountPrefix, 1)})
	require.NoError(t, err)
	require.Equal(t, uint64(2), record.Sequence)
}

func TestAppendRejectsNilEvent(t *testing.T) {
	store, err := New(setupTestDB(t))
	require.NoError(t, err)
	_, err = store.Append(context.Background(), nil)
	require.Error(t, err)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.ErrorContains(t, err, "unsupported driver")
}
