package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
)

const (
	alice = "1.2.100"
	bob   = "1.2.101"
	xom   = database.CoreAssetID
)

func transfer(from, to string, amount int64) database.Transfer {
	return database.Transfer{
		From:   from,
		To:     to,
		Amount: database.AssetAmount{Amount: amount, AssetID: xom},
	}
}

func seeded(t *testing.T) *database.Database {
	t.Helper()

	db := database.New()
	require.NoError(t, db.SeedAccount(database.Account{ID: alice, Name: "alice"}))
	require.NoError(t, db.SeedAccount(database.Account{ID: bob, Name: "bob"}))
	require.NoError(t, db.SeedAsset(database.Asset{ID: xom, Symbol: "XOM", Precision: 5, Issuer: "1.2.3"}))
	require.NoError(t, db.Credit(alice, xom, 100))

	return db
}

func TestTransferOrderSensitivity(t *testing.T) {
	db := seeded(t)

	require.NoError(t, db.ApplyOperation(1, transfer(alice, bob, 60)))
	err := db.ApplyOperation(1, transfer(alice, bob, 60))
	require.ErrorIs(t, err, database.ErrInsufficientBalance)

	a, _ := db.Balance(alice, xom)
	b, _ := db.Balance(bob, xom)
	assert.Equal(t, int64(40), a)
	assert.Equal(t, int64(60), b)

	c := db.Counters()
	assert.Equal(t, uint64(1), c.Accepted)
	assert.Equal(t, uint64(1), c.Rejected)
	assert.Equal(t, uint64(1), c.Insufficient)

	require.NoError(t, db.Verify())
}

func TestTransferFee(t *testing.T) {
	tt := []struct {
		name    string
		amount  int64
		fee     database.AssetAmount
		wantErr error
		alice   int64
		bob     int64
	}{
		{"fee covered", 90, database.AssetAmount{Amount: 10, AssetID: xom}, nil, 0, 90},
		{"fee not covered", 91, database.AssetAmount{Amount: 10, AssetID: xom}, database.ErrInsufficientBalance, 100, 0},
		{"fee in missing asset", 10, database.AssetAmount{Amount: 1, AssetID: "1.3.7"}, database.ErrInsufficientBalance, 100, 0},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			db := seeded(t)

			op := transfer(alice, bob, tc.amount)
			fee := tc.fee
			op.Fee = &fee

			err := db.ApplyOperation(2, op)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}

			a, _ := db.Balance(alice, xom)
			b, _ := db.Balance(bob, xom)
			assert.Equal(t, tc.alice, a)
			assert.Equal(t, tc.bob, b)
		})
	}
}

func TestTransferCountsOps(t *testing.T) {
	db := seeded(t)
	require.NoError(t, db.ApplyOperation(1, transfer(alice, bob, 1)))

	a, _ := db.Account(alice)
	b, _ := db.Account(bob)
	assert.Equal(t, uint64(1), a.TotalOps)
	assert.Equal(t, uint64(1), b.TotalOps)
}

func TestTransferToSelf(t *testing.T) {
	db := seeded(t)

	op := transfer(alice, alice, 50)
	op.Fee = &database.AssetAmount{Amount: 5, AssetID: xom}
	require.NoError(t, db.ApplyOperation(1, op))

	a, _ := db.Balance(alice, xom)
	assert.Equal(t, int64(95), a)
}

func TestAccountCreate(t *testing.T) {
	db := seeded(t)

	create := database.AccountCreate{
		Registrar: alice,
		Referrer:  alice,
		Name:      "nathan",
		Owner:     authority("owner-key"),
		Active:    authority("active-key"),
		Options:   database.AccountOptions{MemoKey: "memo-key"},
	}

	require.NoError(t, db.ApplyOperation(12, create))

	got, ok := db.AccountByName("nathan")
	require.True(t, ok)
	assert.Equal(t, "1.2.102", got.ID)
	assert.Equal(t, "owner-key", got.OwnerKey)
	assert.Equal(t, "active-key", got.ActiveKey)
	assert.Equal(t, "memo-key", got.MemoKey)
	assert.Equal(t, uint64(12), got.CreationBlock)

	err := db.ApplyOperation(13, create)
	require.ErrorIs(t, err, database.ErrDuplicateEntity)
	assert.Equal(t, 3, db.AccountCount())
	assert.Equal(t, uint64(1), db.Counters().Duplicate)
}

func TestAssetCreateAndIssue(t *testing.T) {
	db := seeded(t)

	create := sampleOperations()[2].(database.AssetCreate)
	require.NoError(t, db.ApplyOperation(3, create))
	require.ErrorIs(t, db.ApplyOperation(4, create), database.ErrDuplicateEntity)

	asset, ok := db.AssetBySymbol("BAZAAR")
	require.True(t, ok)
	assert.Equal(t, "1.3.1", asset.ID)
	assert.Equal(t, "2.3.1", asset.DynamicAssetDataID)

	issue := database.AssetIssue{
		Issuer:         "1.2.3",
		AssetToIssue:   database.AssetAmount{Amount: 700, AssetID: asset.ID},
		IssueToAccount: bob,
	}
	require.NoError(t, db.ApplyOperation(5, issue))

	amount, ok := db.Balance(bob, asset.ID)
	require.True(t, ok)
	assert.Equal(t, int64(700), amount)
}

func TestUnsupportedIsCounted(t *testing.T) {
	db := seeded(t)

	require.NoError(t, db.ApplyOperation(1, database.Unsupported{Type: 33}))
	assert.Equal(t, uint64(1), db.Counters().Unsupported)
	assert.Equal(t, uint64(0), db.Counters().Rejected)
}

func TestReplayIsIdempotent(t *testing.T) {
	stream := []database.Operation{
		transfer(alice, bob, 30),
		sampleOperations()[1],
		transfer(bob, alice, 10),
		transfer(bob, "1.2.102", 25),
		transfer(alice, bob, 500),
		sampleOperations()[2],
		sampleOperations()[1],
	}

	replay := func() *database.Database {
		db := seeded(t)
		for i, op := range stream {
			db.ApplyOperation(uint64(i+1), op)
		}
		require.NoError(t, db.Verify())
		return db
	}

	first := replay()
	second := replay()

	assert.Equal(t, first.CopyBalances(), second.CopyBalances())
	assert.Equal(t, first.ListAccounts("", -1), second.ListAccounts("", -1))
	assert.Equal(t, first.ListAssets("", -1), second.ListAssets("", -1))
	assert.Equal(t, first.Counters(), second.Counters())
}

func TestListAccounts(t *testing.T) {
	db := database.New()
	for i, name := range []string{"omnibazaar", "listings", "nathan"} {
		require.NoError(t, db.SeedAccount(database.Account{ID: database.AccountID(uint64(i)), Name: name}))
	}

	got := db.ListAccounts("m", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "nathan", got[0].Name)
	assert.Equal(t, "omnibazaar", got[1].Name)

	_, ok := db.AccountByName("missing")
	assert.False(t, ok)
}

func TestResolveAccount(t *testing.T) {
	db := seeded(t)

	byName, ok := db.ResolveAccount("bob")
	require.True(t, ok)
	byID, ok := db.ResolveAccount(bob)
	require.True(t, ok)
	assert.Equal(t, byName, byID)
}

func TestSeedDuplicates(t *testing.T) {
	db := seeded(t)

	require.ErrorIs(t, db.SeedAccount(database.Account{ID: "1.2.200", Name: "alice"}), database.ErrDuplicateEntity)
	require.ErrorIs(t, db.SeedAsset(database.Asset{ID: "1.3.9", Symbol: "XOM"}), database.ErrDuplicateEntity)
	require.Error(t, db.SeedAccount(database.Account{ID: "1.3.5", Name: "carol"}))
}
