package genesis_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/genesis"
)

func TestDefault(t *testing.T) {
	g, err := genesis.Default()
	require.NoError(t, err)

	assert.Equal(t, "4556f5208cef79027fa6af7178c22c8965270a176671f60cb2c2c5874fafcb4d", g.ChainID)
	assert.Len(t, g.Accounts, 22)
	require.Len(t, g.Assets, 1)
	assert.Equal(t, "XOM", g.Assets[0].Symbol)

	account, ok := g.WitnessAccount("1.6.0")
	require.True(t, ok)
	assert.Equal(t, "1.2.1", account)

	db := database.New()
	require.NoError(t, g.Seed(db))
	assert.Equal(t, 22, db.AccountCount())

	nathan, ok := db.AccountByName("nathan")
	require.True(t, ok)
	assert.Equal(t, "1.2.120", nathan.ID)

	xom, ok := db.AssetBySymbol("xom")
	require.True(t, ok)
	assert.Equal(t, "2.3.0", xom.DynamicAssetDataID)
}

func TestSaveLoad(t *testing.T) {
	want := genesis.Genesis{
		ChainID:     "abcd",
		BlockReward: 15,
		Accounts:    []genesis.Account{{ID: "1.2.100", Name: "alice"}},
		Assets:      []genesis.Asset{{ID: "1.3.0", Symbol: "XOM", Precision: 5, Issuer: "1.2.100"}},
		Witnesses:   map[string]string{"1.6.1": "1.2.100"},
		Balances:    []genesis.Balance{{Account: "1.2.100", Asset: "1.3.0", Amount: 500}},
	}

	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, genesis.Save(path, want))

	got, err := genesis.Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	db := database.New()
	require.NoError(t, got.Seed(db))
	amount, ok := db.Balance("1.2.100", "1.3.0")
	require.True(t, ok)
	assert.Equal(t, int64(500), amount)
}

func TestLoadMissingChainID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, genesis.Save(path, genesis.Genesis{}))

	_, err := genesis.Load(path)
	require.Error(t, err)
}
