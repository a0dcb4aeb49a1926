// Package genesis maintains access to the genesis file.
package genesis

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
)

//go:embed genesis.yaml
var defaultGenesis []byte

// Account is a system account that exists before the first block.
type Account struct {
	ID        string `yaml:"id" json:"id"`
	Name      string `yaml:"name" json:"name"`
	OwnerKey  string `yaml:"owner_key,omitempty" json:"owner_key,omitempty"`
	ActiveKey string `yaml:"active_key,omitempty" json:"active_key,omitempty"`
	MemoKey   string `yaml:"memo_key,omitempty" json:"memo_key,omitempty"`
}

// Asset is an asset that exists before the first block.
type Asset struct {
	ID           string `yaml:"id" json:"id"`
	Symbol       string `yaml:"symbol" json:"symbol"`
	Precision    uint8  `yaml:"precision" json:"precision"`
	Issuer       string `yaml:"issuer" json:"issuer"`
	MaxSupply    int64  `yaml:"max_supply" json:"max_supply"`
	MaxMarketFee int64  `yaml:"max_market_fee" json:"max_market_fee"`
	Description  string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Balance is an initial distribution credited before replay.
type Balance struct {
	Account string `yaml:"account" json:"account"`
	Asset   string `yaml:"asset" json:"asset"`
	Amount  int64  `yaml:"amount" json:"amount"`
}

// Genesis represents the genesis file.
type Genesis struct {
	ChainID     string            `yaml:"chain_id" json:"chain_id"`
	BlockReward int64             `yaml:"block_reward" json:"block_reward"`
	Accounts    []Account         `yaml:"accounts" json:"accounts"`
	Assets      []Asset           `yaml:"assets" json:"assets"`
	Witnesses   map[string]string `yaml:"witnesses" json:"witnesses"`
	Balances    []Balance         `yaml:"balances" json:"balances"`
}

// Default returns the genesis compiled into the binary.
func Default() (Genesis, error) {
	return parse(defaultGenesis)
}

// Load opens and consumes the genesis file. An empty path loads the default.
func Load(path string) (Genesis, error) {
	if path == "" {
		return Default()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	return parse(content)
}

// Save writes the genesis file.
func Save(path string, g Genesis) error {
	content, err := yaml.Marshal(g)
	if err != nil {
		return err
	}

	return os.WriteFile(path, content, 0644)
}

func parse(content []byte) (Genesis, error) {
	var g Genesis
	if err := yaml.Unmarshal(content, &g); err != nil {
		return Genesis{}, fmt.Errorf("parsing genesis: %w", err)
	}

	if g.ChainID == "" {
		return Genesis{}, fmt.Errorf("parsing genesis: missing chain_id")
	}
	if g.BlockReward < 0 {
		return Genesis{}, fmt.Errorf("parsing genesis: negative block_reward")
	}

	return g, nil
}

// WitnessAccount returns the account a witness pays its rewards to.
func (g Genesis) WitnessAccount(witnessID string) (string, bool) {
	account, ok := g.Witnesses[witnessID]
	return account, ok
}

// Seed populates an empty ledger with the genesis accounts, assets and
// initial balances.
func (g Genesis) Seed(db *database.Database) error {
	for _, a := range g.Accounts {
		account := database.Account{
			ID:        a.ID,
			Name:      a.Name,
			OwnerKey:  a.OwnerKey,
			ActiveKey: a.ActiveKey,
			MemoKey:   a.MemoKey,
		}
		if err := db.SeedAccount(account); err != nil {
			return fmt.Errorf("account %s: %w", a.Name, err)
		}
	}

	for _, a := range g.Assets {
		asset := database.Asset{
			ID:        a.ID,
			Symbol:    a.Symbol,
			Precision: a.Precision,
			Issuer:    a.Issuer,
			MaxSupply: a.MaxSupply,
			Options: database.AssetOptions{
				MaxSupply:    a.MaxSupply,
				MaxMarketFee: a.MaxMarketFee,
				CoreExchangeRate: database.Price{
					Base:  database.AssetAmount{Amount: 1, AssetID: a.ID},
					Quote: database.AssetAmount{Amount: 1, AssetID: a.ID},
				},
				WhitelistAuthorities: []string{},
				BlacklistAuthorities: []string{},
				WhitelistMarkets:     []string{},
				BlacklistMarkets:     []string{},
				Description:          a.Description,
			},
		}
		if err := db.SeedAsset(asset); err != nil {
			return fmt.Errorf("asset %s: %w", a.Symbol, err)
		}
	}

	for _, b := range g.Balances {
		if err := db.Credit(b.Account, b.Asset, b.Amount); err != nil {
			return fmt.Errorf("balance %s/%s: %w", b.Account, b.Asset, err)
		}
	}

	return nil
}
