package database

import "fmt"

// Account represents a named account reconstructed from the chain.
type Account struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	OwnerKey      string `json:"owner_key"`
	ActiveKey     string `json:"active_key"`
	MemoKey       string `json:"memo_key"`
	Registrar     string `json:"registrar"`
	Referrer      string `json:"referrer"`
	CreationBlock uint64 `json:"creation_block"`
	TotalOps      uint64 `json:"total_ops"`
}

// Asset represents an asset reconstructed from the chain.
type Asset struct {
	ID                 string       `json:"id"`
	Symbol             string       `json:"symbol"`
	Precision          uint8        `json:"precision"`
	Issuer             string       `json:"issuer"`
	MaxSupply          int64        `json:"max_supply"`
	Options            AssetOptions `json:"options"`
	DynamicAssetDataID string       `json:"dynamic_asset_data_id"`
	CreationBlock      uint64       `json:"creation_block"`
}

// Balance is the amount of one asset held by one account.
type Balance struct {
	AccountID string `json:"owner"`
	AssetID   string `json:"asset_type"`
	Amount    int64  `json:"balance"`
}

// Counters tracks the outcome of every operation applied to the ledger.
type Counters struct {
	Accepted     uint64 `json:"accepted"`
	Rejected     uint64 `json:"rejected"`
	Duplicate    uint64 `json:"rejected_duplicate"`
	Insufficient uint64 `json:"rejected_insufficient"`
	Overflow     uint64 `json:"rejected_overflow"`
	Unsupported  uint64 `json:"unsupported"`
	Issued       uint64 `json:"issued"`
}

type balanceKey struct {
	account string
	asset   string
}

// dynamicAssetDataID is the object holding an asset's supply figures.
func dynamicAssetDataID(assetID string) string {
	instance, _ := instanceOf(assetID)
	return fmt.Sprintf("2.3.%d", instance)
}
