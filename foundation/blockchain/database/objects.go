package database

import (
	"fmt"
	"math"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/fcraw"
)

// Object spaces and types for the identifiers that appear on the wire.
// Only the instance number is encoded, the space and type are implied by
// the field being read.
const (
	ProtocolSpace uint64 = 1

	AccountType   uint64 = 2
	AssetType     uint64 = 3
	CommitteeType uint64 = 5
	WitnessType   uint64 = 6
)

// CoreAssetID is the asset every chain fee and reward is paid in.
const CoreAssetID = "1.3.0"

// maxAmount is the largest wire amount that fits a signed balance.
const maxAmount = uint64(math.MaxInt64)

// AccountID renders the object id for an account instance.
func AccountID(instance uint64) string {
	return fcraw.FormatObjectID(ProtocolSpace, AccountType, instance)
}

// AssetID renders the object id for an asset instance.
func AssetID(instance uint64) string {
	return fcraw.FormatObjectID(ProtocolSpace, AssetType, instance)
}

// WitnessID renders the object id for a witness instance.
func WitnessID(instance uint64) string {
	return fcraw.FormatObjectID(ProtocolSpace, WitnessType, instance)
}

// IsAccountID reports whether the string is a well formed account id.
func IsAccountID(id string) bool {
	s, t, _, err := fcraw.ParseObjectID(id)
	return err == nil && s == ProtocolSpace && t == AccountType
}

// IsAssetID reports whether the string is a well formed asset id.
func IsAssetID(id string) bool {
	s, t, _, err := fcraw.ParseObjectID(id)
	return err == nil && s == ProtocolSpace && t == AssetType
}

// instanceOf returns the instance part of an object id, or false if the id
// is malformed.
func instanceOf(id string) (uint64, bool) {
	_, _, instance, err := fcraw.ParseObjectID(id)
	if err != nil {
		return 0, false
	}

	return instance, true
}

// /////////////////////////////////////////////////////////////////

// AssetAmount is a quantity of an asset in its base unit.
type AssetAmount struct {
	Amount  int64  `json:"amount"`
	AssetID string `json:"asset_id"`
}

func readAccount(r *fcraw.Reader) (string, error) {
	return r.ReadObjectID(ProtocolSpace, AccountType)
}

func readAsset(r *fcraw.Reader) (string, error) {
	return r.ReadObjectID(ProtocolSpace, AssetType)
}

func readAssetAmount(r *fcraw.Reader) (AssetAmount, error) {
	amount, assetID, err := r.ReadAssetAmount(ProtocolSpace, AssetType)
	if err != nil {
		return AssetAmount{}, err
	}

	if amount > maxAmount {
		return AssetAmount{}, fmt.Errorf("%w: %d of %s", ErrAmountOverflow, amount, assetID)
	}

	return AssetAmount{Amount: int64(amount), AssetID: assetID}, nil
}

func writeAccount(w *fcraw.Writer, id string) {
	w.WriteObjectID(id, ProtocolSpace, AccountType)
}

func writeAsset(w *fcraw.Writer, id string) {
	w.WriteObjectID(id, ProtocolSpace, AssetType)
}

func writeAssetAmount(w *fcraw.Writer, a AssetAmount) {
	if a.Amount < 0 {
		w.Fail(fmt.Errorf("negative amount %d of %s", a.Amount, a.AssetID))
		return
	}

	w.WriteAssetAmount(uint64(a.Amount), a.AssetID, ProtocolSpace, AssetType)
}
