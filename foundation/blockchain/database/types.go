package database

import (
	"encoding/json"
	"fmt"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/fcraw"
)

// Memo is the optional encrypted note attached to transfers and issues.
type Memo struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Nonce   uint64 `json:"nonce"`
	Message []byte `json:"message"`
}

// AccountAuth is a weighted account entry of an authority.
type AccountAuth struct {
	Account string
	Weight  uint16
}

// MarshalJSON renders the entry as the [id, weight] pair wallets expect.
func (a AccountAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{a.Account, a.Weight})
}

// KeyAuth is a weighted key or address entry of an authority.
type KeyAuth struct {
	Key    string
	Weight uint16
}

// MarshalJSON renders the entry as the [key, weight] pair wallets expect.
func (k KeyAuth) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{k.Key, k.Weight})
}

// Authority is the threshold structure that controls an account.
type Authority struct {
	WeightThreshold uint32        `json:"weight_threshold"`
	AccountAuths    []AccountAuth `json:"account_auths"`
	KeyAuths        []KeyAuth     `json:"key_auths"`
	AddressAuths    []KeyAuth     `json:"address_auths"`
}

// FirstKey returns the first key of the authority or an empty string.
func (a Authority) FirstKey() string {
	if len(a.KeyAuths) == 0 {
		return ""
	}

	return a.KeyAuths[0].Key
}

// AccountOptions holds the mutable settings of an account.
type AccountOptions struct {
	MemoKey       string   `json:"memo_key"`
	VotingAccount string   `json:"voting_account"`
	NumWitness    uint16   `json:"num_witness"`
	NumCommittee  uint16   `json:"num_committee"`
	Votes         []uint64 `json:"votes"`
}

// Price is an exchange rate between two assets.
type Price struct {
	Base  AssetAmount `json:"base"`
	Quote AssetAmount `json:"quote"`
}

// AssetOptions holds the settings common to every asset.
type AssetOptions struct {
	MaxSupply            int64    `json:"max_supply,string"`
	MarketFeePercent     uint16   `json:"market_fee_percent"`
	MaxMarketFee         int64    `json:"max_market_fee,string"`
	IssuerPermissions    uint16   `json:"issuer_permissions"`
	Flags                uint16   `json:"flags"`
	CoreExchangeRate     Price    `json:"core_exchange_rate"`
	WhitelistAuthorities []string `json:"whitelist_authorities"`
	BlacklistAuthorities []string `json:"blacklist_authorities"`
	WhitelistMarkets     []string `json:"whitelist_markets"`
	BlacklistMarkets     []string `json:"blacklist_markets"`
	Description          string   `json:"description"`
}

// BitassetOptions holds the settings of market pegged assets.
type BitassetOptions struct {
	FeedLifetimeSec              uint32 `json:"feed_lifetime_sec"`
	MinimumFeeds                 uint8  `json:"minimum_feeds"`
	ForceSettlementDelaySec      uint32 `json:"force_settlement_delay_sec"`
	ForceSettlementOffsetPercent uint16 `json:"force_settlement_offset_percent"`
	MaximumForceSettlementVolume uint16 `json:"maximum_force_settlement_volume"`
	ShortBackingAsset            string `json:"short_backing_asset"`
}

// /////////////////////////////////////////////////////////////////
// Wire layout of the shared substructures. Field order is part of the
// format and must match the order of the struct declarations above.

// readExtensions consumes an extensions list. Extension elements carry no
// length information, so anything but an empty list leaves the rest of the
// input undecodable.
func readExtensions(r *fcraw.Reader) error {
	n, err := r.ReadVarint()
	if err != nil {
		return err
	}

	if n != 0 {
		return fmt.Errorf("%w: %d extensions at offset %d", ErrUnknownOperationLayout, n, r.Pos())
	}

	return nil
}

func writeExtensions(w *fcraw.Writer) {
	w.WriteVarint(0)
}

func readMemo(r *fcraw.Reader) (Memo, error) {
	var m Memo
	var err error

	if m.From, err = r.ReadString(); err != nil {
		return Memo{}, err
	}
	if m.To, err = r.ReadString(); err != nil {
		return Memo{}, err
	}
	if m.Nonce, err = r.ReadU64(); err != nil {
		return Memo{}, err
	}
	if m.Message, err = r.ReadBytes(); err != nil {
		return Memo{}, err
	}

	return m, nil
}

func writeMemo(w *fcraw.Writer, m Memo) {
	w.WriteString(m.From)
	w.WriteString(m.To)
	w.WriteU64(m.Nonce)
	w.WriteBytes(m.Message)
}

func readAccountAuth(r *fcraw.Reader) (AccountAuth, error) {
	id, err := readAccount(r)
	if err != nil {
		return AccountAuth{}, err
	}

	weight, err := r.ReadU16()
	if err != nil {
		return AccountAuth{}, err
	}

	return AccountAuth{Account: id, Weight: weight}, nil
}

func readKeyAuth(r *fcraw.Reader) (KeyAuth, error) {
	key, err := r.ReadString()
	if err != nil {
		return KeyAuth{}, err
	}

	weight, err := r.ReadU16()
	if err != nil {
		return KeyAuth{}, err
	}

	return KeyAuth{Key: key, Weight: weight}, nil
}

func readAuthority(r *fcraw.Reader) (Authority, error) {
	var a Authority
	var err error

	if a.WeightThreshold, err = r.ReadU32(); err != nil {
		return Authority{}, err
	}
	if a.AccountAuths, err = fcraw.ReadArray(r, readAccountAuth); err != nil {
		return Authority{}, fmt.Errorf("account_auths: %w", err)
	}
	if a.KeyAuths, err = fcraw.ReadArray(r, readKeyAuth); err != nil {
		return Authority{}, fmt.Errorf("key_auths: %w", err)
	}
	if a.AddressAuths, err = fcraw.ReadArray(r, readKeyAuth); err != nil {
		return Authority{}, fmt.Errorf("address_auths: %w", err)
	}

	return a, nil
}

func writeAuthority(w *fcraw.Writer, a Authority) {
	w.WriteU32(a.WeightThreshold)
	fcraw.WriteArray(w, a.AccountAuths, func(w *fcraw.Writer, aa AccountAuth) {
		writeAccount(w, aa.Account)
		w.WriteU16(aa.Weight)
	})
	writeKeyAuths := func(w *fcraw.Writer, ka KeyAuth) {
		w.WriteString(ka.Key)
		w.WriteU16(ka.Weight)
	}
	fcraw.WriteArray(w, a.KeyAuths, writeKeyAuths)
	fcraw.WriteArray(w, a.AddressAuths, writeKeyAuths)
}

func readAccountOptions(r *fcraw.Reader) (AccountOptions, error) {
	var o AccountOptions
	var err error

	if o.MemoKey, err = r.ReadString(); err != nil {
		return AccountOptions{}, err
	}
	if o.VotingAccount, err = readAccount(r); err != nil {
		return AccountOptions{}, err
	}
	if o.NumWitness, err = r.ReadU16(); err != nil {
		return AccountOptions{}, err
	}
	if o.NumCommittee, err = r.ReadU16(); err != nil {
		return AccountOptions{}, err
	}
	if o.Votes, err = fcraw.ReadArray(r, (*fcraw.Reader).ReadVarint); err != nil {
		return AccountOptions{}, fmt.Errorf("votes: %w", err)
	}
	if err := readExtensions(r); err != nil {
		return AccountOptions{}, err
	}

	return o, nil
}

func writeAccountOptions(w *fcraw.Writer, o AccountOptions) {
	w.WriteString(o.MemoKey)
	writeAccount(w, o.VotingAccount)
	w.WriteU16(o.NumWitness)
	w.WriteU16(o.NumCommittee)
	fcraw.WriteArray(w, o.Votes, (*fcraw.Writer).WriteVarint)
	writeExtensions(w)
}

func readPrice(r *fcraw.Reader) (Price, error) {
	base, err := readAssetAmount(r)
	if err != nil {
		return Price{}, err
	}

	quote, err := readAssetAmount(r)
	if err != nil {
		return Price{}, err
	}

	return Price{Base: base, Quote: quote}, nil
}

func readAssetOptions(r *fcraw.Reader) (AssetOptions, error) {
	var o AssetOptions

	maxSupply, err := r.ReadU64()
	if err != nil {
		return AssetOptions{}, err
	}
	if o.MarketFeePercent, err = r.ReadU16(); err != nil {
		return AssetOptions{}, err
	}
	maxMarketFee, err := r.ReadU64()
	if err != nil {
		return AssetOptions{}, err
	}
	if o.IssuerPermissions, err = r.ReadU16(); err != nil {
		return AssetOptions{}, err
	}
	if o.Flags, err = r.ReadU16(); err != nil {
		return AssetOptions{}, err
	}
	if o.CoreExchangeRate, err = readPrice(r); err != nil {
		return AssetOptions{}, fmt.Errorf("core_exchange_rate: %w", err)
	}
	if o.WhitelistAuthorities, err = fcraw.ReadArray(r, readAccount); err != nil {
		return AssetOptions{}, err
	}
	if o.BlacklistAuthorities, err = fcraw.ReadArray(r, readAccount); err != nil {
		return AssetOptions{}, err
	}
	if o.WhitelistMarkets, err = fcraw.ReadArray(r, readAsset); err != nil {
		return AssetOptions{}, err
	}
	if o.BlacklistMarkets, err = fcraw.ReadArray(r, readAsset); err != nil {
		return AssetOptions{}, err
	}
	if o.Description, err = r.ReadString(); err != nil {
		return AssetOptions{}, err
	}
	if err := readExtensions(r); err != nil {
		return AssetOptions{}, err
	}

	if maxSupply > maxAmount || maxMarketFee > maxAmount {
		return AssetOptions{}, fmt.Errorf("%w: max_supply %d max_market_fee %d", ErrAmountOverflow, maxSupply, maxMarketFee)
	}
	o.MaxSupply = int64(maxSupply)
	o.MaxMarketFee = int64(maxMarketFee)

	return o, nil
}

func writeAssetOptions(w *fcraw.Writer, o AssetOptions) {
	w.WriteU64(uint64(o.MaxSupply))
	w.WriteU16(o.MarketFeePercent)
	w.WriteU64(uint64(o.MaxMarketFee))
	w.WriteU16(o.IssuerPermissions)
	w.WriteU16(o.Flags)
	writeAssetAmount(w, o.CoreExchangeRate.Base)
	writeAssetAmount(w, o.CoreExchangeRate.Quote)
	fcraw.WriteArray(w, o.WhitelistAuthorities, writeAccount)
	fcraw.WriteArray(w, o.BlacklistAuthorities, writeAccount)
	fcraw.WriteArray(w, o.WhitelistMarkets, writeAsset)
	fcraw.WriteArray(w, o.BlacklistMarkets, writeAsset)
	w.WriteString(o.Description)
	writeExtensions(w)
}

func readBitassetOptions(r *fcraw.Reader) (BitassetOptions, error) {
	var o BitassetOptions
	var err error

	if o.FeedLifetimeSec, err = r.ReadU32(); err != nil {
		return BitassetOptions{}, err
	}
	if o.MinimumFeeds, err = r.ReadU8(); err != nil {
		return BitassetOptions{}, err
	}
	if o.ForceSettlementDelaySec, err = r.ReadU32(); err != nil {
		return BitassetOptions{}, err
	}
	if o.ForceSettlementOffsetPercent, err = r.ReadU16(); err != nil {
		return BitassetOptions{}, err
	}
	if o.MaximumForceSettlementVolume, err = r.ReadU16(); err != nil {
		return BitassetOptions{}, err
	}
	if o.ShortBackingAsset, err = readAsset(r); err != nil {
		return BitassetOptions{}, err
	}
	if err := readExtensions(r); err != nil {
		return BitassetOptions{}, err
	}

	return o, nil
}

func writeBitassetOptions(w *fcraw.Writer, o BitassetOptions) {
	w.WriteU32(o.FeedLifetimeSec)
	w.WriteU8(o.MinimumFeeds)
	w.WriteU32(o.ForceSettlementDelaySec)
	w.WriteU16(o.ForceSettlementOffsetPercent)
	w.WriteU16(o.MaximumForceSettlementVolume)
	writeAsset(w, o.ShortBackingAsset)
	writeExtensions(w)
}
