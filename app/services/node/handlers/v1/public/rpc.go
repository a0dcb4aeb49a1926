package public

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adamwoolhether/virtualnode/business/sys/validate"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/database"
	"github.com/adamwoolhether/virtualnode/foundation/blockchain/state"
	"github.com/adamwoolhether/virtualnode/foundation/rpc"
)

// maintenanceInterval is how often the legacy chain ran maintenance.
const maintenanceInterval = 86400 * time.Second

// Set of api ids handed out by the call envelope.
const (
	apiDatabase         = 2
	apiNetworkBroadcast = 3
	apiHistory          = 4
)

// RegisterMethods binds the legacy node's method table to the server.
func (h Handlers) RegisterMethods(srv *rpc.Server) {
	srv.RegisterAPI("database", apiDatabase)
	srv.RegisterAPI("network_broadcast", apiNetworkBroadcast)
	srv.RegisterAPI("history", apiHistory)

	srv.RegisterUngated("login", h.login)
	srv.RegisterUngated("get_chain_id", h.getChainID)
	srv.RegisterUngated("get_replay_status", h.getReplayStatus)

	srv.Register("get_dynamic_global_properties", mapErrors(h.getDynamicGlobalProperties))
	srv.Register("get_global_properties", mapErrors(h.getGlobalProperties))
	srv.Register("info", mapErrors(h.info))
	srv.Register("get_block", mapErrors(h.getBlock))
	srv.Register("get_account", mapErrors(h.getAccount))
	srv.Register("get_account_by_name", mapErrors(h.getAccountByName))
	srv.Register("get_accounts", mapErrors(h.getAccounts))
	srv.Register("get_account_count", mapErrors(h.getAccountCount))
	srv.Register("list_accounts", mapErrors(h.listAccounts))
	srv.Register("lookup_accounts", mapErrors(h.listAccounts))
	srv.Register("get_asset", mapErrors(h.getAsset))
	srv.Register("list_assets", mapErrors(h.listAssets))
	srv.Register("list_account_balances", mapErrors(h.listAccountBalances))
	srv.Register("get_account_balances", mapErrors(h.listAccountBalances))
	srv.Register("get_balance", mapErrors(h.getBalance))
	srv.Register("get_vesting_balances", mapErrors(h.getVestingBalances))
}

// Ready reports whether the state has been loaded.
func (h Handlers) Ready() error {
	_, err := h.State.Snapshot()
	return err
}

// /////////////////////////////////////////////////////////////////

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h Handlers) login(ctx context.Context, params rpc.Params) (any, error) {
	return true, nil
}

func (h Handlers) getChainID(ctx context.Context, params rpc.Params) (any, error) {
	return h.State.Genesis().ChainID, nil
}

func (h Handlers) getReplayStatus(ctx context.Context, params rpc.Params) (any, error) {
	return h.State.ReplayStatus(), nil
}

func (h Handlers) getDynamicGlobalProperties(ctx context.Context, params rpc.Params) (any, error) {
	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	now := h.now()
	next := nextMaintenance(now)

	var irreversible uint64
	if snap.HeadBlockNum > irreversibleLag {
		irreversible = snap.HeadBlockNum - irreversibleLag
	}

	props := dynamicGlobalProperties{
		ID:                             "2.1.0",
		HeadBlockNumber:                snap.HeadBlockNum,
		HeadBlockID:                    snap.HeadBlockID,
		Time:                           database.FormatTime(now),
		CurrentWitness:                 activeWitness,
		NextMaintenanceTime:            database.FormatTime(next),
		LastBudgetTime:                 database.FormatTime(next.Add(-maintenanceInterval)),
		AccountsRegisteredThisInterval: snap.DB.AccountCount(),
		RecentSlotsFilled:              recentSlotsFilled,
		LastIrreversibleBlockNum:       irreversible,
	}

	return props, nil
}

func (h Handlers) getGlobalProperties(ctx context.Context, params rpc.Params) (any, error) {
	props := globalProperties{
		ID:                     "2.0.0",
		Parameters:             legacyParameters,
		ActiveCommitteeMembers: []string{activeCommittee},
		ActiveWitnesses:        []string{activeWitness},
	}

	return props, nil
}

func (h Handlers) info(ctx context.Context, params rpc.Params) (any, error) {
	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	now := h.now()

	age := "unknown"
	if !snap.HeadBlockTime.IsZero() {
		age = fmt.Sprintf("%d seconds ago", int64(now.Sub(snap.HeadBlockTime).Seconds()))
	}

	info := nodeInfo{
		HeadBlockNum:           snap.HeadBlockNum,
		HeadBlockID:            snap.HeadBlockID,
		HeadBlockAge:           age,
		NextMaintenanceTime:    nextMaintenance(now).Format("2006-01-02 15:04:05"),
		ChainID:                h.State.Genesis().ChainID,
		Participation:          "100.00000000000000000",
		ActiveWitnesses:        []string{activeWitness},
		ActiveCommitteeMembers: []string{activeCommittee},
	}

	return info, nil
}

func (h Handlers) getBlock(ctx context.Context, params rpc.Params) (any, error) {
	num, err := params.Uint64(0)
	if err != nil {
		return nil, err
	}

	block, err := h.State.QueryBlock(num)
	if err != nil {
		return nil, err
	}

	if block == nil {
		return nil, nil
	}

	return block, nil
}

func (h Handlers) getAccount(ctx context.Context, params rpc.Params) (any, error) {
	nameOrID, err := params.String(0)
	if err != nil {
		return nil, err
	}

	account, ok, err := h.State.QueryAccount(nameOrID)
	if err != nil || !ok {
		return nil, err
	}

	return account, nil
}

func (h Handlers) getAccountByName(ctx context.Context, params rpc.Params) (any, error) {
	name, err := params.String(0)
	if err != nil {
		return nil, err
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	account, ok := snap.DB.AccountByName(name)
	if !ok {
		return nil, nil
	}

	return account, nil
}

func (h Handlers) getAccounts(ctx context.Context, params rpc.Params) (any, error) {
	var names []string
	if err := params.Decode(0, &names); err != nil {
		return nil, err
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	out := make([]*database.Account, len(names))
	for i, nameOrID := range names {
		if account, ok := snap.DB.ResolveAccount(nameOrID); ok {
			out[i] = &account
		}
	}

	return out, nil
}

func (h Handlers) getAccountCount(ctx context.Context, params rpc.Params) (any, error) {
	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	return snap.DB.AccountCount(), nil
}

func (h Handlers) listAccounts(ctx context.Context, params rpc.Params) (any, error) {
	lp, err := decodeList(params)
	if err != nil {
		return nil, err
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	accounts := snap.DB.ListAccounts(lp.Start, lp.Limit)

	out := make([][2]string, len(accounts))
	for i, account := range accounts {
		out[i] = [2]string{account.Name, account.ID}
	}

	return out, nil
}

func (h Handlers) getAsset(ctx context.Context, params rpc.Params) (any, error) {
	symbolOrID, err := params.String(0)
	if err != nil {
		return nil, err
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	var asset database.Asset
	var ok bool
	switch {
	case database.IsAssetID(symbolOrID):
		asset, ok = snap.DB.Asset(symbolOrID)
	default:
		asset, ok = snap.DB.AssetBySymbol(symbolOrID)
	}
	if !ok {
		return nil, nil
	}

	return asset, nil
}

func (h Handlers) listAssets(ctx context.Context, params rpc.Params) (any, error) {
	lp, err := decodeList(params)
	if err != nil {
		return nil, err
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	return snap.DB.ListAssets(lp.Start, lp.Limit), nil
}

func (h Handlers) listAccountBalances(ctx context.Context, params rpc.Params) (any, error) {
	bp, err := decodeBalance(params)
	if err != nil {
		return nil, err
	}

	balances, ok, err := h.State.QueryBalances(bp.Account)
	if err != nil {
		return nil, err
	}

	out := []database.AssetAmount{}
	if !ok {
		return out, nil
	}

	for _, b := range balances {
		if bp.Asset != "" && b.AssetID != bp.Asset {
			continue
		}
		out = append(out, database.AssetAmount{Amount: b.Amount, AssetID: b.AssetID})
	}

	return out, nil
}

func (h Handlers) getBalance(ctx context.Context, params rpc.Params) (any, error) {
	accountID, err := params.String(0)
	if err != nil {
		return nil, err
	}

	assetID, err := params.String(1)
	if err != nil {
		return nil, err
	}

	if err := validate.CheckObjectID(assetID); err != nil {
		return nil, rpc.InvalidParams("parameter 1: %s", err)
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	account, ok := snap.DB.ResolveAccount(accountID)
	if !ok {
		return nil, nil
	}

	amount, ok := snap.DB.Balance(account.ID, assetID)
	if !ok {
		return nil, nil
	}

	return database.AssetAmount{Amount: amount, AssetID: assetID}, nil
}

func (h Handlers) getVestingBalances(ctx context.Context, params rpc.Params) (any, error) {
	nameOrID, err := params.String(0)
	if err != nil {
		return nil, err
	}

	snap, err := h.State.Snapshot()
	if err != nil {
		return nil, err
	}

	out := []vestingBalance{}

	account, ok := snap.DB.ResolveAccount(nameOrID)
	if !ok {
		return out, nil
	}

	if amount, ok := snap.DB.Balance(account.ID, database.CoreAssetID); ok {
		out = append(out, vestingBalance{
			Owner:   account.ID,
			Balance: database.AssetAmount{Amount: amount, AssetID: database.CoreAssetID},
		})
	}

	return out, nil
}

// /////////////////////////////////////////////////////////////////

// decodeList reads [start, limit] with a default limit of 100.
func decodeList(params rpc.Params) (listParams, error) {
	var lp listParams
	var err error

	if lp.Start, err = params.OptionalString(0, ""); err != nil {
		return listParams{}, err
	}
	if lp.Limit, err = params.Int(1, 100); err != nil {
		return listParams{}, err
	}

	if err := checkParams(lp); err != nil {
		return listParams{}, err
	}

	return lp, nil
}

// decodeBalance reads [account, asset?].
func decodeBalance(params rpc.Params) (balanceParams, error) {
	var bp balanceParams
	var err error

	if bp.Account, err = params.String(0); err != nil {
		return balanceParams{}, err
	}
	if params.Has(1) {
		var assets []string
		if err := params.Decode(1, &assets); err == nil {
			if len(assets) > 0 {
				bp.Asset = assets[0]
			}
		} else if bp.Asset, err = params.String(1); err != nil {
			return balanceParams{}, err
		}
	}

	if err := checkParams(bp); err != nil {
		return balanceParams{}, err
	}

	return bp, nil
}

// checkParams runs the struct validation and maps failures to an invalid
// params error.
func checkParams(v any) error {
	if err := validate.Check(v); err != nil {
		if validate.IsFieldErrors(err) {
			return rpc.InvalidParams("%s", err)
		}
		return err
	}

	return nil
}

// nextMaintenance returns the next maintenance boundary after now.
func nextMaintenance(now time.Time) time.Time {
	return now.Truncate(maintenanceInterval).Add(maintenanceInterval)
}

// mapErrors reports a snapshot that disappeared between the ready gate and
// the handler with the not loaded code.
func mapErrors(fn rpc.HandlerFunc) rpc.HandlerFunc {
	return func(ctx context.Context, params rpc.Params) (any, error) {
		result, err := fn(ctx, params)
		if errors.Is(err, state.ErrNotLoaded) {
			return nil, rpc.NewError(rpc.CodeNotLoaded, "%s", err)
		}
		return result, err
	}
}
