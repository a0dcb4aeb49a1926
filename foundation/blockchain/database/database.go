// Package database maintains the accounts, assets and balances derived from
// the chain, along with the wire codec for blocks and operations.
package database

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Database manages the ledger folded from the chain's operations. Operations
// must be applied in chain order by a single goroutine, readers may query
// concurrently.
type Database struct {
	mu sync.RWMutex

	accounts map[string]Account // keyed by id
	names    map[string]string  // name to id
	assets   map[string]Asset   // keyed by id
	symbols  map[string]string  // symbol to id
	balances map[balanceKey]int64

	nextAccount uint64
	nextAsset   uint64
	counters    Counters
}

// New constructs an empty ledger.
func New() *Database {
	return &Database{
		accounts: make(map[string]Account),
		names:    make(map[string]string),
		assets:   make(map[string]Asset),
		symbols:  make(map[string]string),
		balances: make(map[balanceKey]int64),
	}
}

// SeedAccount adds a pre-existing account, such as the chain's system
// accounts. The account keeps its id.
func (db *Database) SeedAccount(account Account) error {
	instance, ok := instanceOf(account.ID)
	if !ok || !IsAccountID(account.ID) {
		return fmt.Errorf("seed account %q: bad id %q", account.Name, account.ID)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.names[account.Name]; exists {
		return fmt.Errorf("seed account %q: %w", account.Name, ErrDuplicateEntity)
	}
	if _, exists := db.accounts[account.ID]; exists {
		return fmt.Errorf("seed account %q: id %s: %w", account.Name, account.ID, ErrDuplicateEntity)
	}

	db.accounts[account.ID] = account
	db.names[account.Name] = account.ID
	if instance >= db.nextAccount {
		db.nextAccount = instance + 1
	}

	return nil
}

// SeedAsset adds a pre-existing asset, such as the core asset.
func (db *Database) SeedAsset(asset Asset) error {
	instance, ok := instanceOf(asset.ID)
	if !ok || !IsAssetID(asset.ID) {
		return fmt.Errorf("seed asset %q: bad id %q", asset.Symbol, asset.ID)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.symbols[asset.Symbol]; exists {
		return fmt.Errorf("seed asset %q: %w", asset.Symbol, ErrDuplicateEntity)
	}
	if _, exists := db.assets[asset.ID]; exists {
		return fmt.Errorf("seed asset %q: id %s: %w", asset.Symbol, asset.ID, ErrDuplicateEntity)
	}

	if asset.DynamicAssetDataID == "" {
		asset.DynamicAssetDataID = dynamicAssetDataID(asset.ID)
	}

	db.assets[asset.ID] = asset
	db.symbols[asset.Symbol] = asset.ID
	if instance >= db.nextAsset {
		db.nextAsset = instance + 1
	}

	return nil
}

// Credit issues the amount to the account without debiting anyone. It
// serves the initial distribution and block rewards.
func (db *Database) Credit(accountID, assetID string, amount int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.credit(accountID, assetID, amount); err != nil {
		db.reject(err)
		return err
	}
	db.counters.Issued++

	return nil
}

// ApplyBlockReward credits the producing witness's account with the reward.
func (db *Database) ApplyBlockReward(block SignedBlock, accountID string, reward int64) error {
	if reward == 0 || accountID == "" {
		return nil
	}

	if err := db.Credit(accountID, CoreAssetID, reward); err != nil {
		return fmt.Errorf("block %d reward: %w", block.Number, err)
	}

	return nil
}

// ApplyOperation performs the business logic for applying an operation
// found in the specified block. A rejected operation leaves the ledger
// unchanged and returns an error matching ErrDuplicateEntity,
// ErrInsufficientBalance or ErrAmountOverflow. Rejections are expected
// during replay and are counted, not fatal.
func (db *Database) ApplyOperation(blockNum uint64, op Operation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var err error
	switch op := op.(type) {
	case Transfer:
		err = db.applyTransfer(op)
	case AccountCreate:
		err = db.applyAccountCreate(blockNum, op)
	case AssetCreate:
		err = db.applyAssetCreate(blockNum, op)
	case AssetIssue:
		err = db.credit(op.IssueToAccount, op.AssetToIssue.AssetID, op.AssetToIssue.Amount)
		if err == nil {
			db.counters.Issued++
		}
	case Unsupported:
		db.counters.Unsupported++
		return nil
	default:
		return fmt.Errorf("unexpected operation %T", op)
	}

	if err != nil {
		db.reject(err)
		return fmt.Errorf("block %d: op %d: %w", blockNum, op.TypeID(), err)
	}
	db.counters.Accepted++

	return nil
}

// applyTransfer moves the amount and debits the fee. Either every balance
// changes or none do.
func (db *Database) applyTransfer(op Transfer) error {
	fromAmount := balanceKey{op.From, op.Amount.AssetID}
	toAmount := balanceKey{op.To, op.Amount.AssetID}

	if op.Amount.Amount < 0 {
		return fmt.Errorf("%w: negative amount %d", ErrInsufficientBalance, op.Amount.Amount)
	}

	debit := op.Amount.Amount
	var feeDebit int64
	var feeKey balanceKey

	if op.Fee != nil && op.Fee.Amount != 0 {
		if op.Fee.Amount < 0 {
			return fmt.Errorf("%w: negative fee %d", ErrInsufficientBalance, op.Fee.Amount)
		}

		switch op.Fee.AssetID {
		case op.Amount.AssetID:
			if debit > math.MaxInt64-op.Fee.Amount {
				return fmt.Errorf("%w: amount %d plus fee %d", ErrAmountOverflow, debit, op.Fee.Amount)
			}
			debit += op.Fee.Amount
		default:
			feeDebit = op.Fee.Amount
			feeKey = balanceKey{op.From, op.Fee.AssetID}
		}
	}

	if bal := db.balances[fromAmount]; bal < debit {
		return fmt.Errorf("%w: %s holds %d %s, needs %d", ErrInsufficientBalance, op.From, bal, op.Amount.AssetID, debit)
	}
	if feeDebit > 0 {
		if bal := db.balances[feeKey]; bal < feeDebit {
			return fmt.Errorf("%w: %s holds %d %s, fee needs %d", ErrInsufficientBalance, op.From, bal, op.Fee.AssetID, feeDebit)
		}
	}

	newFrom := db.balances[fromAmount] - debit
	newTo := db.balances[toAmount] + op.Amount.Amount
	if fromAmount == toAmount {
		newTo = newFrom + op.Amount.Amount
	} else if db.balances[toAmount] > math.MaxInt64-op.Amount.Amount {
		return fmt.Errorf("%w: crediting %d %s to %s", ErrAmountOverflow, op.Amount.Amount, op.Amount.AssetID, op.To)
	}

	db.balances[fromAmount] = newFrom
	db.balances[toAmount] = newTo
	if feeDebit > 0 {
		db.balances[feeKey] -= feeDebit
	}

	db.bumpOps(op.From)
	if op.To != op.From {
		db.bumpOps(op.To)
	}

	return nil
}

func (db *Database) applyAccountCreate(blockNum uint64, op AccountCreate) error {
	if _, exists := db.names[op.Name]; exists {
		return fmt.Errorf("%w: account %q", ErrDuplicateEntity, op.Name)
	}

	account := Account{
		ID:            AccountID(db.nextAccount),
		Name:          op.Name,
		OwnerKey:      op.Owner.FirstKey(),
		ActiveKey:     op.Active.FirstKey(),
		MemoKey:       op.Options.MemoKey,
		Registrar:     op.Registrar,
		Referrer:      op.Referrer,
		CreationBlock: blockNum,
	}

	db.accounts[account.ID] = account
	db.names[account.Name] = account.ID
	db.nextAccount++

	return nil
}

func (db *Database) applyAssetCreate(blockNum uint64, op AssetCreate) error {
	if _, exists := db.symbols[op.Symbol]; exists {
		return fmt.Errorf("%w: asset %q", ErrDuplicateEntity, op.Symbol)
	}

	id := AssetID(db.nextAsset)
	asset := Asset{
		ID:                 id,
		Symbol:             op.Symbol,
		Precision:          op.Precision,
		Issuer:             op.Issuer,
		MaxSupply:          op.CommonOptions.MaxSupply,
		Options:            op.CommonOptions,
		DynamicAssetDataID: dynamicAssetDataID(id),
		CreationBlock:      blockNum,
	}

	db.assets[asset.ID] = asset
	db.symbols[asset.Symbol] = asset.ID
	db.nextAsset++

	return nil
}

// credit adds to a balance unconditionally, failing only on overflow.
func (db *Database) credit(accountID, assetID string, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: negative issuance %d", ErrInsufficientBalance, amount)
	}

	key := balanceKey{accountID, assetID}
	if db.balances[key] > math.MaxInt64-amount {
		return fmt.Errorf("%w: crediting %d %s to %s", ErrAmountOverflow, amount, assetID, accountID)
	}
	db.balances[key] += amount

	return nil
}

func (db *Database) bumpOps(accountID string) {
	if account, exists := db.accounts[accountID]; exists {
		account.TotalOps++
		db.accounts[accountID] = account
	}
}

func (db *Database) reject(err error) {
	db.counters.Rejected++

	switch {
	case errors.Is(err, ErrDuplicateEntity):
		db.counters.Duplicate++
	case errors.Is(err, ErrInsufficientBalance):
		db.counters.Insufficient++
	case errors.Is(err, ErrAmountOverflow):
		db.counters.Overflow++
	}
}

// Verify asserts that no balance is negative. A failure means the ledger
// rules were broken and the replay can't be trusted.
func (db *Database) Verify() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for key, amount := range db.balances {
		if amount < 0 {
			return fmt.Errorf("%w: %s holds %d %s", ErrNegativeBalance, key.account, amount, key.asset)
		}
	}

	return nil
}

// /////////////////////////////////////////////////////////////////

// Account returns the account with the specified id.
func (db *Database) Account(id string) (Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	account, exists := db.accounts[id]
	return account, exists
}

// AccountByName returns the account registered under the name.
func (db *Database) AccountByName(name string) (Account, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, exists := db.names[name]
	if !exists {
		return Account{}, false
	}

	return db.accounts[id], true
}

// ResolveAccount accepts either an account id or a name.
func (db *Database) ResolveAccount(nameOrID string) (Account, bool) {
	if IsAccountID(nameOrID) {
		return db.Account(nameOrID)
	}

	return db.AccountByName(nameOrID)
}

// AccountCount returns the number of known accounts.
func (db *Database) AccountCount() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.accounts)
}

// ListAccounts returns up to limit accounts ordered by name, starting with
// the first name that is lexicographically greater or equal to start.
func (db *Database) ListAccounts(start string, limit int) []Account {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.names))
	for name := range db.names {
		if name >= start {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if limit >= 0 && len(names) > limit {
		names = names[:limit]
	}

	out := make([]Account, len(names))
	for i, name := range names {
		out[i] = db.accounts[db.names[name]]
	}

	return out
}

// Asset returns the asset with the specified id.
func (db *Database) Asset(id string) (Asset, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	asset, exists := db.assets[id]
	return asset, exists
}

// AssetBySymbol returns the asset registered under the symbol.
func (db *Database) AssetBySymbol(symbol string) (Asset, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, exists := db.symbols[strings.ToUpper(symbol)]
	if !exists {
		id, exists = db.symbols[symbol]
	}
	if !exists {
		return Asset{}, false
	}

	return db.assets[id], true
}

// ListAssets returns up to limit assets ordered by symbol, starting with
// the first symbol that is lexicographically greater or equal to start.
func (db *Database) ListAssets(start string, limit int) []Asset {
	db.mu.RLock()
	defer db.mu.RUnlock()

	symbols := make([]string, 0, len(db.symbols))
	for symbol := range db.symbols {
		if symbol >= start {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)

	if limit >= 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}

	out := make([]Asset, len(symbols))
	for i, symbol := range symbols {
		out[i] = db.assets[db.symbols[symbol]]
	}

	return out
}

// Balance returns the account's balance of the asset. The boolean is false
// when the account never held the asset.
func (db *Database) Balance(accountID, assetID string) (int64, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	amount, exists := db.balances[balanceKey{accountID, assetID}]
	return amount, exists
}

// AccountBalances returns every balance held by the account ordered by
// asset id.
func (db *Database) AccountBalances(accountID string) []Balance {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []Balance
	for key, amount := range db.balances {
		if key.account == accountID {
			out = append(out, Balance{AccountID: key.account, AssetID: key.asset, Amount: amount})
		}
	}
	sortBalances(out)

	return out
}

// CopyBalances makes a copy of every balance in the ledger ordered by
// account and then asset.
func (db *Database) CopyBalances() []Balance {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]Balance, 0, len(db.balances))
	for key, amount := range db.balances {
		out = append(out, Balance{AccountID: key.account, AssetID: key.asset, Amount: amount})
	}
	sortBalances(out)

	return out
}

// Counters returns a copy of the operation counters.
func (db *Database) Counters() Counters {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.counters
}

// sortBalances orders balances by account and asset instance so that 1.3.2
// sorts before 1.3.10.
func sortBalances(b []Balance) {
	less := func(x, y string) bool {
		xi, xok := instanceOf(x)
		yi, yok := instanceOf(y)
		if xok && yok && xi != yi {
			return xi < yi
		}
		return x < y
	}

	sort.Slice(b, func(i, j int) bool {
		if b[i].AccountID != b[j].AccountID {
			return less(b[i].AccountID, b[j].AccountID)
		}
		return less(b[i].AssetID, b[j].AssetID)
	})
}
