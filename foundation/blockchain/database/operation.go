package database

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/fcraw"
)

// Discriminants of the operations this node understands.
const (
	OpTransfer      uint64 = 0
	OpAccountCreate uint64 = 5
	OpAssetCreate   uint64 = 10
	OpAssetIssue    uint64 = 14
)

// Operation is one of the known operation variants or Unsupported. The set
// is closed, only types in this package implement it.
type Operation interface {
	TypeID() uint64
	operation()
}

// Transfer moves an amount between two accounts. Fee is never present on
// the wire in this chain's encoding, it is only set by fixtures.
type Transfer struct {
	Fee    *AssetAmount `json:"fee,omitempty"`
	From   string       `json:"from"`
	To     string       `json:"to"`
	Amount AssetAmount  `json:"amount"`
	Memo   *Memo        `json:"memo,omitempty"`
}

// AccountCreate registers a new named account.
type AccountCreate struct {
	Registrar       string         `json:"registrar"`
	Referrer        string         `json:"referrer"`
	ReferrerPercent uint16         `json:"referrer_percent"`
	Name            string         `json:"name"`
	Owner           Authority      `json:"owner"`
	Active          Authority      `json:"active"`
	Options         AccountOptions `json:"options"`
}

// AssetCreate registers a new asset symbol.
type AssetCreate struct {
	Issuer             string           `json:"issuer"`
	Symbol             string           `json:"symbol"`
	Precision          uint8            `json:"precision"`
	CommonOptions      AssetOptions     `json:"common_options"`
	BitassetOptions    *BitassetOptions `json:"bitasset_opts,omitempty"`
	IsPredictionMarket bool             `json:"is_prediction_market"`
}

// AssetIssue creates new supply of an asset and credits it to an account.
type AssetIssue struct {
	Issuer         string      `json:"issuer"`
	AssetToIssue   AssetAmount `json:"asset_to_issue"`
	IssueToAccount string      `json:"issue_to_account"`
	Memo           *Memo       `json:"memo,omitempty"`
}

// Unsupported marks an operation whose layout is not known. Nothing after
// its discriminant can be decoded.
type Unsupported struct {
	Type uint64
}

func (Transfer) TypeID() uint64      { return OpTransfer }
func (AccountCreate) TypeID() uint64 { return OpAccountCreate }
func (AssetCreate) TypeID() uint64   { return OpAssetCreate }
func (AssetIssue) TypeID() uint64    { return OpAssetIssue }
func (u Unsupported) TypeID() uint64 { return u.Type }

func (Transfer) operation()      {}
func (AccountCreate) operation() {}
func (AssetCreate) operation()   {}
func (AssetIssue) operation()    {}
func (Unsupported) operation()   {}

// /////////////////////////////////////////////////////////////////
// Operations render as the [type, payload] pair legacy wallets read.

func marshalOperation(typeID uint64, payload any) ([]byte, error) {
	return json.Marshal([]any{typeID, payload})
}

// MarshalJSON implements json.Marshaler.
func (op Transfer) MarshalJSON() ([]byte, error) {
	type payload Transfer
	return marshalOperation(op.TypeID(), payload(op))
}

// MarshalJSON implements json.Marshaler.
func (op AccountCreate) MarshalJSON() ([]byte, error) {
	type payload AccountCreate
	return marshalOperation(op.TypeID(), payload(op))
}

// MarshalJSON implements json.Marshaler.
func (op AssetCreate) MarshalJSON() ([]byte, error) {
	type payload AssetCreate
	return marshalOperation(op.TypeID(), payload(op))
}

// MarshalJSON implements json.Marshaler.
func (op AssetIssue) MarshalJSON() ([]byte, error) {
	type payload AssetIssue
	return marshalOperation(op.TypeID(), payload(op))
}

// MarshalJSON implements json.Marshaler.
func (op Unsupported) MarshalJSON() ([]byte, error) {
	return marshalOperation(op.Type, struct{}{})
}

// /////////////////////////////////////////////////////////////////

// DecodeOperation reads one operation starting at its discriminant. An
// unknown discriminant, or a known one carrying extensions, returns
// Unsupported together with an error matching ErrUnknownOperationLayout.
// Payloads carry no length so the caller can't continue past it. Any other
// failure returns a nil operation.
func DecodeOperation(r *fcraw.Reader) (Operation, error) {
	typeID, err := r.ReadVarint()
	if err != nil {
		return nil, err
	}

	var op Operation
	switch typeID {
	case OpTransfer:
		op, err = decodeTransfer(r)
	case OpAccountCreate:
		op, err = decodeAccountCreate(r)
	case OpAssetCreate:
		op, err = decodeAssetCreate(r)
	case OpAssetIssue:
		op, err = decodeAssetIssue(r)
	default:
		return Unsupported{Type: typeID}, fmt.Errorf("%w: operation type %d", ErrUnknownOperationLayout, typeID)
	}

	if err != nil {
		if errors.Is(err, ErrUnknownOperationLayout) {
			return Unsupported{Type: typeID}, fmt.Errorf("operation type %d: %w", typeID, err)
		}
		return nil, fmt.Errorf("operation type %d: %w", typeID, err)
	}

	return op, nil
}

func decodeTransfer(r *fcraw.Reader) (Transfer, error) {
	var op Transfer
	var err error

	if op.From, err = readAccount(r); err != nil {
		return Transfer{}, err
	}
	if op.To, err = readAccount(r); err != nil {
		return Transfer{}, err
	}
	if op.Amount, err = readAssetAmount(r); err != nil {
		return Transfer{}, err
	}
	if op.Memo, err = fcraw.ReadOptional(r, readMemo); err != nil {
		return Transfer{}, fmt.Errorf("memo: %w", err)
	}
	if err := readExtensions(r); err != nil {
		return Transfer{}, err
	}

	return op, nil
}

func decodeAccountCreate(r *fcraw.Reader) (AccountCreate, error) {
	var op AccountCreate
	var err error

	if op.Registrar, err = readAccount(r); err != nil {
		return AccountCreate{}, err
	}
	if op.Referrer, err = readAccount(r); err != nil {
		return AccountCreate{}, err
	}
	if op.ReferrerPercent, err = r.ReadU16(); err != nil {
		return AccountCreate{}, err
	}
	if op.Name, err = r.ReadString(); err != nil {
		return AccountCreate{}, err
	}
	if op.Owner, err = readAuthority(r); err != nil {
		return AccountCreate{}, fmt.Errorf("owner: %w", err)
	}
	if op.Active, err = readAuthority(r); err != nil {
		return AccountCreate{}, fmt.Errorf("active: %w", err)
	}
	if op.Options, err = readAccountOptions(r); err != nil {
		return AccountCreate{}, fmt.Errorf("options: %w", err)
	}
	if err := readExtensions(r); err != nil {
		return AccountCreate{}, err
	}

	return op, nil
}

func decodeAssetCreate(r *fcraw.Reader) (AssetCreate, error) {
	var op AssetCreate
	var err error

	if op.Issuer, err = readAccount(r); err != nil {
		return AssetCreate{}, err
	}
	if op.Symbol, err = r.ReadString(); err != nil {
		return AssetCreate{}, err
	}
	if op.Precision, err = r.ReadU8(); err != nil {
		return AssetCreate{}, err
	}
	if op.CommonOptions, err = readAssetOptions(r); err != nil {
		return AssetCreate{}, fmt.Errorf("common_options: %w", err)
	}
	if op.BitassetOptions, err = fcraw.ReadOptional(r, readBitassetOptions); err != nil {
		return AssetCreate{}, fmt.Errorf("bitasset_opts: %w", err)
	}
	if op.IsPredictionMarket, err = r.ReadBool(); err != nil {
		return AssetCreate{}, err
	}
	if err := readExtensions(r); err != nil {
		return AssetCreate{}, err
	}

	return op, nil
}

func decodeAssetIssue(r *fcraw.Reader) (AssetIssue, error) {
	var op AssetIssue
	var err error

	if op.Issuer, err = readAccount(r); err != nil {
		return AssetIssue{}, err
	}
	if op.AssetToIssue, err = readAssetAmount(r); err != nil {
		return AssetIssue{}, err
	}
	if op.IssueToAccount, err = readAccount(r); err != nil {
		return AssetIssue{}, err
	}
	if op.Memo, err = fcraw.ReadOptional(r, readMemo); err != nil {
		return AssetIssue{}, fmt.Errorf("memo: %w", err)
	}
	if err := readExtensions(r); err != nil {
		return AssetIssue{}, err
	}

	return op, nil
}

// /////////////////////////////////////////////////////////////////

// EncodeOperation writes the operation in the same layout DecodeOperation
// reads. Unsupported operations can't be encoded.
func EncodeOperation(w *fcraw.Writer, op Operation) {
	switch op := op.(type) {
	case Transfer:
		w.WriteVarint(OpTransfer)
		writeAccount(w, op.From)
		writeAccount(w, op.To)
		writeAssetAmount(w, op.Amount)
		fcraw.WriteOptional(w, op.Memo, writeMemo)
		writeExtensions(w)

	case AccountCreate:
		w.WriteVarint(OpAccountCreate)
		writeAccount(w, op.Registrar)
		writeAccount(w, op.Referrer)
		w.WriteU16(op.ReferrerPercent)
		w.WriteString(op.Name)
		writeAuthority(w, op.Owner)
		writeAuthority(w, op.Active)
		writeAccountOptions(w, op.Options)
		writeExtensions(w)

	case AssetCreate:
		w.WriteVarint(OpAssetCreate)
		writeAccount(w, op.Issuer)
		w.WriteString(op.Symbol)
		w.WriteU8(op.Precision)
		writeAssetOptions(w, op.CommonOptions)
		fcraw.WriteOptional(w, op.BitassetOptions, writeBitassetOptions)
		w.WriteBool(op.IsPredictionMarket)
		writeExtensions(w)

	case AssetIssue:
		w.WriteVarint(OpAssetIssue)
		writeAccount(w, op.Issuer)
		writeAssetAmount(w, op.AssetToIssue)
		writeAccount(w, op.IssueToAccount)
		fcraw.WriteOptional(w, op.Memo, writeMemo)
		writeExtensions(w)

	default:
		w.Fail(fmt.Errorf("%w: can't encode operation type %d", ErrUnknownOperationLayout, op.TypeID()))
	}
}
