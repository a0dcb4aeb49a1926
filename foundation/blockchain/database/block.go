package database

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/adamwoolhether/virtualnode/foundation/blockchain/fcraw"
)

// BlockIDSize is the width of a block id as stored in the index.
const BlockIDSize = 20

// timeLayout is how the legacy node renders timestamps.
const timeLayout = "2006-01-02T15:04:05"

// HexBytes renders raw bytes as a hex string.
type HexBytes []byte

// MarshalJSON implements json.Marshaler.
func (b HexBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hex.EncodeToString(b) + `"`), nil
}

// ChainTime renders a timestamp without zone information.
type ChainTime struct {
	time.Time
}

// MarshalJSON implements json.Marshaler.
func (t ChainTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + FormatTime(t.Time) + `"`), nil
}

// FormatTime renders the time in UTC the way the legacy node does.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// /////////////////////////////////////////////////////////////////

// BlockHeader is everything in a block that precedes the signature.
type BlockHeader struct {
	Previous              HexBytes   `json:"previous"`
	Timestamp             ChainTime  `json:"timestamp"`
	Witness               string     `json:"witness"`
	TransactionMerkleRoot HexBytes   `json:"transaction_merkle_root"`
	Extensions            []HexBytes `json:"extensions"`
}

// Transaction is an ordered list of operations signed as one unit.
type Transaction struct {
	RefBlockNum    uint16      `json:"ref_block_num"`
	RefBlockPrefix uint32      `json:"ref_block_prefix"`
	Expiration     ChainTime   `json:"expiration"`
	Operations     []Operation `json:"operations"`
	Extensions     []HexBytes  `json:"extensions"`
	Signatures     []HexBytes  `json:"signatures"`
}

// SignedBlock is a decoded block. BlockID and Number come from the index,
// the decoder never computes them.
type SignedBlock struct {
	BlockHeader
	WitnessSignature HexBytes      `json:"witness_signature"`
	Transactions     []Transaction `json:"transactions"`

	Number         uint64   `json:"-"`
	BlockID        string   `json:"block_id"`
	SigningKey     string   `json:"signing_key"`
	TransactionIDs []string `json:"transaction_ids"`
}

// Operations returns the count of operations across all transactions.
func (b SignedBlock) Operations() int {
	var n int
	for _, tx := range b.Transactions {
		n += len(tx.Operations)
	}

	return n
}

// /////////////////////////////////////////////////////////////////

// DecodeBlock decodes a serialized signed block.
//
// The returned block is usable even when an error is returned. If the error
// matches ErrUnknownOperationLayout the block holds every transaction decoded
// before the unknown operation plus the partial transaction ending in an
// Unsupported marker. For any other transaction level failure the header is
// kept and the transaction list is empty. A header failure returns a zero
// block.
func DecodeBlock(raw []byte) (SignedBlock, error) {
	r := fcraw.NewReader(raw)

	header, err := decodeHeader(r)
	if err != nil {
		return SignedBlock{}, fmt.Errorf("header: %w", err)
	}
	headerBytes := r.Span(0, r.Pos())

	block := SignedBlock{
		BlockHeader:  header,
		Transactions: []Transaction{},
	}

	if block.WitnessSignature, err = r.ReadBytes(); err != nil {
		return block, fmt.Errorf("witness_signature: %w", err)
	}
	block.SigningKey = recoverSigningKey(headerBytes, block.WitnessSignature)

	count, err := r.ReadVarint()
	if err != nil {
		return block, fmt.Errorf("transactions: %w", err)
	}
	if count > uint64(r.Remaining()) {
		return block, fmt.Errorf("transactions: %w: %d declared, %d bytes left", fcraw.ErrTruncatedInput, count, r.Remaining())
	}

	txs := make([]Transaction, 0, count)
	ids := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		start := r.Pos()

		tx, err := decodeTransaction(r)
		if err != nil {
			if errors.Is(err, ErrUnknownOperationLayout) {
				block.Transactions = append(txs, tx)
				block.TransactionIDs = ids
			}
			return block, fmt.Errorf("transaction %d: %w", i, err)
		}

		txs = append(txs, tx)
		ids = append(ids, transactionID(r.Span(start, r.Pos())))
	}

	block.Transactions = txs
	block.TransactionIDs = ids

	return block, nil
}

func decodeHeader(r *fcraw.Reader) (BlockHeader, error) {
	var h BlockHeader
	var err error

	if h.Previous, err = r.ReadBytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("previous: %w", err)
	}

	ts, err := r.ReadTimestamp()
	if err != nil {
		return BlockHeader{}, fmt.Errorf("timestamp: %w", err)
	}
	h.Timestamp = ChainTime{ts}

	if h.Witness, err = r.ReadObjectID(ProtocolSpace, WitnessType); err != nil {
		return BlockHeader{}, fmt.Errorf("witness: %w", err)
	}
	if h.TransactionMerkleRoot, err = r.ReadBytes(); err != nil {
		return BlockHeader{}, fmt.Errorf("transaction_merkle_root: %w", err)
	}
	if h.Extensions, err = fcraw.ReadArray(r, readHexBytes); err != nil {
		return BlockHeader{}, fmt.Errorf("extensions: %w", err)
	}

	return h, nil
}

// decodeTransaction reads one transaction. When an operation has an unknown
// layout the partially decoded transaction is returned with the error.
func decodeTransaction(r *fcraw.Reader) (Transaction, error) {
	var tx Transaction
	var err error

	if tx.RefBlockNum, err = r.ReadU16(); err != nil {
		return Transaction{}, err
	}
	if tx.RefBlockPrefix, err = r.ReadU32(); err != nil {
		return Transaction{}, err
	}

	exp, err := r.ReadTimestamp()
	if err != nil {
		return Transaction{}, err
	}
	tx.Expiration = ChainTime{exp}

	count, err := r.ReadVarint()
	if err != nil {
		return Transaction{}, err
	}
	if count > uint64(r.Remaining()) {
		return Transaction{}, fmt.Errorf("operations: %w: %d declared, %d bytes left", fcraw.ErrTruncatedInput, count, r.Remaining())
	}

	tx.Operations = make([]Operation, 0, count)
	for i := uint64(0); i < count; i++ {
		op, err := DecodeOperation(r)
		if op != nil {
			tx.Operations = append(tx.Operations, op)
		}
		if err != nil {
			if errors.Is(err, ErrUnknownOperationLayout) {
				return tx, fmt.Errorf("operation %d: %w", i, err)
			}
			return Transaction{}, fmt.Errorf("operation %d: %w", i, err)
		}
	}

	if tx.Extensions, err = fcraw.ReadArray(r, readHexBytes); err != nil {
		return Transaction{}, fmt.Errorf("extensions: %w", err)
	}
	if tx.Signatures, err = fcraw.ReadArray(r, readHexBytes); err != nil {
		return Transaction{}, fmt.Errorf("signatures: %w", err)
	}

	return tx, nil
}

func readHexBytes(r *fcraw.Reader) (HexBytes, error) {
	return r.ReadBytes()
}

// /////////////////////////////////////////////////////////////////

// EncodeBlock serializes the block in the layout DecodeBlock reads.
func EncodeBlock(b SignedBlock) ([]byte, error) {
	w := fcraw.NewWriter()

	encodeHeader(w, b.BlockHeader)
	w.WriteBytes(b.WitnessSignature)
	fcraw.WriteArray(w, b.Transactions, encodeTransaction)

	return w.Bytes()
}

// EncodeTransaction serializes a single transaction.
func EncodeTransaction(tx Transaction) ([]byte, error) {
	w := fcraw.NewWriter()
	encodeTransaction(w, tx)

	return w.Bytes()
}

func encodeHeader(w *fcraw.Writer, h BlockHeader) {
	w.WriteBytes(h.Previous)
	w.WriteTimestamp(h.Timestamp.Time)
	w.WriteObjectID(h.Witness, ProtocolSpace, WitnessType)
	w.WriteBytes(h.TransactionMerkleRoot)
	fcraw.WriteArray(w, h.Extensions, writeHexBytes)
}

func encodeTransaction(w *fcraw.Writer, tx Transaction) {
	w.WriteU16(tx.RefBlockNum)
	w.WriteU32(tx.RefBlockPrefix)
	w.WriteTimestamp(tx.Expiration.Time)
	fcraw.WriteArray(w, tx.Operations, EncodeOperation)
	fcraw.WriteArray(w, tx.Extensions, writeHexBytes)
	fcraw.WriteArray(w, tx.Signatures, writeHexBytes)
}

func writeHexBytes(w *fcraw.Writer, b HexBytes) {
	w.WriteBytes(b)
}

// /////////////////////////////////////////////////////////////////

// SignBlock signs the block header with the private key and stores the
// compact signature on the block. Only fixture generation signs blocks.
func SignBlock(b *SignedBlock, privateKey *ecdsa.PrivateKey) error {
	w := fcraw.NewWriter()
	encodeHeader(w, b.BlockHeader)
	header, err := w.Bytes()
	if err != nil {
		return err
	}

	digest := sha256.Sum256(header)

	// Sign returns [R || S || V] with V as the recovery id.
	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return err
	}

	compact := make([]byte, crypto.SignatureLength)
	compact[0] = sig[64] + 31
	copy(compact[1:], sig[:64])
	b.WitnessSignature = compact

	return nil
}

// recoverSigningKey returns the compressed hex public key that produced the
// compact signature over the header, or an empty string if nothing can be
// recovered. Nothing is verified, the key is informational.
func recoverSigningKey(header, compact []byte) string {
	if len(compact) != crypto.SignatureLength {
		return ""
	}

	recID := compact[0] - 27
	if recID >= 4 {
		recID -= 4
	}
	if recID > 1 {
		return ""
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, compact[1:])
	sig[64] = recID

	digest := sha256.Sum256(header)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return ""
	}

	return hex.EncodeToString(crypto.CompressPubkey(pub))
}

// transactionID is the leading bytes of the SHA-256 of the encoded
// transaction.
func transactionID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:BlockIDSize])
}

// ComputeBlockID derives an id for an encoded block: the leading bytes of its
// SHA-256 with the block number stored big endian in the first four bytes.
func ComputeBlockID(num uint32, raw []byte) [BlockIDSize]byte {
	sum := sha256.Sum256(raw)

	var id [BlockIDSize]byte
	copy(id[:], sum[:BlockIDSize])
	binary.BigEndian.PutUint32(id[:4], num)

	return id
}
