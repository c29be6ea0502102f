package models

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"
)

// MaxDifficulty bounds the leading zero bytes a block may be mined to. Each
// extra byte multiplies the expected work by 256.
const MaxDifficulty = 3

var (
	ErrInvalidChain      = errors.New("invalid chain")
	ErrDifficultyTooHigh = errors.New("difficulty too high")
)

// Block seals a batch of transaction receipts into the ledger.
type Block struct {
	Index      uint64 `json:"index"`
	Timestamp  int64  `json:"timestamp"`
	Data       []byte `json:"data"`
	PrevHash   []byte `json:"prev_hash"`
	Hash       []byte `json:"hash"`
	Nonce      uint64 `json:"nonce"`
	Difficulty uint8  `json:"difficulty"` // Number of leading zero bytes required
}

func NewBlock(index uint64, timestamp int64, data []byte, prevHash []byte, difficulty uint8) (*Block, error) {
	block := &Block{
		Index:      index,
		Timestamp:  timestamp,
		Data:       data,
		PrevHash:   prevHash,
		Difficulty: difficulty,
	}

	if err := block.Mine(); err != nil {
		return nil, err
	}
	return block, nil
}

func (b *Block) Mine() error {
	if b.Difficulty > MaxDifficulty {
		return errors.Wrapf(ErrDifficultyTooHigh, "%d exceeds %d", b.Difficulty, MaxDifficulty)
	}
	target := make([]byte, b.Difficulty)
	var nonce uint64
	for {
		b.Nonce = nonce
		b.Hash = b.calculateHash()
		if bytes.HasPrefix(b.Hash, target) {
			return nil
		}
		nonce++
	}
}

func (b *Block) calculateHash() []byte {
	buf := make([]byte, 0, 8+8+len(b.Data)+len(b.PrevHash)+8)
	buf = binary.BigEndian.AppendUint64(buf, b.Index)
	buf = binary.BigEndian.AppendUint64(buf, uint64(b.Timestamp))
	buf = append(buf, b.Data...)
	buf = append(buf, b.PrevHash...)
	buf = binary.BigEndian.AppendUint64(buf, b.Nonce)
	return crypto.Keccak256(buf)
}

func (b *Block) Validate() bool {
	calculated := b.calculateHash()
	if !bytes.Equal(calculated, b.Hash) {
		return false
	}
	target := make([]byte, b.Difficulty)
	return bytes.HasPrefix(calculated, target)
}

// VerifyChain checks hashes, links, indexes and timestamp ordering and reports
// the first broken block.
func VerifyChain(blocks []*Block) error {
	for i, current := range blocks {
		if !current.Validate() {
			return errors.Wrapf(ErrInvalidChain, "block %d has invalid hash", i)
		}
		if i == 0 {
			continue
		}
		previous := blocks[i-1]
		if !bytes.Equal(current.PrevHash, previous.Hash) {
			return errors.Wrapf(ErrInvalidChain, "block %d has invalid previous hash link", i)
		}
		if current.Index != previous.Index+1 {
			return errors.Wrapf(ErrInvalidChain, "block %d has invalid index", i)
		}
		if current.Timestamp <= previous.Timestamp {
			return errors.Wrapf(ErrInvalidChain, "block %d has invalid timestamp", i)
		}
	}
	return nil
}

// ValidateChain validates the entire blockchain
func ValidateChain(blocks []*Block) bool {
	return VerifyChain(blocks) == nil
}
