// Package ledger seals transaction receipts into a hash-linked chain of blocks.
package ledger

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vote-program/models"
	"vote-program/storage"
)

const DefaultBlockSize = 5

var ErrBlockNotFound = errors.New("block not found")

type Ledger struct {
	mu         sync.RWMutex
	chain      []*models.Block
	pending    []models.Receipt
	seen       map[uuid.UUID]struct{}
	store      storage.ChainStore
	blockSize  int
	difficulty uint8
	now        func() time.Time
	logger     zerolog.Logger
}

// New loads the chain from store, verifies it and writes a genesis block if
// the chain is empty.
func New(store storage.ChainStore, blockSize int, difficulty uint8, logger zerolog.Logger) (*Ledger, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if difficulty > models.MaxDifficulty {
		return nil, errors.Wrapf(models.ErrDifficultyTooHigh, "%d exceeds %d", difficulty, models.MaxDifficulty)
	}
	chain, err := store.LoadChain()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ledger chain")
	}
	if err := models.VerifyChain(chain); err != nil {
		return nil, errors.Wrap(err, "stored ledger chain")
	}

	l := &Ledger{
		chain:      chain,
		seen:       make(map[uuid.UUID]struct{}),
		store:      store,
		blockSize:  blockSize,
		difficulty: difficulty,
		now:        time.Now,
		logger:     logger.With().Str("component", "ledger").Logger(),
	}

	for _, block := range chain {
		receipts, err := DecodeReceipts(block)
		if err != nil {
			return nil, errors.Wrapf(err, "block %d", block.Index)
		}
		for _, r := range receipts {
			l.seen[r.TxID] = struct{}{}
		}
	}

	pending, err := store.LoadPending()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load pending receipts")
	}
	// A crash between sealing a block and clearing the pending set leaves
	// receipts in both places.
	for _, r := range pending {
		if _, sealed := l.seen[r.TxID]; sealed {
			continue
		}
		l.pending = append(l.pending, r)
		l.seen[r.TxID] = struct{}{}
	}

	if len(l.chain) == 0 {
		if err := l.seal([]models.Receipt{}); err != nil {
			return nil, errors.Wrap(err, "failed to write genesis block")
		}
		l.logger.Info().Msg("genesis block written")
	} else {
		l.logger.Info().
			Int("blocks", len(l.chain)).
			Int("pending", len(l.pending)).
			Int("transactions", len(l.seen)).
			Msg("ledger loaded")
	}
	return l, nil
}

// Record appends a receipt, persists the pending set and seals a block once
// blockSize receipts are pending. The receipt is durable when Record returns
// nil.
func (l *Ledger) Record(receipt models.Receipt) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending = append(l.pending, receipt)
	l.seen[receipt.TxID] = struct{}{}

	if err := l.store.SavePending(l.pending); err != nil {
		return errors.Wrap(err, "failed to persist pending receipts")
	}
	if len(l.pending) >= l.blockSize {
		return l.sealPending()
	}
	return nil
}

// Flush seals any pending receipts.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.pending) == 0 {
		return nil
	}
	return l.sealPending()
}

func (l *Ledger) sealPending() error {
	if err := l.seal(l.pending); err != nil {
		l.logger.Error().Err(err).Int("pending", len(l.pending)).Msg("failed to seal block")
		return err
	}
	l.pending = nil
	if err := l.store.SavePending(nil); err != nil {
		return errors.Wrap(err, "failed to clear pending receipts")
	}
	return nil
}

func (l *Ledger) seal(receipts []models.Receipt) error {
	data, err := json.Marshal(receipts)
	if err != nil {
		return errors.Wrap(err, "failed to marshal receipts")
	}

	var prevHash []byte
	var lastTimestamp int64
	if n := len(l.chain); n > 0 {
		prevHash = l.chain[n-1].Hash
		lastTimestamp = l.chain[n-1].Timestamp
	}

	block, err := models.NewBlock(
		uint64(len(l.chain)),
		ensureUniqueTimestamp(l.now().Unix(), lastTimestamp),
		data,
		prevHash,
		l.difficulty,
	)
	if err != nil {
		return errors.Wrap(err, "failed to mine block")
	}
	if err := l.store.SaveBlock(block); err != nil {
		return errors.Wrap(err, "failed to save block")
	}
	l.chain = append(l.chain, block)

	l.logger.Debug().
		Uint64("index", block.Index).
		Int("receipts", len(receipts)).
		Msg("block sealed")
	return nil
}

func ensureUniqueTimestamp(now, last int64) int64 {
	if now <= last {
		return last + 1
	}
	return now
}

// HasTransaction reports whether a transaction ID was already recorded.
func (l *Ledger) HasTransaction(id uuid.UUID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[id]
	return ok
}

func (l *Ledger) Blocks() []*models.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	blocks := make([]*models.Block, len(l.chain))
	copy(blocks, l.chain)
	return blocks
}

func (l *Ledger) Block(index uint64) (*models.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if index >= uint64(len(l.chain)) {
		return nil, errors.Wrapf(ErrBlockNotFound, "index %d", index)
	}
	return l.chain[index], nil
}

func (l *Ledger) Pending() []models.Receipt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Receipt(nil), l.pending...)
}

// Validate verifies the sealed chain.
func (l *Ledger) Validate() error {
	return models.VerifyChain(l.Blocks())
}

// DecodeReceipts returns the receipts sealed into block.
func DecodeReceipts(block *models.Block) ([]models.Receipt, error) {
	var receipts []models.Receipt
	if err := json.Unmarshal(block.Data, &receipts); err != nil {
		return nil, errors.Wrap(err, "failed to decode receipts")
	}
	return receipts, nil
}
