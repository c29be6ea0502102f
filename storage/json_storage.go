package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"vote-program/models"
)

// ChainStore persists ledger blocks and the receipts not yet sealed into one.
type ChainStore interface {
	SaveBlock(block *models.Block) error
	LoadChain() ([]*models.Block, error)
	SavePending(receipts []models.Receipt) error
	LoadPending() ([]models.Receipt, error)
}

// Chain represents the entire blockchain
type Chain struct {
	Blocks  []*models.Block  `json:"blocks"`
	Pending []models.Receipt `json:"pending,omitempty"`
}

// JSONChainStore keeps the whole chain in memory and rewrites
// basePath/ledger_chain.json on every appended block.
type JSONChainStore struct {
	path  string
	mu    sync.RWMutex
	chain *Chain
}

func NewJSONChainStore(basePath string) (*JSONChainStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	store := &JSONChainStore{path: filepath.Join(basePath, "ledger_chain.json")}
	chain, err := store.loadChainFromFile()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load chain")
	}
	store.chain = chain
	return store, nil
}

func (s *JSONChainStore) SaveBlock(block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Chain{
		Blocks:  append(append([]*models.Block(nil), s.chain.Blocks...), block),
		Pending: s.chain.Pending,
	}
	if err := s.saveChainToFile(next); err != nil {
		return err
	}
	s.chain = next
	return nil
}

func (s *JSONChainStore) LoadChain() ([]*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy of the blocks to prevent modification
	blocks := make([]*models.Block, len(s.chain.Blocks))
	copy(blocks, s.chain.Blocks)
	return blocks, nil
}

// SavePending replaces the unsealed receipts written alongside the chain.
func (s *JSONChainStore) SavePending(receipts []models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Chain{
		Blocks:  s.chain.Blocks,
		Pending: append([]models.Receipt(nil), receipts...),
	}
	if err := s.saveChainToFile(next); err != nil {
		return err
	}
	s.chain = next
	return nil
}

func (s *JSONChainStore) LoadPending() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt(nil), s.chain.Pending...), nil
}

func (s *JSONChainStore) loadChainFromFile() (*Chain, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Chain{Blocks: make([]*models.Block, 0)}, nil
		}
		return nil, err
	}

	var chain Chain
	if err := json.Unmarshal(data, &chain); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chain")
	}
	return &chain, nil
}

func (s *JSONChainStore) saveChainToFile(chain *Chain) error {
	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal chain")
	}
	return writeFileAtomic(s.path, data)
}

// MemoryChainStore keeps blocks only for the life of the process.
type MemoryChainStore struct {
	mu      sync.RWMutex
	blocks  []*models.Block
	pending []models.Receipt
}

func NewMemoryChainStore() *MemoryChainStore {
	return &MemoryChainStore{}
}

func (s *MemoryChainStore) SaveBlock(block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
	return nil
}

func (s *MemoryChainStore) LoadChain() ([]*models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blocks := make([]*models.Block, len(s.blocks))
	copy(blocks, s.blocks)
	return blocks, nil
}

func (s *MemoryChainStore) SavePending(receipts []models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append([]models.Receipt(nil), receipts...)
	return nil
}

func (s *MemoryChainStore) LoadPending() ([]models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Receipt(nil), s.pending...), nil
}
