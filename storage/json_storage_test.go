package storage

import (
	"testing"

	"vote-program/models"
)

func mustBlock(t *testing.T, index uint64, timestamp int64, data, prev []byte) *models.Block {
	t.Helper()
	b, err := models.NewBlock(index, timestamp, data, prev, 0)
	if err != nil {
		t.Fatalf("new block failed: %v", err)
	}
	return b
}

func TestJSONChainStoreReloads(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONChainStore(dir)
	if err != nil {
		t.Fatalf("new chain store failed: %v", err)
	}

	genesis := mustBlock(t, 0, 10, []byte(`[]`), nil)
	next := mustBlock(t, 1, 11, []byte(`[{}]`), genesis.Hash)
	for _, b := range []*models.Block{genesis, next} {
		if err := store.SaveBlock(b); err != nil {
			t.Fatalf("save block failed: %v", err)
		}
	}

	reopened, err := NewJSONChainStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	blocks, err := reopened.LoadChain()
	if err != nil {
		t.Fatalf("load chain failed: %v", err)
	}
	if len(blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(blocks))
	}
	if !models.ValidateChain(blocks) {
		t.Fatalf("expected reloaded chain to validate")
	}
}

func TestLoadChainReturnsCopy(t *testing.T) {
	store := NewMemoryChainStore()
	if err := store.SaveBlock(mustBlock(t, 0, 1, nil, nil)); err != nil {
		t.Fatalf("save block failed: %v", err)
	}
	blocks, _ := store.LoadChain()
	blocks[0] = nil
	again, _ := store.LoadChain()
	if again[0] == nil {
		t.Fatalf("caller mutation leaked into store")
	}
}

func TestJSONChainStoreKeepsPendingAcrossBlocks(t *testing.T) {
	dir := t.TempDir()
	store, err := NewJSONChainStore(dir)
	if err != nil {
		t.Fatalf("new chain store failed: %v", err)
	}
	pending := []models.Receipt{{Instruction: models.InstructionAddVote, Status: models.ReceiptOK}}
	if err := store.SavePending(pending); err != nil {
		t.Fatalf("save pending failed: %v", err)
	}
	if err := store.SaveBlock(mustBlock(t, 0, 1, []byte(`[]`), nil)); err != nil {
		t.Fatalf("save block failed: %v", err)
	}

	reopened, err := NewJSONChainStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := reopened.LoadPending()
	if err != nil {
		t.Fatalf("load pending failed: %v", err)
	}
	if len(got) != 1 || got[0].Instruction != models.InstructionAddVote {
		t.Fatalf("unexpected pending receipts %+v", got)
	}
	blocks, _ := reopened.LoadChain()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}
}
