package executor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"vote-program/models"
	"vote-program/signing"
	"vote-program/storage"
)

type blockingExecutor struct {
	release chan struct{}
}

func (b *blockingExecutor) Execute(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &models.Receipt{TxID: tx.ID, Status: models.ReceiptOK}, nil
}

func TestQueueProcessesSubmissions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, models.LayoutBallots, storage.DefaultSpace)
	q := NewQueue(h.processor, 4, 16, zerolog.Nop())
	q.Start()
	defer q.Stop()

	payer, acct := mustKey(t), mustKey(t)
	addr := signing.Address(acct)
	if _, err := q.Submit(ctx, initializeTx(t, payer, acct)); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}

	const votes = 20
	var wg sync.WaitGroup
	for i := 0; i < votes; i++ {
		tx := voteTx(t, addr, mustKey(t), uint8(i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Submit(ctx, tx); err != nil {
				t.Errorf("submit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	acc, err := h.store.Load(ctx, addr)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if acc.TotalVotes != votes {
		t.Fatalf("expected %d votes, got %d", votes, acc.TotalVotes)
	}
}

func TestQueueSubmitAfterStop(t *testing.T) {
	q := NewQueue(&blockingExecutor{release: make(chan struct{})}, 1, 1, zerolog.Nop())
	q.Start()
	q.Stop()
	q.Stop()

	tx := models.NewTransaction(models.InstructionAddVote, signing.Address(mustKey(t)), signing.Address(mustKey(t)), 0)
	if _, err := q.Submit(context.Background(), tx); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	if _, err := q.Submit(context.Background(), nil); !errors.Is(err, models.ErrInvalidTransaction) {
		t.Fatalf("expected ErrInvalidTransaction for nil, got %v", err)
	}
}

func TestQueueSubmitHonoursContext(t *testing.T) {
	exec := &blockingExecutor{release: make(chan struct{})}
	q := NewQueue(exec, 1, 1, zerolog.Nop())
	q.Start()
	defer func() {
		close(exec.release)
		q.Stop()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	tx := models.NewTransaction(models.InstructionAddVote, signing.Address(mustKey(t)), signing.Address(mustKey(t)), 0)
	if _, err := q.Submit(ctx, tx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
