package executor

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"vote-program/models"
)

var ErrQueueClosed = errors.New("transaction queue closed")

// Queue feeds submitted transactions to a fixed pool of workers.
type Queue struct {
	executor Executor
	txCh     chan *txRequest
	workers  int
	wg       sync.WaitGroup

	startOnce  sync.Once
	stopOnce   sync.Once
	shutdownCh chan struct{}
	stoppedCh  chan struct{}

	logger zerolog.Logger
}

type txRequest struct {
	ctx      context.Context
	tx       *models.Transaction
	resultCh chan txResult
}

type txResult struct {
	receipt *models.Receipt
	err     error
}

func NewQueue(executor Executor, workers, queueSize int, logger zerolog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Queue{
		executor:   executor,
		txCh:       make(chan *txRequest, queueSize),
		workers:    workers,
		shutdownCh: make(chan struct{}),
		stoppedCh:  make(chan struct{}),
		logger:     logger.With().Str("component", "queue").Logger(),
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(i)
		}
		q.logger.Info().Int("workers", q.workers).Int("capacity", cap(q.txCh)).Msg("queue started")
	})
}

// Stop lets in-flight transactions finish and stops the workers. Transactions
// still waiting in the queue fail with ErrQueueClosed.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.shutdownCh)
		q.wg.Wait()
		close(q.stoppedCh)
		q.logger.Info().Msg("queue stopped")
	})
}

// Submit enqueues tx and waits for its receipt.
func (q *Queue) Submit(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	if tx == nil {
		return nil, errors.Wrap(models.ErrInvalidTransaction, "nil transaction")
	}
	req := &txRequest{ctx: ctx, tx: tx, resultCh: make(chan txResult, 1)}

	select {
	case <-q.shutdownCh:
		return nil, ErrQueueClosed
	default:
	}

	select {
	case q.txCh <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.shutdownCh:
		return nil, ErrQueueClosed
	}

	select {
	case res := <-req.resultCh:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.stoppedCh:
		select {
		case res := <-req.resultCh:
			return res.receipt, res.err
		default:
			return nil, ErrQueueClosed
		}
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for {
		select {
		case <-q.shutdownCh:
			return
		case req := <-q.txCh:
			receipt, err := q.executor.Execute(req.ctx, req.tx)
			req.resultCh <- txResult{receipt: receipt, err: err}
			q.logger.Debug().Int("worker", id).Str("tx_id", req.tx.ID.String()).Msg("transaction processed")
		}
	}
}
