// Package executor executes signed transactions against vote accounts. It owns
// what a blockchain host would otherwise provide around the program: replay
// protection, signature checks, per-account serialization and the ledger.
package executor

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vote-program/ledger"
	"vote-program/models"
	"vote-program/program"
	"vote-program/signing"
	"vote-program/storage"
)

var (
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrMissingSignature     = errors.New("missing required signature")
)

// Executor runs one transaction to completion.
type Executor interface {
	Execute(ctx context.Context, tx *models.Transaction) (*models.Receipt, error)
}

type Processor struct {
	store   *storage.Store
	program program.Program
	ledger  *ledger.Ledger
	metrics *Metrics
	locks   *accountLocks
	logger  zerolog.Logger

	txMu     sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewProcessor(store *storage.Store, l *ledger.Ledger, metrics *Metrics, logger zerolog.Logger) *Processor {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Processor{
		store:    store,
		program:  program.New(store.Layout()),
		ledger:   l,
		metrics:  metrics,
		locks:    newAccountLocks(),
		logger:   logger.With().Str("component", "processor").Logger(),
		inflight: make(map[uuid.UUID]struct{}),
	}
}

func (p *Processor) Metrics() *Metrics { return p.metrics }

// Execute validates tx, checks its signatures and runs its instruction.
//
// Malformed, replayed or unsigned transactions are rejected before execution
// and leave no receipt. Otherwise a receipt is always recorded in the ledger,
// and a non-nil error accompanies a receipt whose status is failed.
func (p *Processor) Execute(ctx context.Context, tx *models.Transaction) (*models.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, err
	}
	if err := p.claim(tx.ID); err != nil {
		return nil, err
	}
	defer p.release(tx.ID)

	if err := p.verifySignatures(tx); err != nil {
		p.logger.Warn().
			Str("tx_id", tx.ID.String()).
			Str("instruction", string(tx.Instruction)).
			Err(err).
			Msg("transaction rejected")
		return nil, err
	}

	start := time.Now()
	unlock := p.locks.lock(tx.Account)
	acc, execErr := p.run(ctx, tx)
	unlock()
	duration := time.Since(start)

	receipt := &models.Receipt{
		TxID:        tx.ID,
		Instruction: tx.Instruction,
		Account:     tx.Account,
		Signer:      tx.Signer,
		Selection:   tx.Selection,
		Status:      models.ReceiptOK,
		TotalVotes:  acc.TotalVotes,
		ExecutedAt:  start.Unix(),
	}
	if execErr != nil {
		receipt.Status = models.ReceiptFailed
		receipt.Error = execErr.Error()
	}

	if err := p.ledger.Record(*receipt); err != nil {
		p.logger.Error().Str("tx_id", tx.ID.String()).Err(err).Msg("failed to record receipt")
	}
	p.metrics.Record(tx.Instruction, duration, execErr != nil)

	event := p.logger.Info()
	if execErr != nil {
		event = p.logger.Warn().Err(execErr)
	}
	event.
		Str("tx_id", tx.ID.String()).
		Str("instruction", string(tx.Instruction)).
		Str("account", tx.Account.Hex()).
		Uint64("total_votes", acc.TotalVotes).
		Dur("duration", duration).
		Msg("transaction executed")

	return receipt, execErr
}

func (p *Processor) run(ctx context.Context, tx *models.Transaction) (models.VoteAccount, error) {
	switch tx.Instruction {
	case models.InstructionInitialize:
		acc := p.program.Initialize()
		if err := p.store.Create(ctx, tx.Account, acc); err != nil {
			return models.VoteAccount{}, err
		}
		return acc, nil

	case models.InstructionAddVote:
		acc, err := p.store.Load(ctx, tx.Account)
		if err != nil {
			return models.VoteAccount{}, err
		}
		next, err := p.program.AddVote(acc, models.Ballot{Selection: tx.Selection, Voter: tx.Signer})
		if err != nil {
			return acc, err
		}
		if err := p.store.Save(ctx, tx.Account, next); err != nil {
			return acc, err
		}
		return next, nil
	}
	return models.VoteAccount{}, errors.Wrapf(models.ErrInvalidTransaction, "unknown instruction %q", tx.Instruction)
}

func (p *Processor) verifySignatures(tx *models.Transaction) error {
	required := tx.RequiredSigners(p.store.Layout())
	if len(required) == 0 {
		return nil
	}

	digest := tx.Digest()
	signed := make(map[common.Address]struct{}, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		addr, err := signing.RecoverSigner(digest, sig)
		if err != nil {
			return err
		}
		signed[addr] = struct{}{}
	}
	for _, addr := range required {
		if _, ok := signed[addr]; !ok {
			return errors.Wrapf(ErrMissingSignature, "%s", addr.Hex())
		}
	}
	return nil
}

func (p *Processor) claim(id uuid.UUID) error {
	p.txMu.Lock()
	defer p.txMu.Unlock()

	if _, busy := p.inflight[id]; busy || p.ledger.HasTransaction(id) {
		return errors.Wrapf(ErrDuplicateTransaction, "%s", id)
	}
	p.inflight[id] = struct{}{}
	return nil
}

func (p *Processor) release(id uuid.UUID) {
	p.txMu.Lock()
	defer p.txMu.Unlock()
	delete(p.inflight, id)
}
