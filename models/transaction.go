package models

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// Instruction names a program entry point.
type Instruction string

const (
	InstructionInitialize Instruction = "initialize"
	InstructionAddVote    Instruction = "add_vote"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

var instructionDiscriminators = map[Instruction][DiscriminatorSize]byte{
	InstructionInitialize: discriminator("global", string(InstructionInitialize)),
	InstructionAddVote:    discriminator("global", string(InstructionAddVote)),
}

// Transaction is a signed request to run one instruction against one account.
//
// For initialize, Signer is the payer and both the payer and the account key
// must sign. For add_vote, Signer is the voter whose address is recorded in
// the ballot.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Instruction Instruction     `json:"instruction"`
	Account     common.Address  `json:"account"`
	Signer      common.Address  `json:"signer"`
	Selection   uint8           `json:"selection"`
	Signatures  []hexutil.Bytes `json:"signatures"`
}

func NewTransaction(instruction Instruction, account, signer common.Address, selection uint8) *Transaction {
	return &Transaction{
		ID:          uuid.New(),
		Instruction: instruction,
		Account:     account,
		Signer:      signer,
		Selection:   selection,
	}
}

// Validate checks the transaction is well formed. It does not check signatures.
func (tx *Transaction) Validate() error {
	if tx == nil {
		return errors.Wrap(ErrInvalidTransaction, "nil transaction")
	}
	if tx.ID == uuid.Nil {
		return errors.Wrap(ErrInvalidTransaction, "missing id")
	}
	if _, ok := instructionDiscriminators[tx.Instruction]; !ok {
		return errors.Wrapf(ErrInvalidTransaction, "unknown instruction %q", tx.Instruction)
	}
	if tx.Account == (common.Address{}) {
		return errors.Wrap(ErrInvalidTransaction, "missing account")
	}
	return nil
}

// Message is the canonical byte string covered by signatures:
// id | instruction discriminator | account | signer | selection.
func (tx *Transaction) Message() []byte {
	disc := instructionDiscriminators[tx.Instruction]
	msg := make([]byte, 0, 16+DiscriminatorSize+2*common.AddressLength+1)
	msg = append(msg, tx.ID[:]...)
	msg = append(msg, disc[:]...)
	msg = append(msg, tx.Account.Bytes()...)
	msg = append(msg, tx.Signer.Bytes()...)
	msg = append(msg, tx.Selection)
	return msg
}

// Digest is the Keccak-256 hash that signers sign.
func (tx *Transaction) Digest() []byte {
	return crypto.Keccak256(tx.Message())
}

// RequiredSigners lists the addresses that must have signed tx.
func (tx *Transaction) RequiredSigners(layout Layout) []common.Address {
	switch tx.Instruction {
	case InstructionInitialize:
		return []common.Address{tx.Signer, tx.Account}
	case InstructionAddVote:
		if layout.HasBallots() {
			return []common.Address{tx.Signer}
		}
	}
	return nil
}

type ReceiptStatus string

const (
	ReceiptOK     ReceiptStatus = "ok"
	ReceiptFailed ReceiptStatus = "failed"
)

// Receipt records the outcome of one executed transaction.
type Receipt struct {
	TxID        uuid.UUID      `json:"tx_id"`
	Instruction Instruction    `json:"instruction"`
	Account     common.Address `json:"account"`
	Signer      common.Address `json:"signer"`
	Selection   uint8          `json:"selection"`
	Status      ReceiptStatus  `json:"status"`
	Error       string         `json:"error,omitempty"`
	TotalVotes  uint64         `json:"total_votes"`
	ExecutedAt  int64          `json:"executed_at"`
}
