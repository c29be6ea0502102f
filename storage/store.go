package storage

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"vote-program/models"
)

const (
	// DefaultSpace is the region allocated for each account on creation.
	DefaultSpace = 9000
	// MaxAccountSpace bounds the configurable allocation.
	MaxAccountSpace = 10 * 1024 * 1024
)

// Backend persists raw account regions keyed by address.
type Backend interface {
	// Insert stores a new region and fails with ErrAccountExists if the
	// address is taken.
	Insert(ctx context.Context, addr common.Address, data []byte) error
	// Get returns a copy of the region or ErrAccountNotFound.
	Get(ctx context.Context, addr common.Address) ([]byte, error)
	// Put replaces an existing region or fails with ErrAccountNotFound.
	Put(ctx context.Context, addr common.Address, data []byte) error
}

// Store loads and saves VoteAccounts. Every account owns a fixed region of
// space bytes allocated at creation; writes that would not fit are rejected
// with a *CapacityError and leave the stored account untouched.
type Store struct {
	backend Backend
	layout  models.Layout
	space   int
	logger  zerolog.Logger
}

func NewStore(backend Backend, layout models.Layout, space int, logger zerolog.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage backend is required")
	}
	if layout != models.LayoutCounter && layout != models.LayoutBallots {
		return nil, errors.Newf("unknown account layout %q", layout)
	}
	minimum := models.EncodedSize(layout, models.VoteAccount{})
	if space < minimum || space > MaxAccountSpace {
		return nil, errors.Wrapf(ErrInvalidCapacity, "space %d outside [%d, %d]", space, minimum, MaxAccountSpace)
	}
	return &Store{
		backend: backend,
		layout:  layout,
		space:   space,
		logger:  logger.With().Str("component", "store").Logger(),
	}, nil
}

func (s *Store) Layout() models.Layout { return s.layout }

func (s *Store) Space() int { return s.space }

// Create allocates a zeroed region for addr and writes acc into it.
func (s *Store) Create(ctx context.Context, addr common.Address, acc models.VoteAccount) error {
	region := make([]byte, s.space)
	if err := s.encodeInto(region, acc); err != nil {
		return err
	}
	if err := s.backend.Insert(ctx, addr, region); err != nil {
		return errors.Wrapf(err, "create account %s", addr.Hex())
	}
	s.logger.Debug().Str("account", addr.Hex()).Int("space", s.space).Msg("account created")
	return nil
}

func (s *Store) Load(ctx context.Context, addr common.Address) (models.VoteAccount, error) {
	region, err := s.backend.Get(ctx, addr)
	if err != nil {
		return models.VoteAccount{}, errors.Wrapf(err, "load account %s", addr.Hex())
	}
	acc, err := models.DecodeAccount(s.layout, region)
	if err != nil {
		return models.VoteAccount{}, errors.Wrapf(err, "decode account %s", addr.Hex())
	}
	return acc, nil
}

// Save rewrites the account in place within its existing region.
func (s *Store) Save(ctx context.Context, addr common.Address, acc models.VoteAccount) error {
	current, err := s.backend.Get(ctx, addr)
	if err != nil {
		return errors.Wrapf(err, "save account %s", addr.Hex())
	}
	region := make([]byte, len(current))
	if err := s.encodeInto(region, acc); err != nil {
		s.logger.Warn().
			Str("account", addr.Hex()).
			Uint64("total_votes", acc.TotalVotes).
			Err(err).
			Msg("account write rejected")
		return err
	}
	if err := s.backend.Put(ctx, addr, region); err != nil {
		return errors.Wrapf(err, "save account %s", addr.Hex())
	}
	return nil
}

func (s *Store) encodeInto(region []byte, acc models.VoteAccount) error {
	if need := models.EncodedSize(s.layout, acc); need > len(region) {
		return &CapacityError{Required: need, Capacity: len(region)}
	}
	data, err := models.EncodeAccount(s.layout, acc)
	if err != nil {
		return err
	}
	copy(region, data)
	return nil
}
