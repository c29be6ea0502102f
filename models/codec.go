package models

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const (
	DiscriminatorSize = 8

	counterHeaderSize = DiscriminatorSize + 8
	ballotsHeaderSize = counterHeaderSize + 4
	ballotSize        = 1 + common.AddressLength
)

var (
	ErrBadDiscriminator = errors.New("account discriminator mismatch")
	ErrTruncatedAccount = errors.New("account data truncated")
	ErrCorruptAccount   = errors.New("account data corrupt")
)

// AccountDiscriminator prefixes every encoded VoteAccount.
var AccountDiscriminator = discriminator("account", "VoteAccount")

func discriminator(namespace, name string) [DiscriminatorSize]byte {
	sum := sha3.Sum256([]byte(namespace + ":" + name))
	var out [DiscriminatorSize]byte
	copy(out[:], sum[:DiscriminatorSize])
	return out
}

// EncodedSize returns the number of bytes EncodeAccount produces for acc.
func EncodedSize(layout Layout, acc VoteAccount) int {
	if !layout.HasBallots() {
		return counterHeaderSize
	}
	return ballotsHeaderSize + len(acc.Votes)*ballotSize
}

// EncodeAccount serializes acc in the given layout. The counter layout drops
// any ballots.
func EncodeAccount(layout Layout, acc VoteAccount) ([]byte, error) {
	if layout.HasBallots() && uint64(len(acc.Votes)) > uint64(^uint32(0)) {
		return nil, errors.Wrapf(ErrCorruptAccount, "%d ballots exceed length prefix", len(acc.Votes))
	}

	buf := make([]byte, EncodedSize(layout, acc))
	copy(buf, AccountDiscriminator[:])
	binary.LittleEndian.PutUint64(buf[DiscriminatorSize:], acc.TotalVotes)
	if !layout.HasBallots() {
		return buf, nil
	}

	binary.LittleEndian.PutUint32(buf[counterHeaderSize:], uint32(len(acc.Votes)))
	off := ballotsHeaderSize
	for _, b := range acc.Votes {
		buf[off] = b.Selection
		copy(buf[off+1:off+ballotSize], b.Voter.Bytes())
		off += ballotSize
	}
	return buf, nil
}

// DecodeAccount parses an account region. Bytes past the encoded record are
// unused capacity and are ignored.
func DecodeAccount(layout Layout, data []byte) (VoteAccount, error) {
	if len(data) < counterHeaderSize {
		return VoteAccount{}, errors.Wrapf(ErrTruncatedAccount, "%d bytes", len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], AccountDiscriminator[:]) {
		return VoteAccount{}, ErrBadDiscriminator
	}

	acc := VoteAccount{TotalVotes: binary.LittleEndian.Uint64(data[DiscriminatorSize:])}
	if !layout.HasBallots() {
		return acc, nil
	}

	if len(data) < ballotsHeaderSize {
		return VoteAccount{}, errors.Wrapf(ErrTruncatedAccount, "%d bytes", len(data))
	}
	n := binary.LittleEndian.Uint32(data[counterHeaderSize:])
	if uint64(n) != acc.TotalVotes {
		return VoteAccount{}, errors.Wrapf(ErrCorruptAccount,
			"ballot count %d does not match total votes %d", n, acc.TotalVotes)
	}
	end := ballotsHeaderSize + int(n)*ballotSize
	if len(data) < end {
		return VoteAccount{}, errors.Wrapf(ErrTruncatedAccount, "need %d bytes, have %d", end, len(data))
	}

	acc.Votes = make([]Ballot, n)
	off := ballotsHeaderSize
	for i := range acc.Votes {
		acc.Votes[i] = Ballot{
			Selection: data[off],
			Voter:     common.BytesToAddress(data[off+1 : off+ballotSize]),
		}
		off += ballotSize
	}
	return acc, nil
}
