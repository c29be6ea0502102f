package models

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

var (
	voterA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	voterB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
)

func TestEncodeCounterLayout(t *testing.T) {
	data, err := EncodeAccount(LayoutCounter, VoteAccount{TotalVotes: 5, Votes: []Ballot{{Selection: 1, Voter: voterA}}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != 16 {
		t.Fatalf("expected 16 bytes, got %d", len(data))
	}
	if !bytes.Equal(data[:DiscriminatorSize], AccountDiscriminator[:]) {
		t.Fatalf("expected discriminator prefix")
	}
	if data[8] != 5 {
		t.Fatalf("expected little-endian counter, got %x", data[8:16])
	}

	acc, err := DecodeAccount(LayoutCounter, data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if acc.TotalVotes != 5 || len(acc.Votes) != 0 {
		t.Fatalf("unexpected account %+v", acc)
	}
}

func TestEncodeBallotsLayoutPreservesOrder(t *testing.T) {
	in := VoteAccount{
		TotalVotes: 3,
		Votes: []Ballot{
			{Selection: 1, Voter: voterA},
			{Selection: 0, Voter: voterB},
			{Selection: 255, Voter: voterA},
		},
	}
	data, err := EncodeAccount(LayoutBallots, in)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(data) != EncodedSize(LayoutBallots, in) || len(data) != 20+3*21 {
		t.Fatalf("unexpected encoded size %d", len(data))
	}

	// Allocated regions are zero padded past the record.
	region := make([]byte, 9000)
	copy(region, data)
	out, err := DecodeAccount(LayoutBallots, region)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if out.TotalVotes != 3 || len(out.Votes) != 3 {
		t.Fatalf("unexpected account %+v", out)
	}
	for i := range in.Votes {
		if out.Votes[i] != in.Votes[i] {
			t.Fatalf("ballot %d: expected %+v, got %+v", i, in.Votes[i], out.Votes[i])
		}
	}
}

func TestDecodeEmptyBallotsAccount(t *testing.T) {
	data, err := EncodeAccount(LayoutBallots, VoteAccount{})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	acc, err := DecodeAccount(LayoutBallots, data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if acc.TotalVotes != 0 || acc.Votes == nil || len(acc.Votes) != 0 {
		t.Fatalf("expected empty non-nil ballots, got %+v", acc)
	}
}

func TestDecodeRejectsBadInput(t *testing.T) {
	good, err := EncodeAccount(LayoutBallots, VoteAccount{TotalVotes: 1, Votes: []Ballot{{Selection: 2, Voter: voterA}}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	zeroed := make([]byte, 64)

	mismatched := append([]byte(nil), good...)
	mismatched[8] = 2

	cases := []struct {
		name string
		data []byte
		want error
	}{
		{"short", good[:10], ErrTruncatedAccount},
		{"uninitialized", zeroed, ErrBadDiscriminator},
		{"missing ballots", good[:25], ErrTruncatedAccount},
		{"count mismatch", mismatched, ErrCorruptAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeAccount(LayoutBallots, tc.data)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestParseLayout(t *testing.T) {
	for in, want := range map[string]Layout{"counter": LayoutCounter, "V1": LayoutCounter, " ballots ": LayoutBallots, "v2": LayoutBallots} {
		got, err := ParseLayout(in)
		if err != nil {
			t.Fatalf("parse %q failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", in, want, got)
		}
	}
	if _, err := ParseLayout("v3"); err == nil {
		t.Fatalf("expected error for unknown layout")
	}
}
