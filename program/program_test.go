package program

import (
	"math"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"

	"vote-program/models"
)

var (
	identityA = common.HexToAddress("0xa1")
	identityB = common.HexToAddress("0xb2")
)

func TestInitialize(t *testing.T) {
	acc := Initialize()
	if acc.TotalVotes != 0 {
		t.Fatalf("expected zero votes, got %d", acc.TotalVotes)
	}
	if len(acc.Votes) != 0 {
		t.Fatalf("expected no ballots, got %d", len(acc.Votes))
	}
}

func TestCounterAddVoteFiveTimes(t *testing.T) {
	p := New(models.LayoutCounter)
	acc := p.Initialize()
	for i := 0; i < 5; i++ {
		var err error
		acc, err = p.AddVote(acc, models.Ballot{Selection: 1, Voter: identityA})
		if err != nil {
			t.Fatalf("add vote %d failed: %v", i, err)
		}
	}
	if acc.TotalVotes != 5 {
		t.Fatalf("expected 5 votes, got %d", acc.TotalVotes)
	}
	if len(acc.Votes) != 0 {
		t.Fatalf("counter layout must not record ballots, got %d", len(acc.Votes))
	}
}

func TestBallotsScenario(t *testing.T) {
	p := New(models.LayoutBallots)
	acc := p.Initialize()

	acc, err := p.AddVote(acc, models.Ballot{Selection: 1, Voter: identityA})
	if err != nil {
		t.Fatalf("first vote failed: %v", err)
	}
	acc, err = p.AddVote(acc, models.Ballot{Selection: 0, Voter: identityB})
	if err != nil {
		t.Fatalf("second vote failed: %v", err)
	}

	if acc.TotalVotes != 2 {
		t.Fatalf("expected 2 votes, got %d", acc.TotalVotes)
	}
	want := []models.Ballot{{Selection: 1, Voter: identityA}, {Selection: 0, Voter: identityB}}
	if len(acc.Votes) != len(want) {
		t.Fatalf("expected %d ballots, got %d", len(want), len(acc.Votes))
	}
	for i := range want {
		if acc.Votes[i] != want[i] {
			t.Fatalf("ballot %d: expected %+v, got %+v", i, want[i], acc.Votes[i])
		}
	}
}

func TestBallotsArePermissive(t *testing.T) {
	acc := Initialize()
	var err error
	for _, sel := range []uint8{255, 255, 7} {
		acc, err = AddVote(acc, models.Ballot{Selection: sel, Voter: identityA})
		if err != nil {
			t.Fatalf("add vote failed: %v", err)
		}
	}
	if acc.TotalVotes != uint64(len(acc.Votes)) || acc.TotalVotes != 3 {
		t.Fatalf("expected 3 votes and ballots, got %d/%d", acc.TotalVotes, len(acc.Votes))
	}
	if acc.Votes[0].Selection != 255 || acc.Votes[1].Voter != identityA {
		t.Fatalf("expected selections and repeated voter stored verbatim, got %+v", acc.Votes)
	}
}

func TestAddVoteDoesNotAliasInput(t *testing.T) {
	before := models.VoteAccount{TotalVotes: 1, Votes: make([]models.Ballot, 1, 8)}
	after, err := AddVote(before, models.Ballot{Selection: 3, Voter: identityB})
	if err != nil {
		t.Fatalf("add vote failed: %v", err)
	}
	if before.TotalVotes != 1 || len(before.Votes) != 1 {
		t.Fatalf("input mutated: %+v", before)
	}
	if before.Votes[:2][1] == after.Votes[1] {
		t.Fatalf("input backing array was written")
	}
}

func TestCounterOverflowRejected(t *testing.T) {
	full := models.VoteAccount{TotalVotes: math.MaxUint64}
	if _, err := Increment(full); !errors.Is(err, ErrCounterOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if _, err := AddVote(full, models.Ballot{}); !errors.Is(err, ErrCounterOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
}
