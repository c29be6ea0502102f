// Package program holds the vote account's instruction handlers as pure state
// transitions. Loading, persisting, locking and signature checks belong to the
// caller.
package program

import (
	"math"

	"github.com/cockroachdb/errors"

	"vote-program/models"
)

var ErrCounterOverflow = errors.New("total votes would overflow")

// Initialize returns a freshly initialized account.
func Initialize() models.VoteAccount {
	return models.VoteAccount{TotalVotes: 0, Votes: []models.Ballot{}}
}

// Increment is add_vote for the counter layout.
func Increment(acc models.VoteAccount) (models.VoteAccount, error) {
	if acc.TotalVotes == math.MaxUint64 {
		return acc, ErrCounterOverflow
	}
	out := acc.Clone()
	out.TotalVotes++
	return out, nil
}

// AddVote is add_vote for the ballots layout: the ballot is appended and the
// counter incremented. Neither the selection nor the voter is checked.
func AddVote(acc models.VoteAccount, ballot models.Ballot) (models.VoteAccount, error) {
	if acc.TotalVotes == math.MaxUint64 {
		return acc, ErrCounterOverflow
	}
	out := acc.Clone()
	out.Votes = append(out.Votes, ballot)
	out.TotalVotes++
	return out, nil
}

// Program binds the handlers to a deployment's account layout.
type Program struct {
	Layout models.Layout
}

func New(layout models.Layout) Program {
	return Program{Layout: layout}
}

func (p Program) Initialize() models.VoteAccount {
	return Initialize()
}

// AddVote dispatches to the layout's handler. The counter layout ignores the
// ballot.
func (p Program) AddVote(acc models.VoteAccount, ballot models.Ballot) (models.VoteAccount, error) {
	if p.Layout.HasBallots() {
		return AddVote(acc, ballot)
	}
	return Increment(acc)
}
