package models

import (
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
)

// Layout selects which account schema a deployment persists. The two layouts
// are incompatible; a node serves exactly one of them.
type Layout string

const (
	// LayoutCounter stores only the vote counter.
	LayoutCounter Layout = "counter"
	// LayoutBallots stores the counter followed by every cast ballot.
	LayoutBallots Layout = "ballots"
)

func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutCounter, "v1":
		return LayoutCounter, nil
	case LayoutBallots, "v2":
		return LayoutBallots, nil
	default:
		return "", errors.Newf("unknown account layout %q", s)
	}
}

// HasBallots reports whether the layout persists individual ballots.
func (l Layout) HasBallots() bool {
	return l == LayoutBallots
}

// Ballot is one recorded vote. Selection is stored verbatim.
type Ballot struct {
	Selection uint8          `json:"selection"`
	Voter     common.Address `json:"voter"`
}

// VoteAccount is the persisted program state.
type VoteAccount struct {
	TotalVotes uint64   `json:"total_votes"`
	Votes      []Ballot `json:"votes"`
}

// Clone returns a copy that shares no memory with acc.
func (acc VoteAccount) Clone() VoteAccount {
	out := VoteAccount{TotalVotes: acc.TotalVotes}
	if acc.Votes != nil {
		out.Votes = make([]Ballot, len(acc.Votes))
		copy(out.Votes, acc.Votes)
	}
	return out
}

// AccountView is the decoded account as served to clients. Ballots-layout
// accounts always carry a votes array, empty when no vote was cast; counter
// accounts never do.
type AccountView struct {
	Address    common.Address `json:"address"`
	Layout     Layout         `json:"layout"`
	TotalVotes uint64         `json:"total_votes"`
	Votes      []Ballot       `json:"votes,omitempty"`
}

func NewAccountView(addr common.Address, layout Layout, acc VoteAccount) AccountView {
	return AccountView{Address: addr, Layout: layout, TotalVotes: acc.TotalVotes, Votes: acc.Votes}
}

func (v AccountView) MarshalJSON() ([]byte, error) {
	if !v.Layout.HasBallots() {
		return json.Marshal(struct {
			Address    common.Address `json:"address"`
			Layout     Layout         `json:"layout"`
			TotalVotes uint64         `json:"total_votes"`
		}{v.Address, v.Layout, v.TotalVotes})
	}
	votes := v.Votes
	if votes == nil {
		votes = []Ballot{}
	}
	return json.Marshal(struct {
		Address    common.Address `json:"address"`
		Layout     Layout         `json:"layout"`
		TotalVotes uint64         `json:"total_votes"`
		Votes      []Ballot       `json:"votes"`
	}{v.Address, v.Layout, v.TotalVotes, votes})
}
