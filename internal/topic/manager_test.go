package topic

import (
	"context"
	"testing"

	"github.com/tokenized/pollr/internal/index"
	"github.com/tokenized/pollr/internal/lookup"
	"github.com/tokenized/pollr/internal/platform/tests"
	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/pushdrop"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/wire"
)

type setup struct {
	store   *index.Store
	service *lookup.Service
	manager *Manager
}

func newSetup() *setup {
	store := index.NewStore(tests.NewMasterDB(), nil)
	service := lookup.NewService(store, nil)
	return &setup{
		store:   store,
		service: service,
		manager: NewManager(service, nil),
	}
}

func payloadScript(t *testing.T, payload []byte) []byte {
	return pushdrop.Lock(tests.GenerateKey(t).PubKey(), [][]byte{payload})
}

func TestOpenAdmission(t *testing.T) {
	ctx := tests.Context()
	s := newSetup()

	open := tests.OpenToken("creator", "Lunch", "Pizza", "Tacos")
	closeToken, _ := pollr.ClosePoll(open, nil)

	tx := tests.Tx(t, nil,
		tests.TokenScript(t, open),
		// Declares 3 options but carries 2.
		payloadScript(t, pollr.EncodeStrings("open", "creator", "Lunch", "desc", "3", "text",
			"1704067200", "Pizza", "Tacos")),
		// Option count isn't a number.
		payloadScript(t, pollr.EncodeStrings("open", "creator", "Lunch", "desc", "two", "text",
			"1704067200", "Pizza", "Tacos")),
		tests.TokenScript(t, closeToken),
		// Close missing a count.
		payloadScript(t, pollr.EncodeStrings("close", "creator", "Lunch", "desc", "2", "text",
			"1704067200", "Pizza", "0", "Tacos")),
	)

	instructions, err := s.manager.IdentifyAdmissibleOutputs(ctx, tests.RawTx(t, tx), nil)
	if err != nil {
		t.Fatalf("Failed to identify outputs : %s", err)
	}

	// The close spends no poll.
	if diff := cmp.Diff([]uint32{0}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong admitted outputs (-want +got):\n%s", diff)
	}
	if len(instructions.CoinsToRetain) != 0 {
		t.Fatalf("Coins retained : %v", instructions.CoinsToRetain)
	}
}

func TestRejectsNonTokens(t *testing.T) {
	ctx := tests.Context()
	s := newSetup()

	tx := tests.Tx(t, nil,
		[]byte{0x76, 0xa9, 0x14, 0x00, 0x88, 0xac},
		payloadScript(t, []byte{0xfd, 0x10}),
		payloadScript(t, pollr.EncodeStrings("ballot", "a", "b", "c")),
		payloadScript(t, nil),
		tests.TokenScript(t, tests.OpenToken("creator", "Lunch", "Pizza")),
	)

	instructions, err := s.manager.IdentifyAdmissibleOutputs(ctx, tests.RawTx(t, tx), nil)
	if err != nil {
		t.Fatalf("Failed to identify outputs : %s", err)
	}

	if diff := cmp.Diff([]uint32{4}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong admitted outputs (-want +got):\n%s", diff)
	}
}

func TestMalformedTransaction(t *testing.T) {
	ctx := tests.Context()
	s := newSetup()

	instructions, err := s.manager.IdentifyAdmissibleOutputs(ctx, []byte{0x01, 0x00, 0x00}, nil)
	if err != nil {
		t.Fatalf("Malformed transaction returned error : %s", err)
	}

	if len(instructions.OutputsToAdmit) != 0 {
		t.Fatalf("Outputs admitted from malformed transaction : %v",
			instructions.OutputsToAdmit)
	}
}

func TestVoteAdmission(t *testing.T) {
	ctx := tests.Context()
	s := newSetup()

	pollTx := tests.Tx(t, nil, tests.TokenScript(t, tests.OpenToken("creator", "Lunch", "Yes",
		"No")))
	pollTxid := pollTx.TxHash().String()
	if err := s.store.Insert(ctx, tests.Outpoint(pollTx, 0),
		tests.OpenToken("creator", "Lunch", "Yes", "No")); err != nil {
		t.Fatalf("Failed to insert poll : %s", err)
	}

	if err := s.store.Insert(ctx, pollr.Outpoint{Txid: "earlier", OutputIndex: 0},
		tests.VoteToken("carol", pollTxid, "No")); err != nil {
		t.Fatalf("Failed to insert vote : %s", err)
	}

	tx := tests.Tx(t, nil,
		tests.TokenScript(t, tests.VoteToken("alice", pollTxid, "Yes")),
		tests.TokenScript(t, tests.VoteToken("bob", pollTxid, "No")),
		// Second vote from alice in the same transaction.
		tests.TokenScript(t, tests.VoteToken("alice", pollTxid, "No")),
		// carol already voted.
		tests.TokenScript(t, tests.VoteToken("carol", pollTxid, "Yes")),
		// Unknown poll.
		tests.TokenScript(t, tests.VoteToken("dave", "missing", "Yes")),
		// Wrong field count.
		payloadScript(t, pollr.EncodeStrings("vote", "erin", pollTxid)),
	)

	instructions, err := s.manager.IdentifyAdmissibleOutputs(ctx, tests.RawTx(t, tx), nil)
	if err != nil {
		t.Fatalf("Failed to identify outputs : %s", err)
	}

	if diff := cmp.Diff([]uint32{0, 1}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong admitted outputs (-want +got):\n%s", diff)
	}
}

func TestVoteOnClosedPoll(t *testing.T) {
	ctx := tests.Context()
	s := newSetup()

	open := tests.OpenToken("creator", "Lunch", "Yes", "No")
	if err := s.store.Insert(ctx, pollr.Outpoint{Txid: "poll", OutputIndex: 0}, open); err != nil {
		t.Fatalf("Failed to insert poll : %s", err)
	}

	closeToken, _ := pollr.ClosePoll(open, nil)
	if err := s.store.Insert(ctx, pollr.Outpoint{Txid: "close", OutputIndex: 0},
		closeToken); err != nil {
		t.Fatalf("Failed to insert close : %s", err)
	}
	if _, err := s.store.Spend(ctx, pollr.Outpoint{Txid: "poll", OutputIndex: 0},
		"close"); err != nil {
		t.Fatalf("Failed to spend poll : %s", err)
	}

	tx := tests.Tx(t, nil, tests.TokenScript(t, tests.VoteToken("alice", "poll", "Yes")))

	instructions, err := s.manager.IdentifyAdmissibleOutputs(ctx, tests.RawTx(t, tx), nil)
	if err != nil {
		t.Fatalf("Failed to identify outputs : %s", err)
	}

	if len(instructions.OutputsToAdmit) != 0 {
		t.Fatalf("Vote on closed poll admitted")
	}
}

func TestCloseAdmission(t *testing.T) {
	ctx := tests.Context()
	s := newSetup()

	open := tests.OpenToken("creator", "Lunch", "Yes", "No")
	pollTx := tests.Tx(t, nil, tests.TokenScript(t, open))
	if err := s.store.Insert(ctx, tests.Outpoint(pollTx, 0), open); err != nil {
		t.Fatalf("Failed to insert poll : %s", err)
	}

	otherTx := tests.Tx(t, nil, tests.TokenScript(t, tests.VoteToken("alice", "x", "Yes")))
	if err := s.store.Insert(ctx, tests.Outpoint(otherTx, 0),
		tests.VoteToken("alice", "x", "Yes")); err != nil {
		t.Fatalf("Failed to insert vote : %s", err)
	}

	closeToken, _ := pollr.ClosePoll(open, nil)

	spends := []struct {
		name          string
		spends        []*wire.OutPoint
		previousCoins []uint32
		want          []uint32
	}{
		{"spends poll", []*wire.OutPoint{tests.WireOutpoint(pollTx, 0)}, []uint32{1},
			[]uint32{0}},
		{"spends nothing", nil, nil, []uint32{}},
		{"spends poll not in previous coins", []*wire.OutPoint{tests.WireOutpoint(pollTx, 0)},
			nil, []uint32{}},
		{"spends other output", []*wire.OutPoint{tests.WireOutpoint(otherTx, 0)}, []uint32{1},
			[]uint32{}},
	}

	for _, tt := range spends {
		t.Run(tt.name, func(t *testing.T) {
			tx := tests.RawTx(t, tests.Tx(t, tt.spends, tests.TokenScript(t, closeToken)))

			instructions, err := s.manager.IdentifyAdmissibleOutputs(ctx, tx, tt.previousCoins)
			if err != nil {
				t.Fatalf("Failed to identify outputs : %s", err)
			}

			if diff := cmp.Diff(tt.want, instructions.OutputsToAdmit); diff != "" {
				t.Fatalf("Wrong admitted outputs (-want +got):\n%s", diff)
			}
		})
	}
}

type failingResolver struct{}

func (failingResolver) Lookup(ctx context.Context,
	question *pollr.Question) ([]pollr.Outpoint, error) {
	return nil, errors.New("resolver offline")
}

func TestResolverFailure(t *testing.T) {
	ctx := tests.Context()
	manager := NewManager(failingResolver{}, nil)

	tx := tests.Tx(t, nil,
		tests.TokenScript(t, tests.VoteToken("alice", "poll", "Yes")),
		tests.TokenScript(t, tests.OpenToken("creator", "Lunch", "Yes")),
	)

	instructions, err := manager.IdentifyAdmissibleOutputs(ctx, tests.RawTx(t, tx), nil)
	if err != nil {
		t.Fatalf("Failed to identify outputs : %s", err)
	}

	if diff := cmp.Diff([]uint32{1}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong admitted outputs (-want +got):\n%s", diff)
	}
}

func TestRejectionReason(t *testing.T) {
	if got := rejectionReason(errors.Wrap(pollr.ErrDuplicateVote, "x")); got != "duplicate_vote" {
		t.Fatalf("Wrong reason : %s", got)
	}
	if got := rejectionReason(errors.New("other")); got != "resolver_failure" {
		t.Fatalf("Wrong reason : %s", got)
	}
}
