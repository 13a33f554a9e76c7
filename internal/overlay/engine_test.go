package overlay_test

import (
	"testing"

	"github.com/tokenized/pollr/internal/index"
	"github.com/tokenized/pollr/internal/lookup"
	"github.com/tokenized/pollr/internal/overlay"
	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/tests"
	"github.com/tokenized/pollr/internal/topic"
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/tokenized/pkg/wire"
)

type node struct {
	engine  *overlay.Engine
	service *lookup.Service
}

func newNode() *node {
	masterDB := tests.NewMasterDB()
	service := lookup.NewService(index.NewStore(masterDB, nil), nil)
	manager := topic.NewManager(service, nil)

	return &node{
		engine: overlay.NewEngine(masterDB,
			map[string]overlay.TopicManager{pollr.TopicName: manager},
			map[string]overlay.LookupService{pollr.ServiceName: service}, nil),
		service: service,
	}
}

func (n *node) lookup(t *testing.T, question *pollr.Question) []pollr.Outpoint {
	result, err := n.engine.Lookup(tests.Context(), question)
	if err != nil {
		t.Fatalf("Failed to lookup : %s", err)
	}
	return result
}

func (n *node) submit(t *testing.T, rawTx []byte) overlay.AdmittanceInstructions {
	steak, err := n.engine.Submit(tests.Context(), rawTx, []string{pollr.TopicName})
	if err != nil {
		t.Fatalf("Failed to submit : %s", err)
	}
	return steak[pollr.TopicName]
}

func TestPollLifecycle(t *testing.T) {
	ctx := tests.Context()
	n := newNode()

	open := tests.OpenToken("creator", "Color", "Red", "Blue")
	openTx := tests.Tx(t, nil, tests.TokenScript(t, open))
	instructions := n.submit(t, tests.RawTx(t, openTx))
	if diff := cmp.Diff([]uint32{0}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong open admission (-want +got):\n%s", diff)
	}

	pollTxid := openTx.TxHash().String()
	poll := tests.Outpoint(openTx, 0)

	output, err := n.engine.Output(ctx, pollr.TopicName, poll)
	if err != nil {
		t.Fatalf("Failed to fetch admitted output : %s", err)
	}
	if output.Satoshis != 1 || output.Spent {
		t.Fatalf("Wrong admitted output : %+v", output)
	}

	voteTx := tests.Tx(t, nil,
		tests.TokenScript(t, tests.VoteToken("alice", pollTxid, "Red")),
		tests.TokenScript(t, tests.VoteToken("bob", pollTxid, "Blue")),
		tests.TokenScript(t, tests.VoteToken("carol", pollTxid, "Red")))
	instructions = n.submit(t, tests.RawTx(t, voteTx))
	if diff := cmp.Diff([]uint32{0, 1, 2}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong vote admission (-want +got):\n%s", diff)
	}

	votes := n.lookup(t, pollr.AllVotesForQuestion(pollTxid))
	if len(votes) != 3 {
		t.Fatalf("Wrong vote count : got %d, wanted 3", len(votes))
	}

	closure, err := n.service.Close(ctx, pollTxid)
	if err != nil {
		t.Fatalf("Failed to build closure : %s", err)
	}

	if len(closure.Spends) != 4 {
		t.Fatalf("Wrong closure spend count : got %d, wanted 4", len(closure.Spends))
	}

	spends := make([]*wire.OutPoint, 0, len(closure.Spends))
	spends = append(spends, tests.WireOutpoint(openTx, 0))
	for i := range votes {
		spends = append(spends, tests.WireOutpoint(voteTx, uint32(i)))
	}

	closeTx := tests.Tx(t, spends, tests.TokenScript(t, closure.Token))
	instructions = n.submit(t, tests.RawTx(t, closeTx))
	if diff := cmp.Diff([]uint32{0}, instructions.OutputsToAdmit); diff != "" {
		t.Fatalf("Wrong close admission (-want +got):\n%s", diff)
	}

	if got := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusOpen)); len(got) != 0 {
		t.Fatalf("Closed poll still open : %v", got)
	}
	if got := n.lookup(t, pollr.AllVotesForQuestion(pollTxid)); len(got) != 0 {
		t.Fatalf("Spent votes still indexed : %v", got)
	}

	closed := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusClosed))
	if diff := cmp.Diff([]pollr.Outpoint{tests.Outpoint(closeTx, 0)}, closed); diff != "" {
		t.Fatalf("Wrong closed polls (-want +got):\n%s", diff)
	}

	if _, err := n.engine.Output(ctx, pollr.TopicName, poll); errors.Cause(err) != db.ErrNotFound {
		t.Fatalf("Spent output still stored : %v", err)
	}

	tally, err := n.service.Tally(ctx, pollTxid)
	if err != nil {
		t.Fatalf("Failed to tally : %s", err)
	}
	want := []pollr.OptionCount{{Option: "Red", Count: 2}, {Option: "Blue", Count: 1}}
	if diff := cmp.Diff(want, tally.Results); diff != "" {
		t.Fatalf("Wrong final tally (-want +got):\n%s", diff)
	}

	// Evicting the close puts the poll and its votes back.
	for i := 0; i < 2; i++ {
		evicted, err := n.engine.Evict(ctx, closeTx.TxHash().String())
		if err != nil {
			t.Fatalf("Failed to evict (%d) : %s", i, err)
		}
		if i == 0 && len(evicted) != 1 {
			t.Fatalf("Wrong evicted count : got %d, wanted 1", len(evicted))
		}
		if i == 1 && len(evicted) != 0 {
			t.Fatalf("Evicted twice : %v", evicted)
		}

		if got := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusClosed)); len(got) != 0 {
			t.Fatalf("Evicted close still indexed : %v", got)
		}

		openPolls := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusOpen))
		if diff := cmp.Diff([]pollr.Outpoint{poll}, openPolls); diff != "" {
			t.Fatalf("Poll not restored (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff(votes, n.lookup(t, pollr.AllVotesForQuestion(pollTxid))); diff != "" {
			t.Fatalf("Votes not restored (-want +got):\n%s", diff)
		}
	}

	output, err = n.engine.Output(ctx, pollr.TopicName, poll)
	if err != nil {
		t.Fatalf("Failed to fetch restored output : %s", err)
	}
	if output.Spent {
		t.Fatalf("Restored output marked spent")
	}

	tally, err = n.service.Tally(ctx, pollTxid)
	if err != nil {
		t.Fatalf("Failed to tally restored poll : %s", err)
	}
	if tally.Status != pollr.StatusOpen {
		t.Fatalf("Wrong restored status : %s", tally.Status)
	}
	if diff := cmp.Diff(want, tally.Results); diff != "" {
		t.Fatalf("Wrong restored tally (-want +got):\n%s", diff)
	}
}

func TestForgedCloseRejected(t *testing.T) {
	ctx := tests.Context()
	n := newNode()

	open := tests.OpenToken("creator", "Color", "Red", "Blue")
	openTx := tests.Tx(t, nil, tests.TokenScript(t, open))
	n.submit(t, tests.RawTx(t, openTx))
	pollTxid := openTx.TxHash().String()

	voteTx := tests.Tx(t, nil, tests.TokenScript(t, tests.VoteToken("alice", pollTxid, "Red")))
	n.submit(t, tests.RawTx(t, voteTx))

	forged, _ := pollr.ClosePoll(open, nil)

	// Matches the poll but spends nothing.
	forgedTx := tests.Tx(t, nil, tests.TokenScript(t, forged))
	if got := n.submit(t, tests.RawTx(t, forgedTx)).OutputsToAdmit; len(got) != 0 {
		t.Fatalf("Close spending nothing admitted : %v", got)
	}

	// Matches the poll but spends only a vote.
	voteSpendTx := tests.Tx(t, []*wire.OutPoint{tests.WireOutpoint(voteTx, 0)},
		tests.TokenScript(t, forged))
	if got := n.submit(t, tests.RawTx(t, voteSpendTx)).OutputsToAdmit; len(got) != 0 {
		t.Fatalf("Close spending a vote admitted : %v", got)
	}

	if got := n.lookup(t, pollr.PollQuestion(pollTxid, pollr.StatusOpen)); len(got) != 1 {
		t.Fatalf("Poll closed by forged close : %v", got)
	}
	if got := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusClosed)); len(got) != 0 {
		t.Fatalf("Forged close indexed as closed poll : %v", got)
	}

	// Votes are still admitted.
	bobTx := tests.Tx(t, nil, tests.TokenScript(t, tests.VoteToken("bob", pollTxid, "Blue")))
	if got := n.submit(t, tests.RawTx(t, bobTx)).OutputsToAdmit; len(got) != 1 {
		t.Fatalf("Vote after forged close rejected : %v", got)
	}

	// The vote output was still spent.
	if got := n.lookup(t, pollr.VoteQuestion(pollTxid, "alice")); len(got) != 0 {
		t.Fatalf("Spent vote still indexed : %v", got)
	}

	// Evicting the forged transactions evicts nothing and puts back the spent vote.
	for _, tx := range []*wire.MsgTx{forgedTx, voteSpendTx} {
		evicted, err := n.engine.Evict(ctx, tx.TxHash().String())
		if err != nil {
			t.Fatalf("Failed to evict : %s", err)
		}
		if len(evicted) != 0 {
			t.Fatalf("Evicted outputs of a rejected close : %v", evicted)
		}
	}

	if got := n.lookup(t, pollr.PollQuestion(pollTxid, pollr.StatusOpen)); len(got) != 1 {
		t.Fatalf("Poll gone after evicting forged closes : %v", got)
	}
	if got := n.lookup(t, pollr.AllVotesForQuestion(pollTxid)); len(got) != 2 {
		t.Fatalf("Wrong vote count after evictions : got %d, wanted 2", len(got))
	}
}

func TestEvictCloseAfterPollEvicted(t *testing.T) {
	ctx := tests.Context()
	n := newNode()

	open := tests.OpenToken("creator", "Color", "Red", "Blue")
	openTx := tests.Tx(t, nil, tests.TokenScript(t, open))
	n.submit(t, tests.RawTx(t, openTx))
	pollTxid := openTx.TxHash().String()

	closure, err := n.service.Close(ctx, pollTxid)
	if err != nil {
		t.Fatalf("Failed to build closure : %s", err)
	}

	closeTx := tests.Tx(t, []*wire.OutPoint{tests.WireOutpoint(openTx, 0)},
		tests.TokenScript(t, closure.Token))
	if got := n.submit(t, tests.RawTx(t, closeTx)).OutputsToAdmit; len(got) != 1 {
		t.Fatalf("Close not admitted : %v", got)
	}

	// The poll output is already spent so evicting its transaction evicts nothing.
	if _, err := n.engine.Evict(ctx, pollTxid); err != nil {
		t.Fatalf("Failed to evict poll : %s", err)
	}

	if _, err := n.engine.Evict(ctx, closeTx.TxHash().String()); err != nil {
		t.Fatalf("Failed to evict close : %s", err)
	}

	if got := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusOpen)); len(got) != 0 {
		t.Fatalf("Evicted poll restored : %v", got)
	}
	if got := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusClosed)); len(got) != 0 {
		t.Fatalf("Evicted close still indexed : %v", got)
	}
}

func TestDuplicateVoteRejected(t *testing.T) {
	n := newNode()

	openTx := tests.Tx(t, nil, tests.TokenScript(t, tests.OpenToken("creator", "Dup", "A", "B")))
	n.submit(t, tests.RawTx(t, openTx))
	pollTxid := openTx.TxHash().String()

	first := tests.Tx(t, nil, tests.TokenScript(t, tests.VoteToken("alice", pollTxid, "A")))
	if got := n.submit(t, tests.RawTx(t, first)).OutputsToAdmit; len(got) != 1 {
		t.Fatalf("First vote not admitted : %v", got)
	}

	second := tests.Tx(t, nil, tests.TokenScript(t, tests.VoteToken("alice", pollTxid, "B")))
	if got := n.submit(t, tests.RawTx(t, second)).OutputsToAdmit; len(got) != 0 {
		t.Fatalf("Second vote admitted : %v", got)
	}

	votes := n.lookup(t, pollr.VoteQuestion(pollTxid, "alice"))
	if diff := cmp.Diff([]pollr.Outpoint{tests.Outpoint(first, 0)}, votes); diff != "" {
		t.Fatalf("Wrong vote (-want +got):\n%s", diff)
	}
}

func TestResubmitIsNoop(t *testing.T) {
	n := newNode()

	openTx := tests.Tx(t, nil, tests.TokenScript(t, tests.OpenToken("creator", "Again", "A")))
	rawTx := tests.RawTx(t, openTx)
	first := n.submit(t, rawTx)
	second := n.submit(t, rawTx)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Wrong resubmit instructions (-want +got):\n%s", diff)
	}

	if got := n.lookup(t, pollr.AllPollsQuestion(pollr.StatusOpen)); len(got) != 1 {
		t.Fatalf("Wrong open poll count : got %d, wanted 1", len(got))
	}
}

func TestSubmitErrors(t *testing.T) {
	ctx := tests.Context()
	n := newNode()

	openTx := tests.Tx(t, nil, tests.TokenScript(t, tests.OpenToken("creator", "Err", "A")))

	if _, err := n.engine.Submit(ctx, tests.RawTx(t, openTx),
		[]string{"tm_other"}); errors.Cause(err) != overlay.ErrUnknownTopic {
		t.Fatalf("Wrong error for unknown topic : got %v, wanted %v", err, overlay.ErrUnknownTopic)
	}

	if _, err := n.engine.Submit(ctx, []byte{0x01, 0x00},
		[]string{pollr.TopicName}); errors.Cause(err) != overlay.ErrMalformedTransaction {
		t.Fatalf("Wrong error for malformed tx : got %v, wanted %v", err,
			overlay.ErrMalformedTransaction)
	}

	if _, err := n.engine.Lookup(ctx, &pollr.Question{Service: "ls_other",
		Query: &pollr.Query{Type: pollr.QueryAllPolls}}); errors.Cause(err) != pollr.ErrUnknownService {
		t.Fatalf("Wrong error for unknown service : got %v, wanted %v", err,
			pollr.ErrUnknownService)
	}

	if _, err := n.engine.Lookup(ctx, nil); errors.Cause(err) != pollr.ErrInvalidQuery {
		t.Fatalf("Wrong error for missing question : got %v, wanted %v", err,
			pollr.ErrInvalidQuery)
	}
}

func TestMetaData(t *testing.T) {
	n := newNode()

	topics := n.engine.ListTopics()
	if _, exists := topics[pollr.TopicName]; !exists {
		t.Fatalf("Missing topic %s : %v", pollr.TopicName, topics)
	}

	services := n.engine.ListLookupServices()
	if _, exists := services[pollr.ServiceName]; !exists {
		t.Fatalf("Missing lookup service %s : %v", pollr.ServiceName, services)
	}

	if docs, exists := n.engine.Documentation(pollr.ServiceName); !exists || len(docs) == 0 {
		t.Fatalf("Missing lookup service documentation")
	}
	if _, exists := n.engine.Documentation("ls_other"); exists {
		t.Fatalf("Documentation for unknown name")
	}
}
