// Package index is the durable poll index. It holds the admitted open, vote and close tokens keyed
// by outpoint and answers the reads the lookup service needs.
package index

import (
	"context"
	"sort"
	"sync"

	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/metrics"
	"github.com/tokenized/pollr/internal/platform/node"
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"
)

// Store keeps every record in memory and writes through to the DB.
type Store struct {
	masterDB *db.DB
	metrics  *metrics.Metrics

	// pollLocks serializes vote inserts per poll so the one vote per voter check and the insert
	// are atomic.
	pollLocks *node.MapLock

	lock     sync.RWMutex
	opens    map[string]*OpenRecord
	votes    map[string]*VoteRecord
	closes   map[string]*CloseRecord
	sequence uint64

	opensByTx    keySets           // txid -> open keys
	votesByPoll  keySets           // poll txid -> vote keys
	voteByVoter  map[string]string // poll txid/voter key -> vote key
	closesByTx   keySets           // txid -> close keys, pending included
	closesByPoll keySets           // poll txid -> bound close keys
}

// NewStore returns an empty store. m may be nil.
func NewStore(masterDB *db.DB, m *metrics.Metrics) *Store {
	return &Store{
		masterDB:     masterDB,
		metrics:      m,
		pollLocks:    node.NewMapLock(),
		opens:        make(map[string]*OpenRecord),
		votes:        make(map[string]*VoteRecord),
		closes:       make(map[string]*CloseRecord),
		opensByTx:    make(keySets),
		votesByPoll:  make(keySets),
		voteByVoter:  make(map[string]string),
		closesByTx:   make(keySets),
		closesByPoll: make(keySets),
	}
}

// Load returns a store holding the records previously written to the DB.
func Load(ctx context.Context, masterDB *db.DB, m *metrics.Metrics) (*Store, error) {
	ctx, span := trace.StartSpan(ctx, "internal.index.Load")
	defer span.End()

	result := NewStore(masterDB, m)

	opens, err := listOpens(ctx, masterDB)
	if err != nil {
		return nil, errors.Wrap(err, "list opens")
	}
	for _, record := range opens {
		result.addOpen(record)
	}

	votes, err := listVotes(ctx, masterDB)
	if err != nil {
		return nil, errors.Wrap(err, "list votes")
	}
	for _, record := range votes {
		result.addVote(record)
	}

	closes, err := listCloses(ctx, masterDB)
	if err != nil {
		return nil, errors.Wrap(err, "list closes")
	}
	for _, record := range closes {
		result.addClose(record)
	}

	logger.Info(ctx, "Loaded poll index : %d open, %d votes, %d closes", len(result.opens),
		len(result.votes), len(result.closes))
	return result, nil
}

// RecordAdmitted decodes the token payload of an admitted output and inserts it.
func (s *Store) RecordAdmitted(ctx context.Context, outpoint pollr.Outpoint, payload []byte) error {
	token, err := pollr.Deserialize(payload)
	if err != nil {
		return errors.Wrap(err, "deserialize")
	}

	return s.Insert(ctx, outpoint, token)
}

// Insert adds the token at outpoint to its collection. Inserting an outpoint that is already in
// the store does nothing.
//
// A vote from a voter that already voted on the poll returns pollr.ErrDuplicateVote.
//
// A close token is kept pending. It closes a poll when Spend reports that its transaction spent
// the output of an open poll with the same metadata and options.
func (s *Store) Insert(ctx context.Context, outpoint pollr.Outpoint, token pollr.Token) error {
	ctx, span := trace.StartSpan(ctx, "internal.index.Insert")
	defer span.End()

	switch t := token.(type) {
	case *pollr.OpenToken:
		return s.insertOpen(ctx, outpoint, t)
	case *pollr.VoteToken:
		return s.insertVote(ctx, outpoint, t)
	case *pollr.CloseToken:
		return s.insertClose(ctx, outpoint, t)
	}

	return errors.Wrapf(pollr.ErrUnknownTokenType, "%T", token)
}

func (s *Store) insertOpen(ctx context.Context, outpoint pollr.Outpoint,
	token *pollr.OpenToken) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.contains(outpoint.String()) {
		return nil
	}

	record := &OpenRecord{
		Outpoint: outpoint,
		Token:    token,
		Sequence: s.nextSequence(),
	}

	if err := save(ctx, s.masterDB, opensSubKey, outpoint, record); err != nil {
		return errors.Wrap(err, "save open")
	}

	s.addOpen(record)
	logger.Verbose(ctx, "Indexed poll %s : %s", outpoint, token.Name)
	return nil
}

func (s *Store) insertVote(ctx context.Context, outpoint pollr.Outpoint,
	token *pollr.VoteToken) error {

	unlock := s.pollLocks.Lock(token.PollTxid)
	defer unlock()

	s.lock.Lock()
	if s.contains(outpoint.String()) {
		s.lock.Unlock()
		return nil
	}

	if existing := s.findVote(token.PollTxid, token.VoterKey); existing != nil {
		s.lock.Unlock()
		s.metrics.DuplicateVoteBlocked()
		return errors.Wrapf(pollr.ErrDuplicateVote, "voter %s already voted on %s at %s",
			token.VoterKey, token.PollTxid, existing.Outpoint)
	}

	record := &VoteRecord{
		Outpoint: outpoint,
		Token:    token,
		Sequence: s.nextSequence(),
	}
	s.lock.Unlock()

	// The poll lock is still held so no other vote on this poll can pass the check above until
	// this one is in memory.
	if err := save(ctx, s.masterDB, votesSubKey, outpoint, record); err != nil {
		return errors.Wrap(err, "save vote")
	}

	s.lock.Lock()
	s.addVote(record)
	s.lock.Unlock()

	logger.Verbose(ctx, "Indexed vote %s on %s : %s", outpoint, token.PollTxid,
		token.ChosenOption)
	return nil
}

func (s *Store) insertClose(ctx context.Context, outpoint pollr.Outpoint,
	token *pollr.CloseToken) error {

	s.lock.Lock()
	defer s.lock.Unlock()

	if s.contains(outpoint.String()) {
		return nil
	}

	record := &CloseRecord{
		Outpoint: outpoint,
		Token:    token,
		Sequence: s.nextSequence(),
	}

	if err := save(ctx, s.masterDB, closesSubKey, outpoint, record); err != nil {
		return errors.Wrap(err, "save close")
	}

	s.addClose(record)
	logger.Verbose(ctx, "Indexed pending close %s : %s", outpoint, token.Name)
	return nil
}

// Spend removes the outpoint spent by the transaction spendingTxid from every collection. When
// the outpoint is an open poll and the spending transaction carries a pending close that matches
// the poll, the close is bound to the poll. It returns true if a record was removed.
func (s *Store) Spend(ctx context.Context, outpoint pollr.Outpoint,
	spendingTxid string) (bool, error) {

	ctx, span := trace.StartSpan(ctx, "internal.index.Spend")
	defer span.End()

	s.lock.Lock()
	defer s.lock.Unlock()

	if open, exists := s.opens[outpoint.String()]; exists {
		if err := s.bindClose(ctx, open, spendingTxid); err != nil {
			return false, err
		}
	}

	return s.remove(ctx, outpoint)
}

// bindClose closes the poll with the first pending close, in insertion order, of the spending
// transaction that matches it. The lock must be held.
func (s *Store) bindClose(ctx context.Context, open *OpenRecord, spendingTxid string) error {
	var match *CloseRecord
	for key := range s.closesByTx[spendingTxid] {
		record := s.closes[key]
		if !record.Pending() || !record.Token.Matches(open.Token) {
			continue
		}
		if match == nil || record.Sequence < match.Sequence {
			match = record
		}
	}

	if match == nil {
		logger.Warn(ctx, "Poll %s spent by %s without a matching close", open.Outpoint,
			spendingTxid)
		return nil
	}

	bound := *match
	bound.PollTxid = open.Outpoint.Txid
	poll := open.Outpoint
	bound.PollOutpoint = &poll

	if err := save(ctx, s.masterDB, closesSubKey, bound.Outpoint, &bound); err != nil {
		return errors.Wrap(err, "save close")
	}

	s.addClose(&bound)
	logger.Verbose(ctx, "Close %s closed poll %s", bound.Outpoint, open.Outpoint)
	return nil
}

// RemoveOutpoint deletes the outpoint from every collection. It returns true if a record was
// removed. Removing an outpoint that isn't in the store is not an error.
func (s *Store) RemoveOutpoint(ctx context.Context, outpoint pollr.Outpoint) (bool, error) {
	ctx, span := trace.StartSpan(ctx, "internal.index.RemoveOutpoint")
	defer span.End()

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.remove(ctx, outpoint)
}

// remove deletes the outpoint from every collection. The lock must be held.
func (s *Store) remove(ctx context.Context, outpoint pollr.Outpoint) (bool, error) {
	key := outpoint.String()
	removed := false

	if record, exists := s.opens[key]; exists {
		if err := remove(ctx, s.masterDB, opensSubKey, outpoint); err != nil {
			return removed, errors.Wrap(err, "remove open")
		}
		s.dropOpen(record)
		removed = true
	}

	if record, exists := s.votes[key]; exists {
		if err := remove(ctx, s.masterDB, votesSubKey, outpoint); err != nil {
			return removed, errors.Wrap(err, "remove vote")
		}
		s.dropVote(record)
		removed = true
	}

	if record, exists := s.closes[key]; exists {
		if err := remove(ctx, s.masterDB, closesSubKey, outpoint); err != nil {
			return removed, errors.Wrap(err, "remove close")
		}
		s.dropClose(record)
		removed = true
	}

	return removed, nil
}

// Vote returns the vote of voterKey on the poll, or nil.
func (s *Store) Vote(pollTxid, voterKey string) *VoteRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if record := s.findVote(pollTxid, voterKey); record != nil {
		return record.copy()
	}
	return nil
}

// OpenPoll returns the open poll created by the transaction, or nil.
func (s *Store) OpenPoll(txid string) *OpenRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var result *OpenRecord
	for key := range s.opensByTx[txid] {
		record := s.opens[key]
		if result == nil || record.Sequence < result.Sequence {
			result = record
		}
	}

	if result == nil {
		return nil
	}
	return result.copy()
}

// ClosedPoll returns the close record created by the transaction, or the one that closed the poll
// created by the transaction. Pending closes aren't returned.
func (s *Store) ClosedPoll(txid string) *CloseRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var result *CloseRecord
	for _, set := range []map[string]bool{s.closesByTx[txid], s.closesByPoll[txid]} {
		for key := range set {
			record := s.closes[key]
			if record.Pending() {
				continue
			}
			if result == nil || record.Sequence < result.Sequence {
				result = record
			}
		}
	}

	if result == nil {
		return nil
	}
	return result.copy()
}

// VotesFor returns the votes on the poll in insertion order.
func (s *Store) VotesFor(pollTxid string) []*VoteRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var result []*VoteRecord
	for key := range s.votesByPoll[pollTxid] {
		result = append(result, s.votes[key].copy())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})
	return result
}

// OpenPolls returns every open poll in insertion order.
func (s *Store) OpenPolls() []*OpenRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	result := make([]*OpenRecord, 0, len(s.opens))
	for _, record := range s.opens {
		result = append(result, record.copy())
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})
	return result
}

// ClosedPolls returns every close record bound to a poll in insertion order.
func (s *Store) ClosedPolls() []*CloseRecord {
	s.lock.RLock()
	defer s.lock.RUnlock()

	result := make([]*CloseRecord, 0, len(s.closes))
	for _, record := range s.closes {
		if !record.Pending() {
			result = append(result, record.copy())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Sequence < result[j].Sequence
	})
	return result
}

// Stats is the number of records in each collection.
type Stats struct {
	Open    int `json:"open"`
	Closed  int `json:"closed"`
	Pending int `json:"pending"`
	Votes   int `json:"votes"`
}

// Stats returns the number of records in each collection.
func (s *Store) Stats() Stats {
	s.lock.RLock()
	defer s.lock.RUnlock()

	result := Stats{
		Open:  len(s.opens),
		Votes: len(s.votes),
	}
	for _, record := range s.closes {
		if record.Pending() {
			result.Pending++
		} else {
			result.Closed++
		}
	}
	return result
}

// The functions below keep the secondary keys in step with the collections. The lock must be
// held.

func (s *Store) addOpen(record *OpenRecord) {
	key := record.Outpoint.String()
	s.opens[key] = record
	s.opensByTx.add(record.Outpoint.Txid, key)
	s.observeSequence(record.Sequence)
}

func (s *Store) dropOpen(record *OpenRecord) {
	key := record.Outpoint.String()
	delete(s.opens, key)
	s.opensByTx.remove(record.Outpoint.Txid, key)
}

func (s *Store) addVote(record *VoteRecord) {
	key := record.Outpoint.String()
	s.votes[key] = record
	s.votesByPoll.add(record.Token.PollTxid, key)
	s.voteByVoter[voterKey(record.Token.PollTxid, record.Token.VoterKey)] = key
	s.observeSequence(record.Sequence)
}

func (s *Store) dropVote(record *VoteRecord) {
	key := record.Outpoint.String()
	delete(s.votes, key)
	s.votesByPoll.remove(record.Token.PollTxid, key)

	voter := voterKey(record.Token.PollTxid, record.Token.VoterKey)
	if s.voteByVoter[voter] == key {
		delete(s.voteByVoter, voter)
	}
}

// addClose adds or replaces a close record.
func (s *Store) addClose(record *CloseRecord) {
	key := record.Outpoint.String()
	s.closes[key] = record
	s.closesByTx.add(record.Outpoint.Txid, key)
	if !record.Pending() {
		s.closesByPoll.add(record.PollTxid, key)
	}
	s.observeSequence(record.Sequence)
}

func (s *Store) dropClose(record *CloseRecord) {
	key := record.Outpoint.String()
	delete(s.closes, key)
	s.closesByTx.remove(record.Outpoint.Txid, key)
	if !record.Pending() {
		s.closesByPoll.remove(record.PollTxid, key)
	}
}

func (s *Store) findVote(pollTxid, voter string) *VoteRecord {
	key, exists := s.voteByVoter[voterKey(pollTxid, voter)]
	if !exists {
		return nil
	}
	return s.votes[key]
}

func (s *Store) contains(key string) bool {
	if _, exists := s.opens[key]; exists {
		return true
	}
	if _, exists := s.votes[key]; exists {
		return true
	}
	_, exists := s.closes[key]
	return exists
}

func (s *Store) nextSequence() uint64 {
	s.sequence++
	return s.sequence
}

func (s *Store) observeSequence(sequence uint64) {
	if sequence > s.sequence {
		s.sequence = sequence
	}
}

func voterKey(pollTxid, voter string) string {
	return pollTxid + "/" + voter
}
