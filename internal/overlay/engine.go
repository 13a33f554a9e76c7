package overlay

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strings"

	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/metrics"
	"github.com/tokenized/pollr/internal/platform/node"
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"github.com/tokenized/pkg/wire"
	"go.opencensus.io/trace"
)

// Engine routes submitted transactions to topic managers and keeps lookup services in sync with
// the admitted outputs.
type Engine struct {
	masterDB *db.DB
	metrics  *metrics.Metrics
	topics   map[string]TopicManager
	lookups  map[string]LookupService

	// txLocks serializes concurrent submissions of the same transaction.
	txLocks *node.MapLock
}

// NewEngine returns an engine with the topic managers and lookup services keyed by name. m may be
// nil.
func NewEngine(masterDB *db.DB, topics map[string]TopicManager,
	lookups map[string]LookupService, m *metrics.Metrics) *Engine {

	return &Engine{
		masterDB: masterDB,
		metrics:  m,
		topics:   topics,
		lookups:  lookups,
		txLocks:  node.NewMapLock(),
	}
}

// Submit runs the raw transaction through the topic managers of the topics. Admitted outputs are
// stored and announced to every lookup service before the outputs the transaction spends are
// marked spent, so a lookup service sees the replacement before the removal.
//
// Submitting a transaction again returns the instructions of the first submission to each topic.
func (e *Engine) Submit(ctx context.Context, rawTx []byte, topics []string) (Steak, error) {
	ctx, span := trace.StartSpan(ctx, "internal.overlay.Submit")
	defer span.End()

	for _, topic := range topics {
		if _, exists := e.topics[topic]; !exists {
			return nil, errors.Wrap(ErrUnknownTopic, topic)
		}
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, errors.Wrap(ErrMalformedTransaction, err.Error())
	}

	txid := tx.TxHash().String()
	ctx = node.ContextWithLogTrace(ctx, txid)

	unlock := e.txLocks.Lock(txid)
	defer unlock()

	result := make(Steak)
	for _, topic := range topics {
		e.metrics.Submitted(topic)

		instructions, err := e.submitToTopic(ctx, tx, txid, rawTx, topic)
		if err != nil {
			return nil, errors.Wrapf(err, "topic %s", topic)
		}

		result[topic] = instructions
	}

	return result, nil
}

func (e *Engine) submitToTopic(ctx context.Context, tx *wire.MsgTx, txid string, rawTx []byte,
	topic string) (AdmittanceInstructions, error) {

	previous, err := fetchSubmission(ctx, e.masterDB, topic, txid)
	if err == nil {
		node.LogVerbose(ctx, "Already submitted to %s", topic)
		return previous.Instructions, nil
	}
	if errors.Cause(err) != db.ErrNotFound {
		return AdmittanceInstructions{}, errors.Wrap(err, "fetch submission")
	}

	var previousCoins []uint32
	var spent []*Output
	for index, input := range tx.TxIn {
		outpoint := pollr.Outpoint{
			Txid:        input.PreviousOutPoint.Hash.String(),
			OutputIndex: input.PreviousOutPoint.Index,
		}

		output, err := fetchOutput(ctx, e.masterDB, topic, outpoint)
		if err != nil {
			if errors.Cause(err) == db.ErrNotFound {
				continue
			}
			return AdmittanceInstructions{}, errors.Wrapf(err, "fetch %s", outpoint)
		}

		previousCoins = append(previousCoins, uint32(index))
		spent = append(spent, output)
	}

	instructions, err := e.topics[topic].IdentifyAdmissibleOutputs(ctx, rawTx, previousCoins)
	if err != nil {
		return AdmittanceInstructions{}, errors.Wrap(err, "identify admissible outputs")
	}

	for _, index := range instructions.OutputsToAdmit {
		if int(index) >= len(tx.TxOut) {
			node.LogWarn(ctx, "Topic %s admitted missing output %d", topic, index)
			continue
		}

		output := &Output{
			Topic: topic,
			Outpoint: pollr.Outpoint{
				Txid:        txid,
				OutputIndex: index,
			},
			LockingScript: tx.TxOut[index].PkScript,
			Satoshis:      uint64(tx.TxOut[index].Value),
		}

		if err := saveOutput(ctx, e.masterDB, output); err != nil {
			return AdmittanceInstructions{}, errors.Wrapf(err, "save %s", output.Outpoint)
		}

		for _, name := range e.lookupNames() {
			if err := e.lookups[name].OutputAdmittedByTopic(ctx, topic, output.Outpoint,
				output.LockingScript); err != nil {
				node.LogWarn(ctx, "Lookup service %s failed to add %s : %s", name,
					output.Outpoint, err)
			}
		}
	}

	retain := make(map[uint32]bool)
	for _, coin := range instructions.CoinsToRetain {
		retain[coin] = true
	}

	submission := &Submission{
		Txid:         txid,
		Topic:        topic,
		Instructions: instructions,
	}

	for i, output := range spent {
		if retain[previousCoins[i]] {
			output.Spent = true
			if err := saveOutput(ctx, e.masterDB, output); err != nil {
				return AdmittanceInstructions{}, errors.Wrapf(err, "save spent %s", output.Outpoint)
			}
			submission.Retained = append(submission.Retained, output.Outpoint)
			continue
		}

		if err := removeOutput(ctx, e.masterDB, topic, output.Outpoint); err != nil {
			return AdmittanceInstructions{}, errors.Wrapf(err, "remove %s", output.Outpoint)
		}
		submission.Spent = append(submission.Spent, output)

		for _, name := range e.lookupNames() {
			if err := e.lookups[name].OutputSpent(ctx, topic, output.Outpoint,
				txid); err != nil {
				node.LogWarn(ctx, "Lookup service %s failed to spend %s : %s", name,
					output.Outpoint, err)
			}
		}
	}

	if len(instructions.OutputsToAdmit) > 0 || len(spent) > 0 {
		if err := saveSubmission(ctx, e.masterDB, submission); err != nil {
			return AdmittanceInstructions{}, errors.Wrap(err, "save submission")
		}
	}

	logger.Info(ctx, "Submitted to %s : %d admitted, %d spent", topic,
		len(instructions.OutputsToAdmit), len(spent))
	return instructions, nil
}

// Evict removes every output of the transaction from every topic and tells the lookup services.
// The outputs the transaction spent are put back and announced to the lookup services again,
// unless the transaction that created them was evicted too. It returns the evicted outpoints.
func (e *Engine) Evict(ctx context.Context, txid string) ([]pollr.Outpoint, error) {
	ctx, span := trace.StartSpan(ctx, "internal.overlay.Evict")
	defer span.End()

	ctx = node.ContextWithLogTrace(ctx, txid)

	unlock := e.txLocks.Lock(txid)
	defer unlock()

	evicted := make(map[pollr.Outpoint]bool)
	var result []pollr.Outpoint
	for _, topic := range e.topicNames() {
		keys, err := listOutputKeys(ctx, e.masterDB, topic)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", topic)
		}

		for _, key := range keys {
			if !strings.HasPrefix(path.Base(key), txid+"_") {
				continue
			}

			output := &Output{}
			if err := e.masterDB.FetchJSON(ctx, key, output); err != nil {
				return nil, errors.Wrapf(err, "fetch %s", key)
			}

			if err := removeOutput(ctx, e.masterDB, topic, output.Outpoint); err != nil {
				return nil, errors.Wrapf(err, "remove %s", output.Outpoint)
			}

			if !evicted[output.Outpoint] {
				evicted[output.Outpoint] = true
				result = append(result, output.Outpoint)
			}
		}
	}

	for _, outpoint := range result {
		for _, name := range e.lookupNames() {
			if err := e.lookups[name].OutputEvicted(ctx, outpoint); err != nil {
				node.LogWarn(ctx, "Lookup service %s failed to evict %s : %s", name, outpoint,
					err)
			}
		}
	}

	restored := 0
	for _, topic := range e.topicNames() {
		count, err := e.restoreSpent(ctx, topic, txid)
		if err != nil {
			return nil, errors.Wrapf(err, "restore %s", topic)
		}
		restored += count
	}

	logger.Info(ctx, "Evicted %d outputs, restored %d", len(result), restored)
	return result, nil
}

// restoreSpent undoes the spends recorded by the transaction's submission to the topic and
// deletes the submission. It returns the number of outputs put back.
func (e *Engine) restoreSpent(ctx context.Context, topic, txid string) (int, error) {
	submission, err := fetchSubmission(ctx, e.masterDB, topic, txid)
	if err != nil {
		if errors.Cause(err) == db.ErrNotFound {
			return 0, nil
		}
		return 0, errors.Wrap(err, "fetch submission")
	}

	restored := 0
	for _, output := range submission.Spent {
		if _, err := fetchSubmission(ctx, e.masterDB, topic, output.Outpoint.Txid); err != nil {
			if errors.Cause(err) == db.ErrNotFound {
				node.LogVerbose(ctx, "Not restoring %s : its transaction is gone", output.Outpoint)
				continue
			}
			return restored, errors.Wrapf(err, "fetch submission %s", output.Outpoint.Txid)
		}

		output.Spent = false
		if err := saveOutput(ctx, e.masterDB, output); err != nil {
			return restored, errors.Wrapf(err, "save %s", output.Outpoint)
		}
		restored++

		for _, name := range e.lookupNames() {
			if err := e.lookups[name].OutputAdmittedByTopic(ctx, topic, output.Outpoint,
				output.LockingScript); err != nil {
				node.LogWarn(ctx, "Lookup service %s failed to restore %s : %s", name,
					output.Outpoint, err)
			}
		}
	}

	for _, outpoint := range submission.Retained {
		output, err := fetchOutput(ctx, e.masterDB, topic, outpoint)
		if err != nil {
			if errors.Cause(err) == db.ErrNotFound {
				continue
			}
			return restored, errors.Wrapf(err, "fetch %s", outpoint)
		}

		output.Spent = false
		if err := saveOutput(ctx, e.masterDB, output); err != nil {
			return restored, errors.Wrapf(err, "save %s", outpoint)
		}
	}

	if err := removeSubmission(ctx, e.masterDB, topic, txid); err != nil {
		return restored, errors.Wrap(err, "remove submission")
	}

	return restored, nil
}

// Lookup sends the question to the lookup service it names.
func (e *Engine) Lookup(ctx context.Context, question *pollr.Question) ([]pollr.Outpoint, error) {
	ctx, span := trace.StartSpan(ctx, "internal.overlay.Lookup")
	defer span.End()

	if question == nil {
		return nil, errors.Wrap(pollr.ErrInvalidQuery, "missing question")
	}

	service, exists := e.lookups[question.Service]
	if !exists {
		return nil, errors.Wrap(pollr.ErrUnknownService, question.Service)
	}

	return service.Lookup(ctx, question)
}

// Output returns the output admitted to the topic at outpoint.
func (e *Engine) Output(ctx context.Context, topic string,
	outpoint pollr.Outpoint) (*Output, error) {

	return fetchOutput(ctx, e.masterDB, topic, outpoint)
}

// ListTopics returns the meta data of every topic manager.
func (e *Engine) ListTopics() map[string]MetaData {
	result := make(map[string]MetaData, len(e.topics))
	for name, manager := range e.topics {
		result[name] = manager.MetaData()
	}
	return result
}

// ListLookupServices returns the meta data of every lookup service.
func (e *Engine) ListLookupServices() map[string]MetaData {
	result := make(map[string]MetaData, len(e.lookups))
	for name, service := range e.lookups {
		result[name] = service.MetaData()
	}
	return result
}

// Documentation returns the documentation of the topic manager or lookup service with the name.
func (e *Engine) Documentation(name string) (string, bool) {
	if manager, exists := e.topics[name]; exists {
		return manager.Documentation(), true
	}
	if service, exists := e.lookups[name]; exists {
		return service.Documentation(), true
	}
	return "", false
}

func (e *Engine) topicNames() []string {
	result := make([]string, 0, len(e.topics))
	for name := range e.topics {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

func (e *Engine) lookupNames() []string {
	result := make([]string, 0, len(e.lookups))
	for name := range e.lookups {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
