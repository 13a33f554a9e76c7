package overlay

import (
	"context"
	"fmt"

	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
)

const (
	storageKey        = "overlay"
	storageSubKey     = "outputs"
	submissionsSubKey = "submissions"
)

// Output is an output admitted to a topic.
type Output struct {
	Topic         string         `json:"topic"`
	Outpoint      pollr.Outpoint `json:"outpoint"`
	LockingScript []byte         `json:"lockingScript"`
	Satoshis      uint64         `json:"satoshis"`

	// Spent is set when a later transaction spent the output and the topic retained it.
	Spent bool `json:"spent"`
}

func saveOutput(ctx context.Context, dbConn *db.DB, output *Output) error {
	return dbConn.PutJSON(ctx, buildStoragePath(output.Topic, output.Outpoint), output)
}

// fetchOutput returns db.ErrNotFound when the outpoint isn't admitted to the topic.
func fetchOutput(ctx context.Context, dbConn *db.DB, topic string,
	outpoint pollr.Outpoint) (*Output, error) {

	result := &Output{}
	if err := dbConn.FetchJSON(ctx, buildStoragePath(topic, outpoint), result); err != nil {
		return nil, err
	}

	return result, nil
}

func removeOutput(ctx context.Context, dbConn *db.DB, topic string, outpoint pollr.Outpoint) error {
	if err := dbConn.Remove(ctx, buildStoragePath(topic, outpoint)); err != nil &&
		errors.Cause(err) != db.ErrNotFound {
		return err
	}

	return nil
}

// Submission is what a transaction did to a topic. Evicting the transaction uses it to put back
// the outputs the transaction spent.
type Submission struct {
	Txid         string                 `json:"txid"`
	Topic        string                 `json:"topic"`
	Instructions AdmittanceInstructions `json:"instructions"`

	// Spent are the admitted outputs the transaction spent and the topic didn't retain.
	Spent []*Output `json:"spent,omitempty"`

	// Retained are the admitted outputs the transaction spent and the topic retained.
	Retained []pollr.Outpoint `json:"retained,omitempty"`
}

func saveSubmission(ctx context.Context, dbConn *db.DB, submission *Submission) error {
	return dbConn.PutJSON(ctx, buildSubmissionPath(submission.Topic, submission.Txid), submission)
}

// fetchSubmission returns db.ErrNotFound when the transaction wasn't submitted to the topic.
func fetchSubmission(ctx context.Context, dbConn *db.DB, topic,
	txid string) (*Submission, error) {

	result := &Submission{}
	if err := dbConn.FetchJSON(ctx, buildSubmissionPath(topic, txid), result); err != nil {
		return nil, err
	}

	return result, nil
}

func removeSubmission(ctx context.Context, dbConn *db.DB, topic, txid string) error {
	if err := dbConn.Remove(ctx, buildSubmissionPath(topic, txid)); err != nil &&
		errors.Cause(err) != db.ErrNotFound {
		return err
	}

	return nil
}

// listOutputKeys returns the storage keys of every output admitted to the topic.
func listOutputKeys(ctx context.Context, dbConn *db.DB, topic string) ([]string, error) {
	return dbConn.List(ctx, fmt.Sprintf("%s/%s/%s", storageKey, storageSubKey, topic))
}

// Returns the storage path prefix for a given identifier.
func buildStoragePath(topic string, outpoint pollr.Outpoint) string {
	return fmt.Sprintf("%s/%s/%s/%s", storageKey, storageSubKey, topic, outpoint)
}

func buildSubmissionPath(topic, txid string) string {
	return fmt.Sprintf("%s/%s/%s/%s", storageKey, submissionsSubKey, topic, txid)
}
