package index

import (
	"context"
	"fmt"

	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
)

const (
	storageKey   = "pollr"
	opensSubKey  = "opens"
	votesSubKey  = "votes"
	closesSubKey = "closes"
)

// save writes a record to storage.
func save(ctx context.Context, dbConn *db.DB, subKey string, outpoint pollr.Outpoint,
	record interface{}) error {
	return dbConn.PutJSON(ctx, buildStoragePath(subKey, outpoint), record)
}

// remove deletes a record from storage. A record that isn't there is already removed.
func remove(ctx context.Context, dbConn *db.DB, subKey string, outpoint pollr.Outpoint) error {
	if err := dbConn.Remove(ctx, buildStoragePath(subKey, outpoint)); err != nil &&
		errors.Cause(err) != db.ErrNotFound {
		return err
	}

	return nil
}

func listOpens(ctx context.Context, dbConn *db.DB) ([]*OpenRecord, error) {
	var result []*OpenRecord
	err := dbConn.SearchJSON(ctx, buildCollectionPath(opensSubKey),
		func(unmarshal func(interface{}) error) error {
			record := &OpenRecord{}
			if err := unmarshal(record); err != nil {
				return errors.Wrap(err, "unmarshal open")
			}
			if record.Token == nil {
				return fmt.Errorf("Open record %s has no token", record.Outpoint)
			}
			result = append(result, record)
			return nil
		})

	return result, err
}

func listVotes(ctx context.Context, dbConn *db.DB) ([]*VoteRecord, error) {
	var result []*VoteRecord
	err := dbConn.SearchJSON(ctx, buildCollectionPath(votesSubKey),
		func(unmarshal func(interface{}) error) error {
			record := &VoteRecord{}
			if err := unmarshal(record); err != nil {
				return errors.Wrap(err, "unmarshal vote")
			}
			if record.Token == nil {
				return fmt.Errorf("Vote record %s has no token", record.Outpoint)
			}
			result = append(result, record)
			return nil
		})

	return result, err
}

func listCloses(ctx context.Context, dbConn *db.DB) ([]*CloseRecord, error) {
	var result []*CloseRecord
	err := dbConn.SearchJSON(ctx, buildCollectionPath(closesSubKey),
		func(unmarshal func(interface{}) error) error {
			record := &CloseRecord{}
			if err := unmarshal(record); err != nil {
				return errors.Wrap(err, "unmarshal close")
			}
			if record.Token == nil {
				return fmt.Errorf("Close record %s has no token", record.Outpoint)
			}
			result = append(result, record)
			return nil
		})

	return result, err
}

func buildCollectionPath(subKey string) string {
	return fmt.Sprintf("%s/%s", storageKey, subKey)
}

// Returns the storage path prefix for a given identifier.
func buildStoragePath(subKey string, outpoint pollr.Outpoint) string {
	return fmt.Sprintf("%s/%s/%s", storageKey, subKey, outpoint)
}
