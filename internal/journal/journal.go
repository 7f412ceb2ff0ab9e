// Package journal keeps a local history of the changes commands made on the
// management system.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

const actionsBucket = "actions"

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Entry is one recorded action. Entries of the same command invocation
// share a RunID.
type Entry struct {
	ID      string    `json:"id"`
	RunID   string    `json:"run_id"`
	Time    time.Time `json:"time"`
	Action  string    `json:"action"`
	Target  string    `json:"target"`
	Outcome string    `json:"outcome"`
	Message string    `json:"message,omitempty"`
}

// Journal appends entries to a bbolt file. A nil *Journal records nothing,
// which is how a disabled journal is represented.
type Journal struct {
	db    *bolt.DB
	runID string
	now   func() time.Time
}

// Open opens or creates the journal at path and starts a new run.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(actionsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal %s: %w", path, err)
	}
	return &Journal{db: db, runID: uuid.NewString(), now: time.Now}, nil
}

func (j *Journal) RunID() string {
	if j == nil {
		return ""
	}
	return j.runID
}

// Record stores the outcome of action on target; a nil cause is a success.
func (j *Journal) Record(action, target string, cause error) error {
	if j == nil {
		return nil
	}
	e := Entry{
		ID:      uuid.NewString(),
		RunID:   j.runID,
		Time:    j.now().UTC(),
		Action:  action,
		Target:  target,
		Outcome: OutcomeOK,
	}
	if cause != nil {
		e.Outcome = OutcomeFailed
		e.Message = cause.Error()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(actionsBucket))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(sequenceKey(seq), data)
	})
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns every entry.
func (j *Journal) List(limit int) ([]Entry, error) {
	entries := []Entry{}
	if j == nil {
		return entries, nil
	}
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(actionsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("journal entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}

func sequenceKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
