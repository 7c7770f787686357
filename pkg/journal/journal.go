package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/state"
)

var (
	// Bucket names
	bucketEvents = []byte("events")
	bucketStatus = []byte("status")
)

// Journal is a bbolt-backed record of monitoring events and last-known
// target status. The monitoring core runs fine without one; the journal
// exists for the history command and the events API.
type Journal struct {
	db *bolt.DB
}

// Open opens (or creates) the journal database under dataDir
func Open(dataDir string) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "netguard.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEvents, bucketStatus} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

// Close closes the database
func (j *Journal) Close() error {
	return j.db.Close()
}

// eventKey orders events chronologically; the event ID breaks ties
func eventKey(e *events.Event) []byte {
	return []byte(e.Timestamp.UTC().Format(time.RFC3339Nano) + "/" + e.ID)
}

// Append adds an event to the journal
func (j *Journal) Append(e *events.Event) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(eventKey(e), data)
	})
}

// Recent returns up to n events, newest first
func (j *Journal) Recent(n int) ([]*events.Event, error) {
	var out []*events.Event
	err := j.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var e events.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

// StartRetention prunes events older than retention every interval until
// the returned stop function is called. Stop waits for the loop to end.
func (j *Journal) StartRetention(interval, retention time.Duration) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				// Prune failure is not fatal; the next tick retries
				_, _ = j.Prune(time.Now().Add(-retention))
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped
		})
	}
}

// Prune deletes events older than the cutoff and returns how many went
func (j *Journal) Prune(olderThan time.Time) (int, error) {
	cutoff := []byte(olderThan.UTC().Format(time.RFC3339Nano))
	pruned := 0
	err := j.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, _ := c.First(); k != nil && string(k) < string(cutoff); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			pruned++
		}
		return nil
	})
	return pruned, err
}

// PutStatus stores the last-known snapshot for a target
func (j *Journal) PutStatus(s state.Snapshot) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStatus)
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		return b.Put([]byte(s.Target), data)
	})
}

// Statuses returns the last-known snapshot of every target
func (j *Journal) Statuses() ([]state.Snapshot, error) {
	var out []state.Snapshot
	err := j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketStatus).ForEach(func(k, v []byte) error {
			var s state.Snapshot
			if err := json.Unmarshal(v, &s); err != nil {
				return err
			}
			out = append(out, s)
			return nil
		})
	})
	return out, err
}
