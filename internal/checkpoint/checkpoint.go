package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("checkpoints")

// Checkpoint is the durable resume document for one long-running subsystem.
// LastID is the natural key of the last fully processed record; Done holds
// processed ids for subsystems that tolerate out-of-order work.
type Checkpoint struct {
	Subsystem string         `json:"subsystem"`
	LastID    string         `json:"last_id"`
	Tier      int            `json:"tier,omitempty"`
	Counters  map[string]int `json:"counters,omitempty"`
	Done      []string       `json:"done,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewCheckpoint creates an empty checkpoint for a subsystem.
func NewCheckpoint(subsystem string) *Checkpoint {
	return &Checkpoint{
		Subsystem: subsystem,
		Counters:  make(map[string]int),
	}
}

// MarkDone records an id as processed.
func (c *Checkpoint) MarkDone(id string) {
	c.LastID = id
	c.Done = append(c.Done, id)
}

// DoneSet returns processed ids as a lookup set.
func (c *Checkpoint) DoneSet() map[string]bool {
	set := make(map[string]bool, len(c.Done))
	for _, id := range c.Done {
		set[id] = true
	}
	return set
}

// Store persists checkpoints in a bbolt database under CHECKPOINT_DIR and
// mirrors each save to <dir>/<subsystem>.json for operators.
type Store struct {
	db  *bolt.DB
	dir string
}

// Open opens (or creates) the checkpoint database.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory %s: %w", dir, err)
	}
	db, err := bolt.Open(filepath.Join(dir, "checkpoints.db"), 0o644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}
	return &Store{db: db, dir: dir}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save writes the checkpoint under its subsystem key and exports the JSON
// mirror. UpdatedAt is stamped here so saves are always monotonic.
func (s *Store) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s: %w", cp.Subsystem, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(cp.Subsystem), data)
	})
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", cp.Subsystem, err)
	}
	// Mirror for operators; best effort.
	_ = os.WriteFile(filepath.Join(s.dir, cp.Subsystem+".json"), data, 0o644)
	return nil
}

// Load returns the checkpoint for a subsystem, or a fresh one if none was
// saved yet.
func (s *Store) Load(subsystem string) (*Checkpoint, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get([]byte(subsystem)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", subsystem, err)
	}
	if data == nil {
		return NewCheckpoint(subsystem), nil
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", subsystem, err)
	}
	if cp.Counters == nil {
		cp.Counters = make(map[string]int)
	}
	return &cp, nil
}

// Clear removes a subsystem's checkpoint, e.g. after a fully completed run.
func (s *Store) Clear(subsystem string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(subsystem))
	})
	if err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", subsystem, err)
	}
	_ = os.Remove(filepath.Join(s.dir, subsystem+".json"))
	return nil
}

// All returns every stored checkpoint, for the status command.
func (s *Store) All() ([]*Checkpoint, error) {
	var cps []*Checkpoint
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(_, v []byte) error {
			var cp Checkpoint
			if err := json.Unmarshal(v, &cp); err != nil {
				return err
			}
			cps = append(cps, &cp)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	return cps, nil
}
