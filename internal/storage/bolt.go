/**
 * BoltDB-backed stores for reference templates and verification sessions.
 *
 * This is the default driver: a single local file, no external services.
 * Records are stored as JSON. Reference listing preserves enrollment order,
 * which the matcher relies on for deterministic tie-breaking. Session update
 * guards (no percent regression, no re-opening terminal sessions, result set
 * at most once) are enforced inside the write transaction.
 */

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"

	"github.com/ncsverify/verifier-worker/internal/pipeline"
)

const (
	referenceBucketName = "references"
	sessionBucketName   = "sessions"
)

// boltReference wraps a template with the enrollment sequence number so List
// can return templates in the order they were added.
type boltReference struct {
	Seq      uint64                     `json:"seq"`
	Template pipeline.ReferenceTemplate `json:"template"`
}

// BoltStore owns the bbolt file and hands out the reference and session
// store views over it.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (or creates) the database file and ensures buckets
// exist.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(referenceBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(sessionBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// References returns the reference template store view.
func (b *BoltStore) References() *BoltReferenceStore {
	return &BoltReferenceStore{db: b.db}
}

// Sessions returns the session store view.
func (b *BoltStore) Sessions() *BoltSessionStore {
	return &BoltSessionStore{db: b.db}
}

// Close closes the database file.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// BoltReferenceStore implements pipeline.ReferenceStore.
type BoltReferenceStore struct {
	db *bbolt.DB
}

// Add enrolls a reference template. A missing ID is filled in.
func (s *BoltReferenceStore) Add(_ context.Context, ref *pipeline.ReferenceTemplate) error {
	if ref.ID == "" {
		ref.ID = uuid.New().String()
	}
	if ref.CreatedAt.IsZero() {
		ref.CreatedAt = time.Now().UTC()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(referenceBucketName))
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("allocating sequence: %w", err)
		}
		data, err := json.Marshal(boltReference{Seq: seq, Template: *ref})
		if err != nil {
			return fmt.Errorf("marshaling reference: %w", err)
		}
		return bucket.Put([]byte(ref.ID), data)
	})
}

// Get retrieves a reference template by ID.
func (s *BoltReferenceStore) Get(_ context.Context, id string) (*pipeline.ReferenceTemplate, error) {
	var ref *pipeline.ReferenceTemplate
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(referenceBucketName))
		data := bucket.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("reference %s: %w", id, pipeline.ErrNotFound)
		}
		var rec boltReference
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("unmarshaling reference: %w", err)
		}
		ref = &rec.Template
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// List returns all reference templates in enrollment order.
func (s *BoltReferenceStore) List(_ context.Context) ([]*pipeline.ReferenceTemplate, error) {
	records := make([]boltReference, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(referenceBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var rec boltReference
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshaling reference: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })
	refs := make([]*pipeline.ReferenceTemplate, len(records))
	for i := range records {
		refs[i] = &records[i].Template
	}
	return refs, nil
}

// BoltSessionStore implements pipeline.SessionStore.
type BoltSessionStore struct {
	db *bbolt.DB
}

// Create opens a new session in the queued state and returns its ID.
func (s *BoltSessionStore) Create(_ context.Context, docType string) (string, error) {
	session := pipeline.Session{
		ID:        uuid.New().String(),
		DocType:   docType,
		Stage:     pipeline.StageQueued,
		Percent:   pipeline.PercentQueued,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(&session)
		if err != nil {
			return fmt.Errorf("marshaling session: %w", err)
		}
		return tx.Bucket([]byte(sessionBucketName)).Put([]byte(session.ID), data)
	})
	if err != nil {
		return "", err
	}
	return session.ID, nil
}

// UpdateStatus advances a session's stage, percent and message as one write.
// Terminal sessions are never modified and percent never moves backwards.
func (s *BoltSessionStore) UpdateStatus(_ context.Context, id string, stage pipeline.Stage, percent int, message string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		session, err := getSession(tx, id)
		if err != nil {
			return err
		}
		if session.Terminal() {
			return fmt.Errorf("session %s is terminal (%s)", id, session.Stage)
		}
		if percent < session.Percent {
			return fmt.Errorf("session %s: percent cannot regress from %d to %d", id, session.Percent, percent)
		}
		session.Stage = stage
		session.Percent = percent
		session.Message = message
		return putSession(tx, session)
	})
}

// SetResult attaches the analysis result and moves the session to done.
func (s *BoltSessionStore) SetResult(_ context.Context, id string, result *pipeline.AnalysisResult) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		session, err := getSession(tx, id)
		if err != nil {
			return err
		}
		if session.Terminal() {
			return fmt.Errorf("session %s is terminal (%s)", id, session.Stage)
		}
		if session.Result != nil {
			return fmt.Errorf("session %s already has a result", id)
		}
		session.Stage = pipeline.StageDone
		session.Percent = pipeline.PercentTerminal
		session.Message = ""
		session.Result = result
		return putSession(tx, session)
	})
}

// Get retrieves a session by ID.
func (s *BoltSessionStore) Get(_ context.Context, id string) (*pipeline.Session, error) {
	var session *pipeline.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		found, err := getSession(tx, id)
		if err != nil {
			return err
		}
		session = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func getSession(tx *bbolt.Tx, id string) (*pipeline.Session, error) {
	bucket := tx.Bucket([]byte(sessionBucketName))
	data := bucket.Get([]byte(id))
	if data == nil {
		return nil, fmt.Errorf("session %s: %w", id, pipeline.ErrNotFound)
	}
	var session pipeline.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

func putSession(tx *bbolt.Tx, session *pipeline.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return tx.Bucket([]byte(sessionBucketName)).Put([]byte(session.ID), data)
}
