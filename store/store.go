package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// ErrExecutionNotFound is returned when an execution is not in the history.
	ErrExecutionNotFound = errors.New("execution not found")
)

var (
	executionsBucket   = []byte("executions")
	transactionsBucket = []byte("transactions")
)

// ExecutionStatus is the lifecycle state of one job execution.
type ExecutionStatus string

const (
	StatusStarting  ExecutionStatus = "STARTING"
	StatusRunning   ExecutionStatus = "RUNNING"
	StatusCompleted ExecutionStatus = "COMPLETED"
	StatusFailed    ExecutionStatus = "FAILED"
	StatusStopped   ExecutionStatus = "STOPPED"
	StatusAbandoned ExecutionStatus = "ABANDONED"
	StatusUnknown   ExecutionStatus = "UNKNOWN"
)

func (s ExecutionStatus) String() string { return string(s) }

// IsTerminal reports whether no further transitions are expected.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusStopped, StatusAbandoned:
		return true
	default:
		return false
	}
}

// ParseExecutionStatus converts a string to an ExecutionStatus.
// Unrecognized values map to StatusUnknown.
func ParseExecutionStatus(s string) ExecutionStatus {
	switch ExecutionStatus(s) {
	case StatusStarting, StatusRunning, StatusCompleted, StatusFailed, StatusStopped, StatusAbandoned:
		return ExecutionStatus(s)
	default:
		return StatusUnknown
	}
}

// ExecutionRecord is one historical execution of a transfer job for a path.
// EndTime is only meaningful once Status is COMPLETED.
type ExecutionRecord struct {
	ID                int64           `json:"id"`
	JobName           string          `json:"job_name"`
	ClientUsername    string          `json:"client_username"`
	Path              string          `json:"path"`
	TransactionID     int64           `json:"transaction_id"`
	Status            ExecutionStatus `json:"status"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time,omitzero"`
	FilesTransferred  int64           `json:"files_transferred"`
	BytesTransferred  int64           `json:"bytes_transferred"`
	PropertiesDropped int64           `json:"properties_dropped"`
	ExitMessage       string          `json:"exit_message,omitempty"`
}

// Store defines the job history used to resolve incremental transfers.
type Store interface {
	CreateExecution(rec *ExecutionRecord) error
	SaveExecution(rec *ExecutionRecord) error
	GetExecution(id int64) (*ExecutionRecord, error)
	ListExecutions(clientUsername string) ([]ExecutionRecord, error)
	NextTransactionID() (int64, error)
	Close() error
}

// BoltStore is a Store implementation backed by bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens or creates the history database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{executionsBucket, transactionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// CreateExecution assigns rec a new id from the bucket sequence and stores it.
func (s *BoltStore) CreateExecution(rec *ExecutionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(executionsBucket)
		seq, err := b.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate execution id: %w", err)
		}
		rec.ID = int64(seq)
		return putExecution(b, rec)
	})
}

// SaveExecution overwrites an existing execution.
func (s *BoltStore) SaveExecution(rec *ExecutionRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(executionsBucket)
		if b.Get(idKey(rec.ID)) == nil {
			return ErrExecutionNotFound
		}
		return putExecution(b, rec)
	})
}

// GetExecution retrieves one execution by id.
func (s *BoltStore) GetExecution(id int64) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(executionsBucket).Get(idKey(id))
		if data == nil {
			return ErrExecutionNotFound
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return fmt.Errorf("failed to unmarshal execution: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListExecutions returns the full history of a client in id order.
// No path filtering is applied.
func (s *BoltStore) ListExecutions(clientUsername string) ([]ExecutionRecord, error) {
	var out []ExecutionRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(executionsBucket).ForEach(func(_, v []byte) error {
			var rec ExecutionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal execution: %w", err)
			}
			if rec.ClientUsername == clientUsername {
				out = append(out, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// NextTransactionID hands out monotonically increasing transaction ids.
func (s *BoltStore) NextTransactionID() (int64, error) {
	var id uint64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		id, err = tx.Bucket(transactionsBucket).NextSequence()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to allocate transaction id: %w", err)
	}
	return int64(id), nil
}

// Close closes the underlying store.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putExecution(b *bbolt.Bucket, rec *ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	if err := b.Put(idKey(rec.ID), data); err != nil {
		return fmt.Errorf("failed to put execution: %w", err)
	}
	return nil
}

// idKey encodes ids big-endian so ForEach walks them in creation order.
func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}
