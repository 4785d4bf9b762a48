// Package notify holds the reminder delivery channel. Reminders land in a
// local bbolt outbox that downstream senders drain and acknowledge.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	remindersBucket = "reminders"
	// lockTimeout bounds the wait for another process's file lock. Holders
	// keep the file open only for one short write.
	lockTimeout = 5 * time.Second
)

// ErrReminderNotFound is returned by Ack for unknown keys.
var ErrReminderNotFound = errors.New("reminder not found")

// Reminder is one missing-receipt notice addressed to a student and their coordinator.
type Reminder struct {
	Key          string     `json:"key"`
	InternshipID string     `json:"internship_id"`
	StudentID    string     `json:"student_id"`
	StudentName  string     `json:"student_name"`
	TeacherID    string     `json:"teacher_id"`
	TeacherName  string     `json:"teacher_name"`
	Period       string     `json:"period"`
	Tier         string     `json:"tier"`
	Day          string     `json:"day"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"created_at"`
	AckedAt      *time.Time `json:"acked_at,omitempty"`
}

// ReminderKey identifies a reminder so re-running a scan on the same day is a no-op.
func ReminderKey(internshipID, period, tier, day string) string {
	return strings.Join([]string{internshipID, period, tier, day}, "|")
}

// Outbox is a bbolt-backed reminder store.
type Outbox struct {
	db *bbolt.DB
}

// OpenOutbox opens (or creates) the outbox file at path and holds its lock
// until Close. Long-running processes should use SharedOutbox instead.
func OpenOutbox(path string) (*Outbox, error) {
	return openOutbox(path, lockTimeout)
}

func openOutbox(path string, timeout time.Duration) (*Outbox, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("opening outbox: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(remindersBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating outbox bucket: %w", err)
	}
	return &Outbox{db: db}, nil
}

// Deliver stores r unless a reminder with the same key already exists.
// It reports whether a new entry was written.
func (o *Outbox) Deliver(r Reminder) (bool, error) {
	if r.Key == "" {
		r.Key = ReminderKey(r.InternshipID, r.Period, r.Tier, r.Day)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	created := false
	err := o.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(remindersBucket))
		if bucket.Get([]byte(r.Key)) != nil {
			return nil
		}
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling reminder: %w", err)
		}
		created = true
		return bucket.Put([]byte(r.Key), data)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// Pending returns unacknowledged reminders in key order, at most limit (0 = all).
func (o *Outbox) Pending(limit int) ([]Reminder, error) {
	out := make([]Reminder, 0)
	err := o.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(remindersBucket)).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r Reminder
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshaling reminder %s: %w", k, err)
			}
			if r.AckedAt != nil {
				continue
			}
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Ack marks a reminder as sent.
func (o *Outbox) Ack(key string, at time.Time) error {
	return o.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(remindersBucket))
		data := bucket.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, ErrReminderNotFound)
		}
		var r Reminder
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("unmarshaling reminder: %w", err)
		}
		at = at.UTC()
		r.AckedAt = &at
		updated, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshaling reminder: %w", err)
		}
		return bucket.Put([]byte(key), updated)
	})
}

// Close closes the underlying database.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// SharedOutbox writes to the outbox file without holding it between calls,
// leaving it free for other processes to drain.
type SharedOutbox struct {
	path    string
	timeout time.Duration
}

// NewSharedOutbox returns a SharedOutbox for the file at path.
func NewSharedOutbox(path string) *SharedOutbox {
	return &SharedOutbox{path: path, timeout: lockTimeout}
}

// Init creates the file and bucket so configuration errors surface at startup.
func (s *SharedOutbox) Init() error {
	return s.with(func(*Outbox) error { return nil })
}

// Deliver stores r unless a reminder with the same key already exists.
func (s *SharedOutbox) Deliver(r Reminder) (bool, error) {
	var created bool
	err := s.with(func(o *Outbox) error {
		var err error
		created, err = o.Deliver(r)
		return err
	})
	return created, err
}

// Pending returns unacknowledged reminders, at most limit (0 = all).
func (s *SharedOutbox) Pending(limit int) ([]Reminder, error) {
	var out []Reminder
	err := s.with(func(o *Outbox) error {
		var err error
		out, err = o.Pending(limit)
		return err
	})
	return out, err
}

func (s *SharedOutbox) with(fn func(*Outbox) error) error {
	o, err := openOutbox(s.path, s.timeout)
	if err != nil {
		return err
	}
	if err := fn(o); err != nil {
		_ = o.Close()
		return err
	}
	return o.Close()
}
