// Package inbox stores operator notifications and the per-record activity
// journal in an embedded badger database.
package inbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Message is a notification addressed to one operator
type Message struct {
	ID         string    `json:"id"`
	Recipient  string    `json:"recipient"`
	Group      string    `json:"group,omitempty"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`
}

// Entry is one line of a record's activity journal
type Entry struct {
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OperatorID string    `json:"operator_id,omitempty"`
	Text       string    `json:"text"`
	At         time.Time `json:"at"`
}

// Inbox wraps the badger database holding messages and journal entries
type Inbox struct {
	db     *badger.DB
	logger cmtlog.Logger
	now    func() time.Time
	mu     sync.Mutex
	seq    int64
}

// Open opens (or creates) the inbox at dir. An empty dir keeps everything in memory.
func Open(dir string, logger cmtlog.Logger) (*Inbox, error) {
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{logger.With("module", "badger")})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening inbox: %w", err)
	}
	return &Inbox{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (ib *Inbox) Close() error {
	return ib.db.Close()
}

// stamp returns a sortable key fragment. The sequence breaks ties within one nanosecond.
func (ib *Inbox) stamp(t time.Time) string {
	ib.mu.Lock()
	ib.seq++
	seq := ib.seq
	ib.mu.Unlock()
	return fmt.Sprintf("%020d:%010d", t.UnixNano(), seq)
}

func messageKey(recipient, stamp, id string) []byte {
	return []byte(fmt.Sprintf("msg:%s:%s:%s", recipient, stamp, id))
}

func messagePrefix(recipient string) []byte {
	return []byte(fmt.Sprintf("msg:%s:", recipient))
}

func indexKey(recipient, id string) []byte {
	return []byte(fmt.Sprintf("idx:%s:%s", recipient, id))
}

func unreadKey(recipient string) []byte {
	return []byte("unread:" + recipient)
}

func journalPrefix(entityType, entityID string) []byte {
	return []byte(fmt.Sprintf("log:%s:%s:", entityType, entityID))
}

// Deliver stores messages in the inboxes of their recipients, all in one badger transaction
func (ib *Inbox) Deliver(messages ...Message) error {
	if len(messages) == 0 {
		return nil
	}
	return ib.db.Update(func(txn *badger.Txn) error {
		for _, m := range messages {
			if m.Recipient == "" {
				return errors.New("message without recipient")
			}
			if m.ID == "" {
				m.ID = uuid.NewString()
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = ib.now()
			}
			raw, err := json.Marshal(m)
			if err != nil {
				return err
			}
			key := messageKey(m.Recipient, ib.stamp(m.CreatedAt), m.ID)
			if err := txn.Set(key, raw); err != nil {
				return err
			}
			if err := txn.Set(indexKey(m.Recipient, m.ID), key); err != nil {
				return err
			}
			if err := addUnread(txn, m.Recipient, 1); err != nil {
				return err
			}
		}
		return nil
	})
}

func addUnread(txn *badger.Txn, recipient string, delta int64) error {
	current := int64(0)
	item, err := txn.Get(unreadKey(recipient))
	if err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if err == nil {
		err = item.Value(func(val []byte) error {
			current = bytesToInt64(val)
			return nil
		})
		if err != nil {
			return err
		}
	}
	next := current + delta
	if next < 0 {
		next = 0
	}
	return txn.Set(unreadKey(recipient), int64ToBytes(next))
}

// Messages lists the inbox of a recipient, oldest first
func (ib *Inbox) Messages(recipient string) ([]Message, error) {
	messages := []Message{}
	err := ib.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := messagePrefix(recipient)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m Message
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			})
			if err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return nil
	})
	return messages, err
}

// Unread returns the number of unread messages of a recipient
func (ib *Inbox) Unread(recipient string) (int64, error) {
	count := int64(0)
	err := ib.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(unreadKey(recipient))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		return item.Value(func(val []byte) error {
			count = bytesToInt64(val)
			return nil
		})
	})
	return count, err
}

// ErrMessageNotFound is returned when marking an unknown message
var ErrMessageNotFound = errors.New("message not found")

// MarkRead flags a message as read. Marking twice is a no-op.
func (ib *Inbox) MarkRead(recipient, id string) error {
	return ib.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(indexKey(recipient, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrMessageNotFound
			}
			return err
		}
		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err = txn.Get(key)
		if err != nil {
			return err
		}
		var m Message
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &m) }); err != nil {
			return err
		}
		if m.Read {
			return nil
		}
		m.Read = true
		raw, err := json.Marshal(m)
		if err != nil {
			return err
		}
		if err := txn.Set(key, raw); err != nil {
			return err
		}
		return addUnread(txn, recipient, -1)
	})
}

// Post appends an entry to the journal of a record
func (ib *Inbox) Post(entry Entry) error {
	if entry.At.IsZero() {
		entry.At = ib.now()
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := append(journalPrefix(entry.EntityType, entry.EntityID), []byte(ib.stamp(entry.At))...)
	return ib.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, raw)
	})
}

// Journal returns the entries of a record, oldest first
func (ib *Inbox) Journal(entityType, entityID string) ([]Entry, error) {
	entries := []Entry{}
	err := ib.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := journalPrefix(entityType, entityID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// int64ToBytes converts an int64 to bytes
func int64ToBytes(i int64) []byte {
	buf := make([]byte, 8)
	for n := 7; n >= 0; n-- {
		buf[n] = byte(i)
		i >>= 8
	}
	return buf
}

// bytesToInt64 converts bytes to an int64
func bytesToInt64(buf []byte) int64 {
	if len(buf) < 8 {
		return 0
	}
	var i int64
	for _, b := range buf[:8] {
		i = i<<8 | int64(b)
	}
	return i
}
