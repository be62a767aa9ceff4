// Package activity keeps per-room activity counters fed by chat events.
package activity

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	kvjetstream "github.com/go-monolith/mono/plugin/kv-jetstream"
)

const (
	roomKeyPrefix = "room."
	totalsKey     = "totals"
	maxRetries    = 5
)

// ErrTooManyRetries is returned when concurrent writers keep winning the
// revision race for a key.
var ErrTooManyRetries = errors.New("max retries exceeded for activity update")

// roomKey encodes room names, which may hold characters KV keys reject.
func roomKey(room string) string {
	return roomKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(room))
}

// Store keeps activity records in a kv-jetstream bucket.
type Store struct {
	bucket kvjetstream.KVStoragePort
}

// NewStore creates a Store over bucket.
func NewStore(bucket kvjetstream.KVStoragePort) *Store {
	return &Store{bucket: bucket}
}

// RecordMessage counts a message sent to room at t.
func (s *Store) RecordMessage(room string, t time.Time) error {
	return mutate(s.bucket, roomKey(room), func(a *RoomActivity) {
		a.Room = room
		a.Sent++
		a.Messages++
		if a.LastMessageAt == nil || t.After(*a.LastMessageAt) {
			a.LastMessageAt = &t
		}
	})
}

// RecordDeleted counts n messages deleted from room. The stored count
// never drops below zero.
func (s *Store) RecordDeleted(room string, n int) error {
	return mutate(s.bucket, roomKey(room), func(a *RoomActivity) {
		a.Room = room
		a.Deleted += int64(n)
		a.Messages = max(a.Messages-int64(n), 0)
	})
}

// RecordJoin counts a connection moving into room at t.
func (s *Store) RecordJoin(room string, t time.Time) error {
	return mutate(s.bucket, roomKey(room), func(a *RoomActivity) {
		a.Room = room
		a.Joins++
		if a.LastJoinAt == nil || t.After(*a.LastJoinAt) {
			a.LastJoinAt = &t
		}
	})
}

// RecordConnect counts an admitted connection.
func (s *Store) RecordConnect(t time.Time) error {
	return mutate(s.bucket, totalsKey, func(tot *Totals) {
		tot.Connects++
		if tot.LastSeenAt == nil || t.After(*tot.LastSeenAt) {
			tot.LastSeenAt = &t
		}
	})
}

// RecordDisconnect counts a closed connection.
func (s *Store) RecordDisconnect(t time.Time) error {
	return mutate(s.bucket, totalsKey, func(tot *Totals) {
		tot.Disconnects++
		if tot.LastSeenAt == nil || t.After(*tot.LastSeenAt) {
			tot.LastSeenAt = &t
		}
	})
}

// Room returns the activity of room. A room without activity yields a zero
// record, not an error.
func (s *Store) Room(room string) (RoomActivity, error) {
	a, err := load[RoomActivity](s.bucket, roomKey(room))
	if err != nil {
		return RoomActivity{}, err
	}
	a.Room = room
	return a, nil
}

// Rooms returns every room with recorded activity, ordered by name.
func (s *Store) Rooms() ([]RoomActivity, error) {
	keys, err := s.bucket.Keys()
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return []RoomActivity{}, nil
		}
		return nil, fmt.Errorf("failed to list activity keys: %w", err)
	}

	rooms := make([]RoomActivity, 0, len(keys))
	for _, key := range keys {
		if !strings.HasPrefix(key, roomKeyPrefix) {
			continue
		}
		a, err := load[RoomActivity](s.bucket, key)
		if err != nil {
			return nil, err
		}
		if a.Room != "" {
			rooms = append(rooms, a)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })
	return rooms, nil
}

// Totals returns connection lifecycle counters.
func (s *Store) Totals() (Totals, error) {
	return load[Totals](s.bucket, totalsKey)
}

func load[T any](bucket kvjetstream.KVStoragePort, key string) (T, error) {
	var v T
	data, err := bucket.Get(key)
	if err != nil {
		if errors.Is(err, kvjetstream.ErrKeyNotFound) {
			return v, nil
		}
		return v, fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return v, nil
}

// mutate applies fn to the record at key with optimistic locking, creating
// the record when it does not exist yet.
func mutate[T any](bucket kvjetstream.KVStoragePort, key string, fn func(*T)) error {
	for i := 0; i < maxRetries; i++ {
		var v T
		entry, err := bucket.GetEntry(key)
		switch {
		case errors.Is(err, kvjetstream.ErrKeyNotFound):
			fn(&v)
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("failed to marshal %s: %w", key, err)
			}
			_, err = bucket.Create(key, data, 0)
			if err == nil {
				return nil
			}
			if errors.Is(err, kvjetstream.ErrKeyExists) {
				continue
			}
			return fmt.Errorf("failed to create %s: %w", key, err)

		case err != nil:
			return fmt.Errorf("failed to get %s: %w", key, err)
		}

		if err := json.Unmarshal(entry.Value, &v); err != nil {
			return fmt.Errorf("failed to unmarshal %s: %w", key, err)
		}
		fn(&v)
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", key, err)
		}

		_, err = bucket.Update(key, data, 0, entry.Revision)
		if err == nil {
			return nil
		}
		if errors.Is(err, kvjetstream.ErrRevisionMismatch) {
			continue
		}
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return ErrTooManyRetries
}
