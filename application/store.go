package application

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"
)

// AttemptedMove is one coordinate the local participant has tried for a
// game. Records are written before the submitting network call and never
// deleted; the set of attempted cells is the local "never retry" set.
type AttemptedMove struct {
	GameID string `json:"game_id"`
	X      byte   `json:"x"`
	Y      byte   `json:"y"`
	Round  int    `json:"round"`
	TxID   string `json:"tx_id,omitempty"`
}

// TxMarker is the at-most-one in-flight transaction record for a
// (game, action) pair.
type TxMarker struct {
	GameID string `json:"game_id"`
	Action string `json:"action"`
	TxID   string `json:"tx_id"`
	// HandleID is set for result-consuming actions so the handle can be
	// marked processed once the transaction confirms.
	HandleID string `json:"handle_id,omitempty"`
}

// Store is the orchestrator's durable local state, backed by Badger.
type Store struct {
	db *badger.DB
}

// OpenStore opens (or creates) the store at dir.
func OpenStore(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening orchestrator store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func attemptKey(gameID string, x, y byte) []byte {
	return []byte(fmt.Sprintf("attempt/%s/%d,%d", gameID, x, y))
}

func attemptPrefix(gameID string) []byte {
	return []byte("attempt/" + gameID + "/")
}

func markerKey(gameID, action string) []byte {
	return []byte("marker/" + gameID + "/" + action)
}

func processedKey(gameID, handleID string) []byte {
	return []byte("processed/" + gameID + "/" + handleID)
}

// RecordAttempt persists an attempted move. Recording the same cell twice is
// an error; callers must consult HasAttempt first.
func (s *Store) RecordAttempt(am AttemptedMove) error {
	val, err := json.Marshal(am)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		key := attemptKey(am.GameID, am.X, am.Y)
		if _, err := txn.Get(key); err == nil {
			return fmt.Errorf("attempt for cell (%d,%d) already recorded", am.X, am.Y)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, val)
	})
}

// HasAttempt reports whether the cell was ever tried for the game.
func (s *Store) HasAttempt(gameID string, x, y byte) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(attemptKey(gameID, x, y))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Attempts returns every attempted move for the game.
func (s *Store) Attempts(gameID string) ([]AttemptedMove, error) {
	var out []AttemptedMove
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := attemptPrefix(gameID)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var am AttemptedMove
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &am)
			}); err != nil {
				return err
			}
			out = append(out, am)
		}
		return nil
	})
	return out, err
}

// SetMarker records the in-flight transaction for a (game, action) pair.
func (s *Store) SetMarker(m TxMarker) error {
	val, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(markerKey(m.GameID, m.Action), val)
	})
}

// GetMarker returns the marker for a (game, action) pair if one exists.
func (s *Store) GetMarker(gameID, action string) (TxMarker, bool, error) {
	var m TxMarker
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(markerKey(gameID, action))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, &m)
		})
	})
	return m, found, err
}

// ClearMarker removes the marker for a (game, action) pair.
func (s *Store) ClearMarker(gameID, action string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(markerKey(gameID, action))
	})
}

// MarkProcessed remembers that a decrypted result handle was already fed
// back into the ledger, deduplicating repeated notifications.
func (s *Store) MarkProcessed(gameID, handleID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(processedKey(gameID, handleID), []byte{1})
	})
}

// IsProcessed reports whether the result handle was already consumed.
func (s *Store) IsProcessed(gameID, handleID string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(processedKey(gameID, handleID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}
