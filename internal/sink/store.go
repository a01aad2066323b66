package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/runnelhq/runnel/internal/storage/pebble"
)

// ErrItemNotFound reports a missing (pk, sk) pair.
var ErrItemNotFound = errors.New("sink: item not found")

var itemPrefix = []byte("item/")

// keySep separates pk from sk. PKs contain '/' so a printable separator
// would make keys ambiguous; 0x00 cannot appear in either part.
const keySep = byte(0x00)

func itemKey(pk, sk string) []byte {
	k := make([]byte, 0, len(itemPrefix)+len(pk)+1+len(sk))
	k = append(k, itemPrefix...)
	k = append(k, pk...)
	k = append(k, keySep)
	k = append(k, sk...)
	return k
}

// Store persists StoredItems in the shared key-value store. Writes are pure
// overwrites keyed by (pk, sk), so re-applying the same event is a no-op in
// effect.
type Store struct {
	db *pebblestore.DB
}

// NewStore wraps db with the item keyspace.
func NewStore(db *pebblestore.DB) *Store {
	return &Store{db: db}
}

// Put upserts one item.
func (s *Store) Put(item StoredItem) error {
	if strings.ContainsRune(item.PK, rune(keySep)) || strings.ContainsRune(item.SK, rune(keySep)) {
		return fmt.Errorf("sink: key contains reserved byte: pk=%q sk=%q", item.PK, item.SK)
	}
	b, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("sink: marshal item: %w", err)
	}
	return s.db.Set(itemKey(item.PK, item.SK), b)
}

// PutBatch upserts a batch atomically.
func (s *Store) PutBatch(ctx context.Context, items []StoredItem) error {
	if len(items) == 0 {
		return nil
	}
	b := s.db.NewBatch()
	defer b.Close()
	for _, item := range items {
		v, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("sink: marshal item: %w", err)
		}
		if err := b.Set(itemKey(item.PK, item.SK), v, nil); err != nil {
			return err
		}
	}
	return s.db.CommitBatch(ctx, b)
}

// Get returns the item stored under (pk, sk).
func (s *Store) Get(pk, sk string) (StoredItem, error) {
	v, err := s.db.Get(itemKey(pk, sk))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return StoredItem{}, ErrItemNotFound
		}
		return StoredItem{}, err
	}
	var item StoredItem
	if err := json.Unmarshal(v, &item); err != nil {
		return StoredItem{}, fmt.Errorf("sink: unmarshal item: %w", err)
	}
	return item, nil
}

// Range scans a pk's items with fromSK <= sk <= toSK in chronological order.
// Empty bounds scan from the start / to the end of the pk. limit 0 means no
// limit.
func (s *Store) Range(pk, fromSK, toSK string, limit int) ([]StoredItem, error) {
	low := itemKey(pk, fromSK)
	var high []byte
	if toSK == "" {
		high = append(itemKey(pk, ""), 0xff)
	} else {
		high = append(itemKey(pk, toSK), 0x01) // inclusive upper bound
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: low, UpperBound: high})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []StoredItem
	for ok := iter.First(); ok && (limit == 0 || len(out) < limit); ok = iter.Next() {
		var item StoredItem
		if err := json.Unmarshal(iter.Value(), &item); err != nil {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}
