// Package overlay holds client-local overrides of per-record read state.
//
// An overlay entry shadows the fetched IsRead of one record until a
// refetch shows the backend agreeing with it. Entries are written through
// transactions so that a failed mutation rolls back exactly the entries it
// wrote, restoring whatever was there before.
package overlay

import (
	"sync"

	"github.com/nhle/notifeed/internal/model"
)

// Status is the lifecycle state of an entry or transaction.
type Status int

const (
	StatusPending Status = iota
	StatusConfirmed
	StatusRolledBack
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusRolledBack:
		return "rolledBack"
	default:
		return "unknown"
	}
}

// Entry is one local override keyed by record key.
type Entry struct {
	Key    model.Key
	IsRead bool
	Status Status

	// owner is the transaction that last wrote the entry.
	owner uint64
}

// Overlay is safe for concurrent use.
type Overlay struct {
	mu      sync.Mutex
	entries map[model.Key]Entry
	live    map[uint64]*Txn
	nextID  uint64
}

// New returns an empty overlay.
func New() *Overlay {
	return &Overlay{
		entries: make(map[model.Key]Entry),
		live:    make(map[uint64]*Txn),
	}
}

// Len returns the number of entries.
func (o *Overlay) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

// readLocked returns the displayed read state: the overlay value when
// present, otherwise fetched.
func (o *Overlay) readLocked(key model.Key, fetched bool) bool {
	if e, ok := o.entries[key]; ok {
		return e.IsRead
	}
	return fetched
}

// Apply returns a copy of records with overlay values applied.
func (o *Overlay) Apply(records []model.Notification, keyOf model.KeyFunc) []model.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]model.Notification, len(records))
	for i, n := range records {
		n.IsRead = o.readLocked(keyOf(n), n.IsRead)
		out[i] = n
	}
	return out
}

// Reconcile runs after a full refetch of the loaded pages. It drops
// confirmed entries whose fetched record now agrees with them, and confirmed
// entries whose record was not fetched at all, which happens when the filter
// excludes it after the write. Pending entries, and confirmed entries the
// backend has not caught up with yet, are kept. It returns the number of
// entries dropped.
func (o *Overlay) Reconcile(records []model.Notification, keyOf model.KeyFunc) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	fetched := make(map[model.Key]bool, len(records))
	for _, n := range records {
		fetched[keyOf(n)] = n.IsRead
	}

	dropped := 0
	for k, e := range o.entries {
		if e.Status != StatusConfirmed {
			continue
		}
		if isRead, ok := fetched[k]; ok && isRead != e.IsRead {
			continue
		}
		delete(o.entries, k)
		dropped++
	}
	return dropped
}

// Clear removes every entry. Open transactions become no-ops.
func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = make(map[model.Key]Entry)
	for id, t := range o.live {
		t.prior = nil
		delete(o.live, id)
	}
}

// Begin writes a pending entry with value isRead for every key and returns
// the transaction that owns them.
func (o *Overlay) Begin(keys []model.Key, isRead bool) *Txn {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	t := &Txn{
		o:     o,
		id:    o.nextID,
		prior: make(map[model.Key]*Entry, len(keys)),
	}
	for _, k := range keys {
		if _, seen := t.prior[k]; seen {
			continue
		}
		t.keys = append(t.keys, k)
		if prev, ok := o.entries[k]; ok {
			p := prev
			t.prior[k] = &p
		} else {
			t.prior[k] = nil
		}
		o.entries[k] = Entry{Key: k, IsRead: isRead, Status: StatusPending, owner: t.id}
	}
	o.live[t.id] = t
	return t
}

// Txn is one optimistic write over a set of keys. It ends exactly once,
// in Commit or Rollback.
type Txn struct {
	o      *Overlay
	id     uint64
	keys   []model.Key
	prior  map[model.Key]*Entry
	status Status
}

// Keys returns the keys the transaction wrote.
func (t *Txn) Keys() []model.Key {
	return t.keys
}

// Status returns pending until the transaction ends.
func (t *Txn) Status() Status {
	t.o.mu.Lock()
	defer t.o.mu.Unlock()
	return t.status
}

// Commit marks the transaction's entries confirmed.
func (t *Txn) Commit() {
	t.end(StatusConfirmed)
}

// Rollback restores every key to its state before Begin, all at once.
// Keys since rewritten by a newer transaction are left to that transaction,
// whose own rollback target is patched to skip this one.
func (t *Txn) Rollback() {
	t.end(StatusRolledBack)
}

func (t *Txn) end(final Status) {
	o := t.o
	o.mu.Lock()
	defer o.mu.Unlock()

	if t.status != StatusPending {
		return
	}
	t.status = final
	if _, ok := o.live[t.id]; !ok {
		// Cleared while in flight.
		return
	}
	delete(o.live, t.id)

	for _, k := range t.keys {
		cur, ok := o.entries[k]
		if ok && cur.owner == t.id {
			if final == StatusConfirmed {
				cur.Status = StatusConfirmed
				o.entries[k] = cur
				continue
			}
			if prev := t.prior[k]; prev != nil {
				o.entries[k] = *prev
			} else {
				delete(o.entries, k)
			}
			continue
		}

		// A newer transaction owns the key; fix up what it would restore.
		if !ok {
			continue
		}
		newer, live := o.live[cur.owner]
		if !live {
			continue
		}
		p := newer.prior[k]
		if p == nil || p.owner != t.id {
			continue
		}
		if final == StatusConfirmed {
			p.Status = StatusConfirmed
		} else {
			newer.prior[k] = t.prior[k]
		}
	}
}
