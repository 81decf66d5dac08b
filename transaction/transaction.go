// Package transaction implements atomic file-snapshot transactions:
// begin, snapshot a set of files, then either roll back to their
// captured content or commit.
package transaction

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/oldnordic/forge/reasoning"
)

// fileSnapshot is a file's content immediately before its first
// mutation within a transaction. existedBefore distinguishes "file was
// empty" from "file did not exist", since rollback deletes the latter
// rather than restoring empty content.
type fileSnapshot struct {
	path          string
	originalBytes []byte
	existedBefore bool
}

// State is a Transaction's lifecycle stage.
type State int

const (
	Active State = iota
	RolledBack
	Committed
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case RolledBack:
		return "RolledBack"
	case Committed:
		return "Committed"
	default:
		return "Unknown"
	}
}

// Transaction groups a set of file mutations so they can be rolled
// back as a unit. Its methods serialize on an internal mutex; a
// transaction is owned by a single caller for its lifetime.
type Transaction struct {
	mu        sync.Mutex
	id        uuid.UUID
	snapshots []fileSnapshot
	state     State
	commitID  uuid.UUID
}

// Begin starts a fresh, Active transaction.
func Begin() *Transaction {
	return &Transaction{id: uuid.New(), state: Active}
}

// ID returns the transaction's identifier.
func (t *Transaction) ID() uuid.UUID {
	return t.id
}

// State returns the transaction's current lifecycle stage.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SnapshotCount returns how many files have been snapshotted so far.
func (t *Transaction) SnapshotCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.snapshots)
}

// Snapshot captures path's current content before a planned mutation.
// If the file does not exist yet, an empty-content snapshot is
// recorded so Rollback knows to delete it instead of restoring
// content. Fails InvalidState outside Active.
func (t *Transaction) Snapshot(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return reasoning.New(reasoning.KindInvalidState, fmt.Sprintf("cannot snapshot file: transaction is %s", t.state))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.snapshots = append(t.snapshots, fileSnapshot{path: path, existedBefore: false})
			return nil
		}
		return reasoning.Wrap(reasoning.KindStorage, fmt.Sprintf("read %s for snapshot", path), err)
	}
	t.snapshots = append(t.snapshots, fileSnapshot{path: path, originalBytes: content, existedBefore: true})
	return nil
}

// Rollback restores every snapshotted file to its pre-transaction
// state, in reverse snapshot order, and consumes the transaction.
// Fails InvalidState outside Active.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return reasoning.New(reasoning.KindInvalidState, fmt.Sprintf("cannot rollback: transaction is %s", t.state))
	}

	for i := len(t.snapshots) - 1; i >= 0; i-- {
		snap := t.snapshots[i]
		if !snap.existedBefore {
			if _, err := os.Stat(snap.path); err == nil {
				if err := os.Remove(snap.path); err != nil {
					return reasoning.Wrap(reasoning.KindStorage, fmt.Sprintf("remove %s during rollback", snap.path), err)
				}
			}
			continue
		}
		if err := os.WriteFile(snap.path, snap.originalBytes, 0o644); err != nil {
			return reasoning.Wrap(reasoning.KindStorage, fmt.Sprintf("restore %s during rollback", snap.path), err)
		}
	}

	t.state = RolledBack
	return nil
}

// Commit finalizes the transaction, assigning it a commit id. Fails
// InvalidState outside Active.
func (t *Transaction) Commit() (uuid.UUID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != Active {
		return uuid.Nil, reasoning.New(reasoning.KindInvalidState, fmt.Sprintf("cannot commit: transaction is %s", t.state))
	}
	t.commitID = uuid.New()
	t.state = Committed
	return t.commitID, nil
}
