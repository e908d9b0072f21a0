// Package memory is a process-local implementation of the user and task
// repositories. It backs the "memory" DSN and the HTTP end-to-end tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Store holds every record behind one mutex. Records are copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu    sync.RWMutex
	users map[string]*models.User
	tasks map[string]*models.Task

	txMu sync.Mutex
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{
		users: make(map[string]*models.User),
		tasks: make(map[string]*models.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

func (s *Store) Tasks() *TaskRepository { return &TaskRepository{s: s} }

// journal holds the value each key had before the transaction first wrote
// it. A nil value means the key did not exist.
type journal struct {
	users map[string]*models.User
	tasks map[string]*models.Task
}

type journalKey struct{}

func journalFrom(ctx context.Context) *journal {
	j, _ := ctx.Value(journalKey{}).(*journal)
	return j
}

// Stored records are replaced, never mutated, so the old pointers stay valid.
func (s *Store) noteUserLocked(ctx context.Context, id string) {
	if j := journalFrom(ctx); j != nil {
		if _, seen := j.users[id]; !seen {
			j.users[id] = s.users[id]
		}
	}
}

func (s *Store) noteTaskLocked(ctx context.Context, id string) {
	if j := journalFrom(ctx); j != nil {
		if _, seen := j.tasks[id]; !seen {
			j.tasks[id] = s.tasks[id]
		}
	}
}

// Atomic runs fn so that either all of its writes persist or, when fn fails,
// none do. Only the records fn wrote are rolled back; writes made outside
// the transaction in the meantime are kept. Atomic calls are serialized with
// each other.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{users: map[string]*models.User{}, tasks: map[string]*models.Task{}}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		for id, u := range j.users {
			if u == nil {
				delete(s.users, id)
			} else {
				s.users[id] = u
			}
		}
		for id, t := range j.tasks {
			if t == nil {
				delete(s.tasks, id)
			} else {
				s.tasks[id] = t
			}
		}
		return err
	}
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	return &c
}

func copyTask(t *models.Task) *models.Task {
	c := *t
	c.Tags = append([]string{}, t.Tags...)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedDate != nil {
		d := *t.CompletedDate
		c.CompletedDate = &d
	}
	return &c
}
