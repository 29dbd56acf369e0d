// Package taskstore keeps a local, server-backed mirror of the user's tasks.
//
// Every operation sends the session's current bearer token. Create, update
// and delete change the local collection only after the server confirms;
// ToggleCompleted flips the entry first and rolls it back if the server
// call fails. Mutations on the same task ID are serialized.
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"todo/internal/service"
)

// DefaultLimit is the page size used by Refresh and by ListTasks when no
// positive limit is given.
const DefaultLimit = 100

var (
	// ErrNoToken is returned when an operation runs without a session token.
	ErrNoToken = errors.New("no session token")

	// ErrNotFound is returned when the task is not in the local collection.
	ErrNotFound = errors.New("task not found")

	// ErrEmptyTitle is returned when creating a task with a blank title.
	ErrEmptyTitle = errors.New("title required")
)

// TokenSource supplies the bearer token for each remote call.
type TokenSource interface {
	Token() (string, bool)
}

// Notifier announces that a session token has become available.
type Notifier interface {
	OnTokenAcquired(fn func(ctx context.Context))
}

// Store is the local task collection. It is safe for concurrent use.
type Store struct {
	backend service.Service
	tokens  TokenSource
	logger  *slog.Logger
	locks   *keyLock

	mu    sync.Mutex
	tasks []service.Task
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates an empty Store.
func New(backend service.Service, tokens TokenSource, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		tokens:  tokens,
		logger:  slog.New(slog.DiscardHandler),
		locks:   newKeyLock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach makes the store refresh itself each time n reports a newly
// acquired token.
func (s *Store) Attach(n Notifier) {
	n.OnTokenAcquired(s.resync)
}

func (s *Store) resync(ctx context.Context) {
	tasks, err := s.Refresh(ctx)
	if err != nil {
		s.logger.Warn("task resync failed", "error", err)
		return
	}
	s.logger.Debug("tasks resynced", "count", len(tasks))
}

// Tasks returns a copy of the local collection in order.
func (s *Store) Tasks() []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Task returns the local entry with the given ID.
func (s *Store) Task(id int) (service.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.tasks[i], true
	}
	return service.Task{}, false
}

// Len returns the number of local entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Refresh fetches the first page and replaces the local collection.
func (s *Store) Refresh(ctx context.Context) ([]service.Task, error) {
	return s.ListTasks(ctx, 0, DefaultLimit)
}

// ListTasks fetches one page of tasks and makes it the entire local
// collection. Entries from earlier pages that are not in this page are
// dropped.
func (s *Store) ListTasks(ctx context.Context, skip, limit int) ([]service.Task, error) {
	if skip < 0 {
		return nil, fmt.Errorf("invalid skip: %d", skip)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	token, err := s.token()
	if err != nil {
		return nil, err
	}

	tasks, err := s.backend.ListTasks(ctx, token, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	s.mu.Lock()
	s.tasks = slices.Clone(tasks)
	s.mu.Unlock()
	return slices.Clone(tasks), nil
}

// Locate makes sure the task with the given ID is in the local collection.
// If it is not, pages are fetched from the start until one holds it; the
// collection is then that page, as after ListTasks.
func (s *Store) Locate(ctx context.Context, id int) (service.Task, error) {
	if task, ok := s.Task(id); ok {
		return task, nil
	}
	for skip := 0; ; skip += DefaultLimit {
		page, err := s.ListTasks(ctx, skip, DefaultLimit)
		if err != nil {
			return service.Task{}, err
		}
		if i := slices.IndexFunc(page, func(t service.Task) bool { return t.ID == id }); i >= 0 {
			s.logger.Debug("task located", "id", id, "skip", skip)
			return page[i], nil
		}
		if len(page) < DefaultLimit {
			return service.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
		}
	}
}

// CreateTask creates a task and appends the server's copy, with its
// assigned ID, to the local collection.
func (s *Store) CreateTask(ctx context.Context, title, description string) (service.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return service.Task{}, ErrEmptyTitle
	}
	token, err := s.token()
	if err != nil {
		return service.Task{}, err
	}

	task, err := s.backend.CreateTask(ctx, token, service.NewTask{Title: title, Description: description})
	if err != nil {
		return service.Task{}, fmt.Errorf("create task: %w", err)
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return task, nil
}

// UpdateTask sends the given fields and, once the server confirms,
// replaces the local entry with the server's representation.
func (s *Store) UpdateTask(ctx context.Context, id int, update service.TaskUpdate) (service.Task, error) {
	token, err := s.token()
	if err != nil {
		return service.Task{}, err
	}
	release := s.locks.Lock(id)
	defer release()

	task, err := s.backend.UpdateTask(ctx, token, id, update)
	if err != nil {
		return service.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	s.replace(id, task)
	return task, nil
}

// DeleteTask deletes a task and, once the server confirms, removes the
// local entry.
func (s *Store) DeleteTask(ctx context.Context, id int) error {
	token, err := s.token()
	if err != nil {
		return err
	}
	release := s.locks.Lock(id)
	defer release()

	if _, err := s.backend.DeleteTask(ctx, token, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = slices.Delete(s.tasks, i, i+1)
	}
	s.mu.Unlock()
	return nil
}

// ToggleCompleted flips the task's completion locally, then asks the server
// to do the same. On success the local entry takes the server's version;
// on failure the entry is restored to what it was before the call and the
// error is returned.
func (s *Store) ToggleCompleted(ctx context.Context, id int) (service.Task, error) {
	token, err := s.token()
	if err != nil {
		return service.Task{}, err
	}
	release := s.locks.Lock(id)
	defer release()

	op := optimistic[service.Task]{
		load:  func() (service.Task, bool) { return s.Task(id) },
		store: func(t service.Task) { s.replace(id, t) },
		mutate: func(t service.Task) service.Task {
			t.Completed = !t.Completed
			return t
		},
		remote: func(ctx context.Context, next service.Task) (service.Task, error) {
			completed := next.Completed
			return s.backend.UpdateTask(ctx, token, id, service.TaskUpdate{Completed: &completed})
		},
	}

	task, err := op.run(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Debug("toggle rolled back", "id", id, "error", err)
		}
		return service.Task{}, fmt.Errorf("toggle task %d: %w", id, err)
	}
	return task, nil
}

func (s *Store) token() (string, error) {
	token, ok := s.tokens.Token()
	if !ok {
		return "", ErrNoToken
	}
	return token, nil
}

// replace swaps the entry with the given ID in place. It does nothing if
// the entry has left the collection meanwhile.
func (s *Store) replace(id int, task service.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 {
		s.tasks[i] = task
	}
}

func (s *Store) indexLocked(id int) int {
	return slices.IndexFunc(s.tasks, func(t service.Task) bool { return t.ID == id })
}
