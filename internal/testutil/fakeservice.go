// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"todo/internal/service"
)

type fakeAccount struct {
	password string
	user     service.User
}

// FakeService is an in-memory implementation of service.Service for testing.
// It keeps accounts, issued tokens and per-user tasks, and answers with the
// same *service.APIError statuses the real API uses.
type FakeService struct {
	mu        sync.Mutex
	accounts  map[string]*fakeAccount   // email -> account
	tokens    map[string]string         // token -> email
	googleIDs map[string]string         // id token -> email
	tasks     map[string][]service.Task // email -> tasks
	calls     map[string]int
	nextUser  int
	nextTask  int
	nextToken int

	// Error injection for testing
	LoginErr         error
	LoginGoogleErr   error
	RegisterErr      error
	MeErr            error
	UpdateProfileErr error
	ListTasksErr     error
	CreateTaskErr    error
	UpdateTaskErr    error
	DeleteTaskErr    error

	// OmitAccessToken makes successful logins answer without a token.
	OmitAccessToken bool

	// BeforeUpdateTask, if set, runs at the start of UpdateTask, before
	// error injection and without the lock held.
	BeforeUpdateTask func(id int, update service.TaskUpdate)

	// AfterUpdateTask, if set, may alter the task the server returns from
	// a successful UpdateTask, simulating server-side changes.
	AfterUpdateTask func(t *service.Task)
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		accounts:  make(map[string]*fakeAccount),
		tokens:    make(map[string]string),
		googleIDs: make(map[string]string),
		tasks:     make(map[string][]service.Task),
		calls:     make(map[string]int),
	}
}

// AddUser creates an account and returns its profile.
func (f *FakeService) AddUser(email, password string) service.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(email, password)
}

func (f *FakeService) addUserLocked(email, password string) service.User {
	f.nextUser++
	u := service.User{ID: f.nextUser, Email: email}
	f.accounts[email] = &fakeAccount{password: password, user: u}
	return u
}

// SetToken makes token a valid credential for email.
func (f *FakeService) SetToken(token, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[token] = email
}

// RevokeToken makes token invalid.
func (f *FakeService) RevokeToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, token)
}

// AddGoogleIdentity makes idToken exchangeable for a session of email.
func (f *FakeService) AddGoogleIdentity(idToken, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.googleIDs[idToken] = email
}

// AddTask adds a task owned by email and returns it.
func (f *FakeService) AddTask(email, title, description string, completed bool) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTask++
	t := service.Task{ID: f.nextTask, Title: title, Description: description, Completed: completed}
	f.tasks[email] = append(f.tasks[email], t)
	return t
}

// TasksOf returns a copy of the tasks owned by email, in server order.
func (f *FakeService) TasksOf(email string) []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]service.Task, len(f.tasks[email]))
	copy(result, f.tasks[email])
	return result
}

// Calls returns how many times the named method was invoked.
func (f *FakeService) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeService) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
}

func (f *FakeService) issueLocked(email string) service.AuthToken {
	if f.OmitAccessToken {
		return service.AuthToken{TokenType: "bearer"}
	}
	f.nextToken++
	token := fmt.Sprintf("token-%d", f.nextToken)
	f.tokens[token] = email
	return service.AuthToken{AccessToken: token, TokenType: "bearer"}
}

// ownerLocked resolves token to its account email.
func (f *FakeService) ownerLocked(token string) (string, error) {
	email, ok := f.tokens[token]
	if !ok || f.accounts[email] == nil {
		return "", &service.APIError{StatusCode: http.StatusUnauthorized, Detail: "Could not validate credentials"}
	}
	return email, nil
}

func notFound() error {
	return &service.APIError{StatusCode: http.StatusNotFound, Detail: "Todo not found"}
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, email, password string) (service.AuthToken, error) {
	f.record("Login")
	if f.LoginErr != nil {
		return service.AuthToken{}, f.LoginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	acct, ok := f.accounts[email]
	if !ok || acct.password != password {
		return service.AuthToken{}, &service.APIError{StatusCode: http.StatusUnauthorized, Detail: "Incorrect email or password"}
	}
	return f.issueLocked(email), nil
}

// LoginGoogle implements service.Service.
func (f *FakeService) LoginGoogle(ctx context.Context, idToken string) (service.AuthToken, error) {
	f.record("LoginGoogle")
	if f.LoginGoogleErr != nil {
		return service.AuthToken{}, f.LoginGoogleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, ok := f.googleIDs[idToken]
	if !ok {
		return service.AuthToken{}, &service.APIError{StatusCode: http.StatusUnauthorized, Detail: "Invalid Google token"}
	}
	if _, ok := f.accounts[email]; !ok {
		f.addUserLocked(email, "")
	}
	return f.issueLocked(email), nil
}

// Register implements service.Service.
func (f *FakeService) Register(ctx context.Context, email, password string) (service.User, error) {
	f.record("Register")
	if f.RegisterErr != nil {
		return service.User{}, f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.accounts[email]; ok {
		return service.User{}, &service.APIError{StatusCode: http.StatusBadRequest, Detail: "Email already registered"}
	}
	return f.addUserLocked(email, password), nil
}

// Me implements service.Service.
func (f *FakeService) Me(ctx context.Context, token string) (service.User, error) {
	f.record("Me")
	if f.MeErr != nil {
		return service.User{}, f.MeErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, err := f.ownerLocked(token)
	if err != nil {
		return service.User{}, err
	}
	return f.accounts[email].user, nil
}

// UpdateProfile implements service.Service.
func (f *FakeService) UpdateProfile(ctx context.Context, token string, update service.ProfileUpdate) (service.User, error) {
	f.record("UpdateProfile")
	if f.UpdateProfileErr != nil {
		return service.User{}, f.UpdateProfileErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, err := f.ownerLocked(token)
	if err != nil {
		return service.User{}, err
	}
	u := &f.accounts[email].user
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.ProfilePicture != nil {
		u.ProfilePicture = *update.ProfilePicture
	}
	if update.Phone != nil {
		u.Phone = *update.Phone
	}
	if update.Address != nil {
		u.Address = *update.Address
	}
	if update.DocumentID != nil {
		u.DocumentID = *update.DocumentID
	}
	if update.Location != nil {
		loc := *update.Location
		u.Location = &loc
	}
	return *u, nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, token string, skip, limit int) ([]service.Task, error) {
	f.record("ListTasks")
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, err := f.ownerLocked(token)
	if err != nil {
		return nil, err
	}
	tasks := f.tasks[email]
	if skip >= len(tasks) {
		return []service.Task{}, nil
	}
	end := skip + limit
	if end > len(tasks) {
		end = len(tasks)
	}
	result := make([]service.Task, end-skip)
	copy(result, tasks[skip:end])
	return result, nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, token string, task service.NewTask) (service.Task, error) {
	f.record("CreateTask")
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, err := f.ownerLocked(token)
	if err != nil {
		return service.Task{}, err
	}
	if strings.TrimSpace(task.Title) == "" {
		return service.Task{}, &service.APIError{StatusCode: http.StatusUnprocessableEntity, Detail: "title required"}
	}
	f.nextTask++
	t := service.Task{ID: f.nextTask, Title: task.Title, Description: task.Description}
	f.tasks[email] = append(f.tasks[email], t)
	return t, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, token string, id int, update service.TaskUpdate) (service.Task, error) {
	f.record("UpdateTask")
	if f.BeforeUpdateTask != nil {
		f.BeforeUpdateTask(id, update)
	}
	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, err := f.ownerLocked(token)
	if err != nil {
		return service.Task{}, err
	}
	for i, t := range f.tasks[email] {
		if t.ID == id {
			t = update.Apply(t)
			if f.AfterUpdateTask != nil {
				f.AfterUpdateTask(&t)
			}
			f.tasks[email][i] = t
			return t, nil
		}
	}
	return service.Task{}, notFound()
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, token string, id int) (service.Task, error) {
	f.record("DeleteTask")
	if f.DeleteTaskErr != nil {
		return service.Task{}, f.DeleteTaskErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	email, err := f.ownerLocked(token)
	if err != nil {
		return service.Task{}, err
	}
	tasks := f.tasks[email]
	for i, t := range tasks {
		if t.ID == id {
			f.tasks[email] = append(tasks[:i:i], tasks[i+1:]...)
			return t, nil
		}
	}
	return service.Task{}, notFound()
}
