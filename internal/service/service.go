// Package service defines the backend-agnostic interface for the todo API.
package service

import "context"

// Service defines the remote operations of the todo API.
// All HTTP traffic goes through this interface; the session and task
// layers never talk to the transport directly.
//
// Authenticated operations take the bearer token explicitly so that the
// caller decides which credential each request carries.
type Service interface {
	// Login exchanges email and password for a bearer token.
	Login(ctx context.Context, email, password string) (AuthToken, error)

	// LoginGoogle exchanges a Google ID token for a bearer token.
	LoginGoogle(ctx context.Context, idToken string) (AuthToken, error)

	// Register creates a new account and returns its profile.
	Register(ctx context.Context, email, password string) (User, error)

	// Me returns the profile of the user owning token.
	Me(ctx context.Context, token string) (User, error)

	// UpdateProfile changes the given profile fields and returns the result.
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (User, error)

	// ListTasks returns a page of tasks in server order.
	ListTasks(ctx context.Context, token string, skip, limit int) ([]Task, error)

	// CreateTask creates a task and returns it with its server-assigned ID.
	CreateTask(ctx context.Context, token string, task NewTask) (Task, error)

	// UpdateTask changes the given fields of a task and returns the result.
	UpdateTask(ctx context.Context, token string, id int, update TaskUpdate) (Task, error)

	// DeleteTask deletes a task and returns its last representation.
	DeleteTask(ctx context.Context, token string, id int) (Task, error)
}
