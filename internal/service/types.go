// Package service defines the backend-agnostic interface for the todo API.
package service

// Location is a geographic position attached to a user profile.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// User is the authenticated user's profile.
type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	ProfilePicture string    `json:"profile_picture,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Address        string    `json:"address,omitempty"`
	DocumentID     string    `json:"document_id,omitempty"`
	Location       *Location `json:"location,omitempty"`
}

// ProfileUpdate holds the profile fields to change. Nil fields are left
// untouched on the server.
type ProfileUpdate struct {
	Name           *string   `json:"name,omitempty"`
	ProfilePicture *string   `json:"profile_picture,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	Address        *string   `json:"address,omitempty"`
	DocumentID     *string   `json:"document_id,omitempty"`
	Location       *Location `json:"location,omitempty"`
}

// Empty reports whether the update changes nothing.
func (p ProfileUpdate) Empty() bool {
	return p.Name == nil && p.ProfilePicture == nil && p.Phone == nil &&
		p.Address == nil && p.DocumentID == nil && p.Location == nil
}

// Task represents a single task item.
type Task struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
}

// NewTask is the payload for creating a task. The server assigns the ID.
type NewTask struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// TaskUpdate holds the task fields to change. Nil fields are left untouched.
type TaskUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Apply returns t with the non-nil fields of u applied.
func (u TaskUpdate) Apply(t Task) Task {
	if u.Title != nil {
		t.Title = *u.Title
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Completed != nil {
		t.Completed = *u.Completed
	}
	return t
}

// AuthToken is the credential issued by the login endpoints.
type AuthToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
}
