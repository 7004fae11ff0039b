// Package model contains domain models passed between layers.
package model

import "time"

// Project is a research project as served by /api/research/projects.
// Field names mirror the portal's JSON schema.
type Project struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	OwnerID     string    `json:"ownerId,omitempty"`
	Members     []string  `json:"members,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Completed   bool       `json:"completed"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt,omitzero"`
	UpdatedAt   time.Time  `json:"updatedAt,omitzero"`
}

// Document is an uploaded file attached to a project.
type Document struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	Name        string    `json:"name"`
	Size        int64     `json:"size,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	UploadedBy  string    `json:"uploadedBy,omitempty"`
	UploadedAt  time.Time `json:"uploadedAt,omitzero"`
	URL         string    `json:"url,omitempty"`
}

// User is the authenticated portal account.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	Verified  bool   `json:"verified,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
