package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
)

// ProjectRequest carries the writable fields of a project.
type ProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
}

// TaskRequest carries the writable fields of a new task.
type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
}

// TaskPatch is a partial task update. Nil fields are left untouched by
// the server.
type TaskPatch struct {
	Title     *string `json:"title,omitempty"`
	Completed *bool   `json:"completed,omitempty"`
}

// ListProjects returns the caller's research projects.
func (c *Client) ListProjects(ctx context.Context) ([]model.Project, error) {
	var projects []model.Project
	if err := c.getJSON(ctx, "/api/research/projects", "/api/research/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject returns a single project by ID.
func (c *Client) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	var project model.Project
	err := c.getJSON(ctx,
		"/api/research/projects/"+url.PathEscape(projectID),
		"/api/research/projects/:id",
		&project,
	)
	return project, err
}

// CreateProject creates a research project.
func (c *Client) CreateProject(ctx context.Context, req ProjectRequest) (model.Project, error) {
	var project model.Project
	err := c.doJSON(ctx, http.MethodPost,
		"/api/research/projects",
		"/api/research/projects",
		req, &project,
	)
	return project, err
}

// UpdateProject replaces the writable fields of a project.
func (c *Client) UpdateProject(ctx context.Context, projectID string, req ProjectRequest) (model.Project, error) {
	var project model.Project
	err := c.doJSON(ctx, http.MethodPut,
		"/api/research/projects/"+url.PathEscape(projectID),
		"/api/research/projects/:id",
		req, &project,
	)
	return project, err
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID string) error {
	return c.doJSON(ctx, http.MethodDelete,
		"/api/research/projects/"+url.PathEscape(projectID),
		"/api/research/projects/:id",
		nil, nil,
	)
}

// ListTasks returns the tasks of a project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]model.Task, error) {
	var tasks []model.Task
	err := c.getJSON(ctx,
		"/api/research/projects/"+url.PathEscape(projectID)+"/tasks",
		"/api/research/projects/:id/tasks",
		&tasks,
	)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask adds a task to a project.
func (c *Client) CreateTask(ctx context.Context, projectID string, req TaskRequest) (model.Task, error) {
	var task model.Task
	err := c.doJSON(ctx, http.MethodPost,
		"/api/research/projects/"+url.PathEscape(projectID)+"/tasks",
		"/api/research/projects/:id/tasks",
		req, &task,
	)
	return task, err
}

// UpdateTask applies a partial update, typically the completion toggle.
func (c *Client) UpdateTask(ctx context.Context, taskID string, patch TaskPatch) (model.Task, error) {
	var task model.Task
	err := c.doJSON(ctx, http.MethodPatch,
		"/api/research/tasks/"+url.PathEscape(taskID),
		"/api/research/tasks/:id",
		patch, &task,
	)
	return task, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.doJSON(ctx, http.MethodDelete,
		"/api/research/tasks/"+url.PathEscape(taskID),
		"/api/research/tasks/:id",
		nil, nil,
	)
}

// ListDocuments returns the documents attached to a project.
func (c *Client) ListDocuments(ctx context.Context, projectID string) ([]model.Document, error) {
	var docs []model.Document
	err := c.getJSON(ctx,
		"/api/research/projects/"+url.PathEscape(projectID)+"/documents",
		"/api/research/projects/:id/documents",
		&docs,
	)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UploadDocument uploads a file to a project as multipart/form-data.
func (c *Client) UploadDocument(ctx context.Context, projectID, filename string, contents io.Reader) (model.Document, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return model.Document{}, fmt.Errorf("build multipart form: %w", err)
	}
	if _, err := io.Copy(part, contents); err != nil {
		return model.Document{}, fmt.Errorf("read upload contents: %w", err)
	}
	if err := mw.Close(); err != nil {
		return model.Document{}, fmt.Errorf("finalize multipart form: %w", err)
	}

	path := "/api/research/projects/" + url.PathEscape(projectID) + "/documents"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return model.Document{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var doc model.Document
	if err := c.do(req, "/api/research/projects/:id/documents", &doc); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}
