// Package workspace holds the client-side view of the research portal.
//
// It caches the project list and the currently selected project's tasks
// and documents, keeps them in step with live updates, and performs the
// portal mutations. Every mutation publishes a notification and emits an
// xAPI statement for the activity stream.
//
// Select is guarded by an epoch counter: switching projects bumps the
// epoch and any load still in flight for the previous selection is
// discarded when it lands, so a slow response can never clobber the
// newer selection.
package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/rest"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/statement"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/types"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/logger"
	"github.com/xiangenhu/polyuhulab-sub001/pkg/metrics"
)

// Portal is the slice of the REST client the workspace depends on.
type Portal interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, projectID string) (model.Project, error)
	CreateProject(ctx context.Context, req rest.ProjectRequest) (model.Project, error)
	UpdateProject(ctx context.Context, projectID string, req rest.ProjectRequest) (model.Project, error)
	DeleteProject(ctx context.Context, projectID string) error
	ListTasks(ctx context.Context, projectID string) ([]model.Task, error)
	CreateTask(ctx context.Context, projectID string, req rest.TaskRequest) (model.Task, error)
	UpdateTask(ctx context.Context, taskID string, patch rest.TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, taskID string) error
	ListDocuments(ctx context.Context, projectID string) ([]model.Document, error)
	UploadDocument(ctx context.Context, projectID, filename string, contents io.Reader) (model.Document, error)
}

// Tracker records xAPI statements for workspace activity.
type Tracker interface {
	Track(ctx context.Context, s statement.Statement) error
}

// Notifier publishes user-facing notices.
type Notifier interface {
	Publish(ctx context.Context, level types.Level, text string)
}

// Identity exposes who is acting, for statement actors.
type Identity interface {
	CurrentUser() (model.User, bool)
}

// Manager is the cached portal workspace.
type Manager struct {
	portal   Portal
	tracker  Tracker
	notifier Notifier
	identity Identity

	mu        sync.RWMutex
	projects  []model.Project
	loaded    bool
	selected  *model.Project
	tasks     []model.Task
	documents []model.Document
	epoch     uint64

	// Logging
	logger logger.Logger
}

// NewManager creates a workspace over the given portal client.
func NewManager(portal Portal, opts ...Option) *Manager {
	m := &Manager{
		portal: portal,
		logger: logger.Get().Named("workspace"), // will be updated by options
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Projects returns the project list, fetching it on first use or when
// refresh is set.
func (m *Manager) Projects(ctx context.Context, refresh bool) ([]model.Project, error) {
	m.mu.RLock()
	loaded := m.loaded
	cached := copyProjects(m.projects)
	m.mu.RUnlock()

	if loaded && !refresh {
		return cached, nil
	}

	list, err := m.portal.ListProjects(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "list_projects_error")
		return nil, fmt.Errorf("list projects: %w", err)
	}

	m.mu.Lock()
	m.projects = list
	m.loaded = true
	out := copyProjects(m.projects)
	m.mu.Unlock()
	return out, nil
}

// Select makes projectID the active project and loads its detail, tasks
// and documents. A Select superseded by a newer one returns
// ErrSelectionSuperseded and leaves the cache alone.
func (m *Manager) Select(ctx context.Context, projectID string) (model.Project, error) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	m.selected = nil
	m.tasks = nil
	m.documents = nil
	m.mu.Unlock()

	project, err := m.portal.GetProject(ctx, projectID)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "select_error")
		return model.Project{}, fmt.Errorf("load project %s: %w", projectID, err)
	}
	tasks, err := m.portal.ListTasks(ctx, projectID)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "select_error")
		return model.Project{}, fmt.Errorf("load tasks for %s: %w", projectID, err)
	}
	documents, err := m.portal.ListDocuments(ctx, projectID)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "select_error")
		return model.Project{}, fmt.Errorf("load documents for %s: %w", projectID, err)
	}

	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Debug(ctx, "discarding superseded project load",
			logger.String("project_id", projectID))
		return model.Project{}, ErrSelectionSuperseded
	}
	m.selected = &project
	m.tasks = tasks
	m.documents = documents
	m.mu.Unlock()

	m.track(ctx, statement.Experienced, "project", project.ID, project.Title)
	return project, nil
}

// Selected returns the active project, if any.
func (m *Manager) Selected() (model.Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.selected == nil {
		return model.Project{}, false
	}
	return *m.selected, true
}

// Tasks returns the active project's cached tasks.
func (m *Manager) Tasks() []model.Task {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}

// Documents returns the active project's cached documents.
func (m *Manager) Documents() []model.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Document, len(m.documents))
	copy(out, m.documents)
	return out
}

// Search filters the cached project list by a case-insensitive match on
// title and description.
func (m *Manager) Search(ctx context.Context, query string) ([]model.Project, error) {
	projects, err := m.Projects(ctx, false)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return projects, nil
	}

	var hits []model.Project
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Title), needle) ||
			strings.Contains(strings.ToLower(p.Description), needle) {
			hits = append(hits, p)
		}
	}

	m.track(ctx, statement.Searched, "search", url.PathEscape(needle), query)
	return hits, nil
}

// CreateProject creates a project and adds it to the cache.
func (m *Manager) CreateProject(ctx context.Context, req rest.ProjectRequest) (model.Project, error) {
	project, err := m.portal.CreateProject(ctx, req)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "create_project_error")
		m.notify(ctx, types.LevelError, "Could not create project")
		return model.Project{}, fmt.Errorf("create project: %w", err)
	}

	m.mu.Lock()
	m.projects = append(m.projects, project)
	m.mu.Unlock()

	m.notify(ctx, types.LevelSuccess, fmt.Sprintf("Project %q created", project.Title))
	m.track(ctx, statement.Created, "project", project.ID, project.Title)
	return project, nil
}

// UpdateProject updates a project on the portal and in the cache.
func (m *Manager) UpdateProject(ctx context.Context, projectID string, req rest.ProjectRequest) (model.Project, error) {
	project, err := m.portal.UpdateProject(ctx, projectID, req)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "update_project_error")
		m.notify(ctx, types.LevelError, "Could not update project")
		return model.Project{}, fmt.Errorf("update project %s: %w", projectID, err)
	}

	m.mu.Lock()
	m.upsertProjectLocked(project)
	m.mu.Unlock()

	m.notify(ctx, types.LevelSuccess, fmt.Sprintf("Project %q updated", project.Title))
	m.track(ctx, statement.Updated, "project", project.ID, project.Title)
	return project, nil
}

// DeleteProject removes a project. Deleting the active project clears
// the selection.
func (m *Manager) DeleteProject(ctx context.Context, projectID string) error {
	if err := m.portal.DeleteProject(ctx, projectID); err != nil {
		metrics.RecordErrorByComponent("workspace", "delete_project_error")
		m.notify(ctx, types.LevelError, "Could not delete project")
		return fmt.Errorf("delete project %s: %w", projectID, err)
	}

	m.mu.Lock()
	for i := range m.projects {
		if m.projects[i].ID == projectID {
			m.projects = append(m.projects[:i], m.projects[i+1:]...)
			break
		}
	}
	if m.selected != nil && m.selected.ID == projectID {
		// Invalidate loads still in flight for the dead selection.
		m.epoch++
		m.selected = nil
		m.tasks = nil
		m.documents = nil
	}
	m.mu.Unlock()

	m.notify(ctx, types.LevelSuccess, "Project deleted")
	m.track(ctx, statement.Deleted, "project", projectID, "")
	return nil
}

// AddTask creates a task in the active project.
func (m *Manager) AddTask(ctx context.Context, req rest.TaskRequest) (model.Task, error) {
	selected, ok := m.Selected()
	if !ok {
		return model.Task{}, ErrNoSelection
	}

	task, err := m.portal.CreateTask(ctx, selected.ID, req)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "create_task_error")
		m.notify(ctx, types.LevelError, "Could not add task")
		return model.Task{}, fmt.Errorf("create task: %w", err)
	}

	m.mu.Lock()
	if m.selected != nil && m.selected.ID == task.ProjectID {
		m.tasks = append(m.tasks, task)
	}
	m.mu.Unlock()

	m.notify(ctx, types.LevelSuccess, fmt.Sprintf("Task %q added", task.Title))
	m.track(ctx, statement.Created, "task", task.ID, task.Title)
	return task, nil
}

// ToggleTask flips a task's completion optimistically: the cache changes
// first, the portal is told second, and a failure puts the old state
// back so the view never lies for long.
func (m *Manager) ToggleTask(ctx context.Context, taskID string) (model.Task, error) {
	m.mu.Lock()
	idx := -1
	for i := range m.tasks {
		if m.tasks[i].ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		m.mu.Unlock()
		return model.Task{}, ErrTaskNotFound
	}
	previous := m.tasks[idx].Completed
	target := !previous
	m.tasks[idx].Completed = target
	title := m.tasks[idx].Title
	m.mu.Unlock()

	updated, err := m.portal.UpdateTask(ctx, taskID, rest.TaskPatch{Completed: &target})
	if err != nil {
		m.mu.Lock()
		for i := range m.tasks {
			if m.tasks[i].ID == taskID {
				m.tasks[i].Completed = previous
				break
			}
		}
		m.mu.Unlock()

		metrics.RecordErrorByComponent("workspace", "toggle_task_error")
		m.notify(ctx, types.LevelError, fmt.Sprintf("Could not update task %q, change reverted", title))
		return model.Task{}, fmt.Errorf("toggle task %s: %w", taskID, err)
	}

	m.mu.Lock()
	m.upsertTaskLocked(updated)
	m.mu.Unlock()

	if updated.Completed {
		m.notify(ctx, types.LevelSuccess, fmt.Sprintf("Task %q completed", updated.Title))
		m.track(ctx, statement.Completed, "task", updated.ID, updated.Title)
	} else {
		m.notify(ctx, types.LevelInfo, fmt.Sprintf("Task %q reopened", updated.Title))
		m.track(ctx, statement.Updated, "task", updated.ID, updated.Title)
	}
	return updated, nil
}

// RemoveTask deletes a task from the portal and the cache.
func (m *Manager) RemoveTask(ctx context.Context, taskID string) error {
	if err := m.portal.DeleteTask(ctx, taskID); err != nil {
		metrics.RecordErrorByComponent("workspace", "delete_task_error")
		m.notify(ctx, types.LevelError, "Could not delete task")
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}

	m.mu.Lock()
	for i := range m.tasks {
		if m.tasks[i].ID == taskID {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.notify(ctx, types.LevelSuccess, "Task deleted")
	m.track(ctx, statement.Deleted, "task", taskID, "")
	return nil
}

// UploadDocument sends a file to the active project.
func (m *Manager) UploadDocument(ctx context.Context, filename string, contents io.Reader) (model.Document, error) {
	selected, ok := m.Selected()
	if !ok {
		return model.Document{}, ErrNoSelection
	}

	doc, err := m.portal.UploadDocument(ctx, selected.ID, filename, contents)
	if err != nil {
		metrics.RecordErrorByComponent("workspace", "upload_error")
		m.notify(ctx, types.LevelError, fmt.Sprintf("Upload of %q failed", filepath.Base(filename)))
		return model.Document{}, fmt.Errorf("upload document: %w", err)
	}

	m.mu.Lock()
	if m.selected != nil && m.selected.ID == doc.ProjectID {
		m.upsertDocumentLocked(doc)
	}
	m.mu.Unlock()

	m.notify(ctx, types.LevelSuccess, fmt.Sprintf("Document %q uploaded", doc.Name))
	m.track(ctx, statement.Uploaded, "document", doc.ID, doc.Name)
	return doc, nil
}

// Apply folds one live update message into the cache. The app feeds it
// from the WebSocket subscription.
func (m *Manager) Apply(ctx context.Context, msg types.Message) {
	switch msg.Type {
	case types.EventProjectUpdate:
		var project model.Project
		if err := json.Unmarshal(msg.Payload, &project); err != nil {
			m.logger.Warn(ctx, "dropping malformed project update", logger.Error(err))
			return
		}
		m.mu.Lock()
		m.upsertProjectLocked(project)
		m.mu.Unlock()

	case types.EventTaskUpdate:
		var task model.Task
		if err := json.Unmarshal(msg.Payload, &task); err != nil {
			m.logger.Warn(ctx, "dropping malformed task update", logger.Error(err))
			return
		}
		m.mu.Lock()
		if m.selected != nil && m.selected.ID == task.ProjectID {
			m.upsertTaskLocked(task)
		}
		m.mu.Unlock()

	case types.EventDocumentUpload:
		var doc model.Document
		if err := json.Unmarshal(msg.Payload, &doc); err != nil {
			m.logger.Warn(ctx, "dropping malformed document update", logger.Error(err))
			return
		}
		m.mu.Lock()
		fresh := false
		if m.selected != nil && m.selected.ID == doc.ProjectID {
			fresh = m.upsertDocumentLocked(doc)
		}
		m.mu.Unlock()
		if fresh {
			m.notify(ctx, types.LevelInfo, fmt.Sprintf("New document %q in project", doc.Name))
		}

	case types.EventCollaboration:
		var update struct {
			UserName string `json:"userName"`
			Action   string `json:"action"`
		}
		if err := json.Unmarshal(msg.Payload, &update); err != nil || update.UserName == "" {
			return
		}
		text := fmt.Sprintf("%s is active", update.UserName)
		if update.Action != "" {
			text = fmt.Sprintf("%s %s", update.UserName, update.Action)
		}
		m.notify(ctx, types.LevelInfo, text)

	case types.EventHeartbeat:
		// Connection liveness only.
	}
}

// upsertProjectLocked replaces or appends a project in the cached list
// and refreshes the selection if it is the same project. Callers must
// hold m.mu.
func (m *Manager) upsertProjectLocked(project model.Project) {
	found := false
	for i := range m.projects {
		if m.projects[i].ID == project.ID {
			m.projects[i] = project
			found = true
			break
		}
	}
	if !found && m.loaded {
		m.projects = append(m.projects, project)
	}
	if m.selected != nil && m.selected.ID == project.ID {
		m.selected = &project
	}
}

// upsertTaskLocked replaces or appends a task. Callers must hold m.mu.
func (m *Manager) upsertTaskLocked(task model.Task) {
	for i := range m.tasks {
		if m.tasks[i].ID == task.ID {
			m.tasks[i] = task
			return
		}
	}
	m.tasks = append(m.tasks, task)
}

// upsertDocumentLocked replaces or appends a document, reporting whether
// it was new. Callers must hold m.mu.
func (m *Manager) upsertDocumentLocked(doc model.Document) bool {
	for i := range m.documents {
		if m.documents[i].ID == doc.ID {
			m.documents[i] = doc
			return false
		}
	}
	m.documents = append(m.documents, doc)
	return true
}

// notify publishes a notice when a notifier is wired.
func (m *Manager) notify(ctx context.Context, level types.Level, text string) {
	if m.notifier == nil {
		return
	}
	m.notifier.Publish(ctx, level, text)
}

// track emits one activity statement. Tracking is best-effort: an
// anonymous session or a full tracker never fails the action itself.
func (m *Manager) track(ctx context.Context, verb statement.Verb, kind, id, name string) {
	if m.tracker == nil || m.identity == nil {
		return
	}
	user, ok := m.identity.CurrentUser()
	if !ok {
		return
	}

	s := statement.New(
		statement.AgentMbox(user.Name, user.Email),
		verb,
		statement.Activity(statement.ActivityIRI(kind, id), name, kind),
	)
	if err := m.tracker.Track(ctx, s); err != nil {
		m.logger.Debug(ctx, "statement not tracked",
			logger.String("verb", verb.ID),
			logger.Error(err),
		)
	}
}

func copyProjects(in []model.Project) []model.Project {
	out := make([]model.Project, len(in))
	copy(out, in)
	return out
}
