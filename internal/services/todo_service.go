package services

import (
	"log"
	"strings"

	"etlaq/internal/models"
	"etlaq/internal/repositories"
)

// EventPublisher publishes todo lifecycle events. A nil publisher disables
// event publishing entirely.
type EventPublisher interface {
	PublishTodoEvent(action string, todo *models.Todo) error
}

// TodoUpdate is a partial update; nil fields are left untouched.
type TodoUpdate struct {
	Title     *string
	Completed *bool
}

// TodoService handles business logic related to todos.
type TodoService struct {
	repo      repositories.TodoRepository
	publisher EventPublisher
}

// NewTodoService creates a new TodoService. publisher may be nil.
func NewTodoService(repo repositories.TodoRepository, publisher EventPublisher) *TodoService {
	return &TodoService{
		repo:      repo,
		publisher: publisher,
	}
}

// GetAllTodos retrieves all todos, newest first.
func (s *TodoService) GetAllTodos() ([]models.Todo, error) {
	return s.repo.GetAll()
}

// GetTodoByID retrieves a single todo by its ID.
func (s *TodoService) GetTodoByID(id string) (*models.Todo, error) {
	return s.repo.GetByID(id)
}

// CreateTodo creates a new todo with a trimmed title and completed=false.
func (s *TodoService) CreateTodo(title string) (*models.Todo, error) {
	todo := &models.Todo{
		Title:     strings.TrimSpace(title),
		Completed: false,
	}
	if err := s.repo.Create(todo); err != nil {
		return nil, err
	}
	s.publish("created", todo)
	return todo, nil
}

// UpdateTodo applies a partial update to an existing todo. Only title and
// completed are updatable.
func (s *TodoService) UpdateTodo(id string, update TodoUpdate) (*models.Todo, error) {
	todo, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		todo.Title = strings.TrimSpace(*update.Title)
	}
	if update.Completed != nil {
		todo.Completed = *update.Completed
	}

	if err := s.repo.Update(todo); err != nil {
		return nil, err
	}
	s.publish("updated", todo)
	return todo, nil
}

// DeleteTodo deletes a todo by its ID.
func (s *TodoService) DeleteTodo(id string) error {
	todo, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return err
	}
	s.publish("deleted", todo)
	return nil
}

// publish sends a lifecycle event when a publisher is configured. Publish
// failures are logged and never fail the request.
func (s *TodoService) publish(action string, todo *models.Todo) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTodoEvent(action, todo); err != nil {
		log.Printf("Failed to publish todo %s event for %s: %v", action, todo.ID, err)
	}
}
