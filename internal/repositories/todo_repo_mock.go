package repositories

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"etlaq/internal/models"

	"github.com/google/uuid"
)

// MockTodoRepository is an in-memory implementation of TodoRepository.
type MockTodoRepository struct {
	todos map[string]models.Todo
	mu    sync.RWMutex
}

// NewMockTodoRepository creates a new instance of MockTodoRepository.
func NewMockTodoRepository() *MockTodoRepository {
	return &MockTodoRepository{
		todos: make(map[string]models.Todo),
	}
}

// GetAll returns all todos ordered newest first.
func (r *MockTodoRepository) GetAll() ([]models.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todoList := make([]models.Todo, 0, len(r.todos))
	for _, t := range r.todos {
		todoList = append(todoList, t)
	}
	sort.Slice(todoList, func(i, j int) bool {
		return todoList[i].CreatedAt.After(todoList[j].CreatedAt)
	})
	return todoList, nil
}

// GetByID returns a todo by its ID.
func (r *MockTodoRepository) GetByID(id string) (*models.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	todo, ok := r.todos[id]
	if !ok {
		return nil, fmt.Errorf("todo with ID %s: %w", id, ErrNotFound)
	}
	return &todo, nil
}

// Create adds a new todo.
func (r *MockTodoRepository) Create(todo *models.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	now := time.Now()
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = now
	r.todos[todo.ID] = *todo
	return nil
}

// Update modifies an existing todo.
func (r *MockTodoRepository) Update(todo *models.Todo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.todos[todo.ID]
	if !ok {
		return fmt.Errorf("todo with ID %s: %w", todo.ID, ErrNotFound)
	}
	todo.UpdatedAt = time.Now()
	r.todos[todo.ID] = *todo
	return nil
}

// Delete removes a todo by its ID.
func (r *MockTodoRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.todos[id]
	if !ok {
		return fmt.Errorf("todo with ID %s: %w", id, ErrNotFound)
	}
	delete(r.todos, id)
	return nil
}
