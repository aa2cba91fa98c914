package repositories

import (
	"errors"
	"fmt"

	"etlaq/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GORMTodoRepository is a GORM implementation of TodoRepository.
type GORMTodoRepository struct {
	db *gorm.DB
}

// NewGORMTodoRepository creates a new instance of GORMTodoRepository.
func NewGORMTodoRepository(db *gorm.DB) *GORMTodoRepository {
	return &GORMTodoRepository{
		db: db,
	}
}

// GetAll retrieves all todos ordered newest first.
func (r *GORMTodoRepository) GetAll() ([]models.Todo, error) {
	var todos []models.Todo
	if err := r.db.Order("created_at DESC").Find(&todos).Error; err != nil {
		return nil, fmt.Errorf("failed to get all todos: %w", err)
	}
	return todos, nil
}

// GetByID retrieves a single todo by its ID.
func (r *GORMTodoRepository) GetByID(id string) (*models.Todo, error) {
	var todo models.Todo
	if err := r.db.First(&todo, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("todo with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get todo by ID %s: %w", id, err)
	}
	return &todo, nil
}

// Create creates a new todo in the database.
func (r *GORMTodoRepository) Create(todo *models.Todo) error {
	if todo.ID == "" {
		todo.ID = uuid.New().String()
	}
	if err := r.db.Create(todo).Error; err != nil {
		return fmt.Errorf("failed to create todo: %w", err)
	}
	return nil
}

// Update updates an existing todo.
func (r *GORMTodoRepository) Update(todo *models.Todo) error {
	res := r.db.Save(todo) // Save updates all fields, including zero values
	if res.Error != nil {
		return fmt.Errorf("failed to update todo: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("todo with ID %s: %w", todo.ID, ErrNotFound)
	}
	return nil
}

// Delete deletes a todo by its ID.
func (r *GORMTodoRepository) Delete(id string) error {
	res := r.db.Delete(&models.Todo{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete todo: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("todo with ID %s: %w", id, ErrNotFound)
	}
	return nil
}
