package repositories

import "etlaq/internal/models"

// TodoRepository defines the interface for todo data access.
type TodoRepository interface {
	GetAll() ([]models.Todo, error)
	GetByID(id string) (*models.Todo, error)
	Create(todo *models.Todo) error
	Update(todo *models.Todo) error
	Delete(id string) error
}
