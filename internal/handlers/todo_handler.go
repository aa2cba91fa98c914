package handlers

import (
	"errors"
	"log"
	"strings"

	"etlaq/internal/repositories"
	"etlaq/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// TodoHandler handles HTTP requests for todos.
type TodoHandler struct {
	service  *services.TodoService
	validate *validator.Validate
}

// NewTodoHandler creates a new TodoHandler.
func NewTodoHandler(service *services.TodoService) *TodoHandler {
	return &TodoHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the todo routes with the Fiber app.
func (h *TodoHandler) RegisterRoutes(router fiber.Router) {
	todoRoutes := router.Group("/todos")
	todoRoutes.Get("/", h.HandleGetTodos)
	todoRoutes.Get("/:id", h.HandleGetTodoByID)
	todoRoutes.Post("/", h.HandleCreateTodo)
	todoRoutes.Put("/:id", h.HandleUpdateTodo)
	todoRoutes.Delete("/:id", h.HandleDeleteTodo)
}

// HandleGetTodos retrieves all todos, newest first.
func (h *TodoHandler) HandleGetTodos(c *fiber.Ctx) error {
	todos, err := h.service.GetAllTodos()
	if err != nil {
		log.Printf("Error getting all todos: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch todos",
		})
	}
	return c.JSON(todos)
}

// HandleGetTodoByID retrieves a single todo by its ID.
func (h *TodoHandler) HandleGetTodoByID(c *fiber.Ctx) error {
	todoID := c.Params("id")
	todo, err := h.service.GetTodoByID(todoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Todo not found",
			})
		}
		log.Printf("Error getting todo %s: %v", todoID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch todo",
		})
	}
	return c.JSON(todo)
}

// CreateTodoRequest represents the request body for todo creation.
type CreateTodoRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// HandleCreateTodo creates a new todo.
func (h *TodoHandler) HandleCreateTodo(c *fiber.Ctx) error {
	var req CreateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	todo, err := h.service.CreateTodo(req.Title)
	if err != nil {
		log.Printf("Error creating todo: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create todo",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(todo)
}

// UpdateTodoRequest represents a partial todo update. Absent fields keep
// their stored value; only title and completed are updatable.
type UpdateTodoRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=200"`
	Completed *bool   `json:"completed"`
}

// HandleUpdateTodo applies a partial update to an existing todo.
func (h *TodoHandler) HandleUpdateTodo(c *fiber.Ctx) error {
	todoID := c.Params("id")

	var req UpdateTodoRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if trimmed == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Title is required",
			})
		}
		req.Title = &trimmed
	}
	if err := h.validate.Struct(req); err != nil {
		return validationError(c, err)
	}

	todo, err := h.service.UpdateTodo(todoID, services.TodoUpdate{
		Title:     req.Title,
		Completed: req.Completed,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Todo not found",
			})
		}
		log.Printf("Error updating todo %s: %v", todoID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update todo",
		})
	}

	return c.JSON(todo)
}

// HandleDeleteTodo deletes a todo by its ID.
func (h *TodoHandler) HandleDeleteTodo(c *fiber.Ctx) error {
	todoID := c.Params("id")

	if err := h.service.DeleteTodo(todoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Todo not found",
			})
		}
		log.Printf("Error deleting todo %s: %v", todoID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete todo",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Todo deleted successfully",
	})
}
