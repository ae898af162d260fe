package handler

import (
	"go-pos-ws/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UserHandler manages the operators who can sign in at the till.
type UserHandler struct {
	userService service.UserService
}

func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CreateUser handles user creation
// POST /api/v1/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	var req service.CreateUserRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	user, err := h.userService.CreateUser(op, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"data":    user.ToResponse(),
	})
}

// GetUsers returns all users
// GET /api/v1/users
func (h *UserHandler) GetUsers(c *fiber.Ctx) error {
	users, err := h.userService.GetAllUsers()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(users)
}

// GetUser returns a single user by ID
// GET /api/v1/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	user, err := h.userService.GetUserByID(userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// UpdateUser handles user update
// PUT /api/v1/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	var req service.UpdateUserRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	user, err := h.userService.UpdateUser(op, userID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"data":    user.ToResponse(),
	})
}

// ResetPassword sets a new password and signs the user out
// PUT /api/v1/users/:id/password
func (h *UserHandler) ResetPassword(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	var req service.ResetPasswordRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	if err := h.userService.ResetPassword(op, userID, req); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password reset successfully"})
}

// UpdateUserPrivileges handles privilege assignment
// PUT /api/v1/users/:id/privileges
func (h *UserHandler) UpdateUserPrivileges(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}
	var req service.PrivilegesRequest
	if ok, err := parseBody(c, &req); !ok {
		return err
	}

	user, err := h.userService.UpdateUserPrivileges(op, userID, req.Privileges)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Privileges updated successfully",
		"data":    user.ToResponse(),
	})
}

// DeleteUser handles user deletion
// DELETE /api/v1/users/:id
func (h *UserHandler) DeleteUser(c *fiber.Ctx) error {
	op, ok, err := currentOperator(c)
	if !ok {
		return err
	}
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid user ID"})
	}

	if err := h.userService.DeleteUser(op, userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
