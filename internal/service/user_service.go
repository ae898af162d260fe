package service

import (
	"strings"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"
	"go-pos-ws/pkg/validator"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrEmailExists          = errors.Wrap(ErrInvalidArgument, "email already exists")
	ErrCannotDeleteSelf     = errors.Wrap(ErrInvalidArgument, "cannot delete your own account")
	ErrCannotDeactivateSelf = errors.Wrap(ErrInvalidArgument, "cannot deactivate your own account")
	ErrRoleNotFound         = errors.Wrap(ErrInvalidArgument, "role not found")
)

type UserService interface {
	CreateUser(op model.Operator, req CreateUserRequest) (*model.User, error)
	UpdateUser(op model.Operator, userID uuid.UUID, req UpdateUserRequest) (*model.User, error)
	ResetPassword(op model.Operator, userID uuid.UUID, req ResetPasswordRequest) error
	DeleteUser(op model.Operator, userID uuid.UUID) error
	UpdateUserPrivileges(op model.Operator, userID uuid.UUID, privilegeCodes []string) (*model.User, error)
	GetAllUsers() ([]model.UserResponse, error)
	GetUserByID(id uuid.UUID) (*model.UserResponse, error)
}

type CreateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required,max=255"`
	RoleID   uint   `json:"role_id" validate:"required"`
}

type UpdateUserRequest struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=6"` // Optional
	FullName string  `json:"full_name" validate:"required,max=255"`
	RoleID   uint    `json:"role_id" validate:"required"`
	IsActive *bool   `json:"is_active"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=6"`
}

type PrivilegesRequest struct {
	Privileges []string `json:"privileges" validate:"required,dive,required"`
}

type userService struct {
	userRepo      repository.UserRepository
	privilegeRepo repository.PrivilegeRepository
	roleRepo      repository.RoleRepository
}

func NewUserService(userRepo repository.UserRepository, privilegeRepo repository.PrivilegeRepository, roleRepo repository.RoleRepository) UserService {
	return &userService{
		userRepo:      userRepo,
		privilegeRepo: privilegeRepo,
		roleRepo:      roleRepo,
	}
}

func (s *userService) CreateUser(op model.Operator, req CreateUserRequest) (*model.User, error) {
	// 1. Validate request
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validate(&req); err != nil {
		return nil, err
	}

	// 2. Check if email already exists
	if err := s.checkEmailFree(req.Email); err != nil {
		return nil, err
	}

	// 3. Validate role exists
	role, err := s.findRole(req.RoleID)
	if err != nil {
		return nil, err
	}

	// 4. Create user with the role's privileges
	user := &model.User{
		Email:      req.Email,
		FullName:   req.FullName,
		RoleID:     &role.ID,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	user.CreatedBy = op.ID.String()
	user.UpdatedBy = op.ID.String()
	if err := user.SetPassword(req.Password); err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, storeFailure("create user", err)
	}

	zap.L().Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", role.Code),
		zap.String("operator", op.Name))
	return s.reload(user.ID)
}

// UpdateUser rewrites profile fields and resets privileges to the role's set.
// A new password, a deactivation or a changed privilege set ends the user's
// current session, since tokens carry the privileges they were issued with.
func (s *userService) UpdateUser(op model.Operator, userID uuid.UUID, req UpdateUserRequest) (*model.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validate(&req); err != nil {
		return nil, err
	}

	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}
	if req.Email != user.Email {
		if err := s.checkEmailFree(req.Email); err != nil {
			return nil, err
		}
	}
	role, err := s.findRole(req.RoleID)
	if err != nil {
		return nil, err
	}

	endSession := !samePrivileges(user.Privileges, role.Privileges)
	if req.IsActive != nil && *req.IsActive != user.IsActive {
		if !*req.IsActive && userID == op.ID {
			return nil, ErrCannotDeactivateSelf
		}
		user.IsActive = *req.IsActive
		endSession = endSession || !user.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		if err := user.SetPassword(*req.Password); err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		endSession = true
	}
	user.Email = req.Email
	user.FullName = req.FullName
	user.RoleID = &role.ID
	user.UpdatedBy = op.ID.String()

	if err := s.userRepo.Update(user); err != nil {
		return nil, storeFailure("update user", err)
	}
	if err := s.userRepo.UpdatePrivileges(userID, role.Privileges); err != nil {
		return nil, storeFailure("update user privileges", err)
	}
	if endSession {
		if err := s.rotateSession(userID); err != nil {
			return nil, err
		}
	}

	zap.L().Info("user updated",
		zap.String("user_id", userID.String()),
		zap.Bool("session_ended", endSession),
		zap.String("operator", op.Name))
	return s.reload(userID)
}

// ResetPassword sets a new password without the old one and signs the user out everywhere.
func (s *userService) ResetPassword(op model.Operator, userID uuid.UUID, req ResetPasswordRequest) error {
	if err := validate(&req); err != nil {
		return err
	}
	user, err := s.findUser(userID)
	if err != nil {
		return err
	}
	if err := user.SetPassword(req.Password); err != nil {
		return errors.Wrap(err, "hash password")
	}
	if err := s.userRepo.UpdatePassword(userID, user.Password); err != nil {
		return storeFailure("reset password", err)
	}
	if err := s.rotateSession(userID); err != nil {
		return err
	}

	zap.L().Info("password reset", zap.String("user_id", userID.String()), zap.String("operator", op.Name))
	return nil
}

func (s *userService) DeleteUser(op model.Operator, userID uuid.UUID) error {
	if userID == op.ID {
		return ErrCannotDeleteSelf
	}
	if err := s.userRepo.Delete(userID, op.ID.String()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errors.Wrapf(ErrUserNotFound, "user %s", userID)
		}
		return storeFailure("delete user", err)
	}

	zap.L().Info("user deleted", zap.String("user_id", userID.String()), zap.String("operator", op.Name))
	return nil
}

func (s *userService) UpdateUserPrivileges(op model.Operator, userID uuid.UUID, privilegeCodes []string) (*model.User, error) {
	// 1. Find user
	user, err := s.findUser(userID)
	if err != nil {
		return nil, err
	}

	// 2. Resolve every code; an unknown one rejects the whole request
	privileges, err := s.privilegeRepo.FindByCodes(privilegeCodes)
	if err != nil {
		return nil, storeFailure("find privileges", err)
	}
	known := make(map[string]bool, len(privileges))
	for _, p := range privileges {
		known[p.Code] = true
	}
	for _, code := range privilegeCodes {
		if !known[code] {
			return nil, errors.Wrapf(ErrInvalidArgument, "unknown privilege %q", code)
		}
	}

	// 3. Update privileges and the audit field
	if err := s.userRepo.UpdatePrivileges(userID, privileges); err != nil {
		return nil, storeFailure("update user privileges", err)
	}
	user.UpdatedBy = op.ID.String()
	if err := s.userRepo.Update(user); err != nil {
		return nil, storeFailure("update user", err)
	}
	if !samePrivileges(user.Privileges, privileges) {
		if err := s.rotateSession(userID); err != nil {
			return nil, err
		}
	}

	zap.L().Info("user privileges updated",
		zap.String("user_id", userID.String()),
		zap.Strings("privileges", privilegeCodes),
		zap.String("operator", op.Name))
	return s.reload(userID)
}

func (s *userService) GetAllUsers() ([]model.UserResponse, error) {
	users, err := s.userRepo.FindAll()
	if err != nil {
		return nil, storeFailure("list users", err)
	}

	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) GetUserByID(id uuid.UUID) (*model.UserResponse, error) {
	user, err := s.findUser(id)
	if err != nil {
		return nil, err
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) findUser(id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(ErrUserNotFound, "user %s", id)
	}
	if err != nil {
		return nil, storeFailure("find user", err)
	}
	return user, nil
}

func (s *userService) reload(id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, storeFailure("reload user", err)
	}
	return user, nil
}

func (s *userService) findRole(id uint) (*model.Role, error) {
	role, err := s.roleRepo.FindByID(id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.Wrapf(ErrRoleNotFound, "role %d", id)
	}
	if err != nil {
		return nil, storeFailure("find role", err)
	}
	return role, nil
}

func (s *userService) checkEmailFree(email string) error {
	_, err := s.userRepo.FindByEmail(email)
	switch {
	case err == nil:
		return ErrEmailExists
	case errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return storeFailure("check email", err)
	}
}

// rotateSession invalidates every token issued to the user.
func (s *userService) rotateSession(userID uuid.UUID) error {
	if err := s.userRepo.UpdateTokenVersion(userID, uuid.New().String()); err != nil {
		return storeFailure("rotate session", err)
	}
	return nil
}

func samePrivileges(a, b []model.Privilege) bool {
	if len(a) != len(b) {
		return false
	}
	codes := make(map[string]bool, len(a))
	for _, p := range a {
		codes[p.Code] = true
	}
	for _, p := range b {
		if !codes[p.Code] {
			return false
		}
	}
	return true
}

func validate(req interface{}) error {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return errors.Wrapf(ErrInvalidArgument, "field '%s' failed on tag '%s'", errs[0].FailedField, errs[0].Tag)
	}
	return nil
}
