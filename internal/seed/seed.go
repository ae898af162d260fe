// Package seed creates the default privileges, roles and admin operator on an
// empty store. Every step is idempotent.
package seed

import (
	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Repos struct {
	Privileges repository.PrivilegeRepository
	Roles      repository.RoleRepository
	Users      repository.UserRepository
}

func Run(r Repos, adminEmail, adminPassword string) error {
	// 1. Seed privileges first
	if err := r.Privileges.SeedDefaults(); err != nil {
		return errors.Wrap(err, "seed privileges")
	}

	// 2. Seed roles
	if err := r.Roles.SeedDefaults(); err != nil {
		return errors.Wrap(err, "seed roles")
	}

	// 3. Assign privileges to roles
	allPrivileges, err := r.Privileges.FindAll()
	if err != nil {
		return errors.Wrap(err, "load privileges")
	}
	cashierPrivileges, err := r.Privileges.FindByCodes(model.CashierPrivileges)
	if err != nil {
		return errors.Wrap(err, "load cashier privileges")
	}

	// ADMIN gets ALL privileges, including codes added since the last run
	adminRole, err := r.Roles.FindByCode(model.RoleAdmin)
	if err != nil {
		return errors.Wrap(err, "find admin role")
	}
	if len(adminRole.Privileges) < len(allPrivileges) {
		if err := r.Roles.AssignPrivileges(adminRole, allPrivileges); err != nil {
			return errors.Wrap(err, "assign admin privileges")
		}
		zap.L().Info("ADMIN role assigned all privileges")
	}

	// EMPLOYEE rings up sales only
	employeeRole, err := r.Roles.FindByCode(model.RoleEmployee)
	if err != nil {
		return errors.Wrap(err, "find employee role")
	}
	if len(employeeRole.Privileges) == 0 {
		if err := r.Roles.AssignPrivileges(employeeRole, cashierPrivileges); err != nil {
			return errors.Wrap(err, "assign employee privileges")
		}
		zap.L().Info("EMPLOYEE role assigned cashier privileges")
	}

	// 4. Create default admin user with ADMIN role
	if existing, err := r.Users.FindByEmail(adminEmail); err == nil {
		return topUpAdmin(r.Users, existing, allPrivileges)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return errors.Wrap(err, "find admin user")
	}

	admin := &model.User{
		Email:      adminEmail,
		FullName:   "Store Administrator",
		RoleID:     &adminRole.ID,
		IsActive:   true,
		Privileges: adminRole.Privileges,
	}
	admin.CreatedBy = "system"
	admin.UpdatedBy = "system"
	if err := admin.SetPassword(adminPassword); err != nil {
		return errors.Wrap(err, "hash admin password")
	}
	if err := r.Users.Create(admin); err != nil {
		return errors.Wrap(err, "create admin user")
	}
	zap.L().Info("admin user created", zap.String("email", adminEmail))
	return nil
}

// topUpAdmin grants the default admin any privilege it does not hold yet.
func topUpAdmin(users repository.UserRepository, admin *model.User, all []model.Privilege) error {
	held := make(map[string]bool, len(admin.Privileges))
	for _, p := range admin.Privileges {
		held[p.Code] = true
	}
	missing := 0
	for _, p := range all {
		if !held[p.Code] {
			missing++
		}
	}
	if missing == 0 {
		return nil
	}
	if err := users.UpdatePrivileges(admin.ID, all); err != nil {
		return errors.Wrap(err, "top up admin privileges")
	}
	zap.L().Info("admin user granted new privileges", zap.Int("added", missing))
	return nil
}
