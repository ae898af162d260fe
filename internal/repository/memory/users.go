package memory

import (
	"fmt"
	"sort"

	"go-pos-ws/internal/model"
	"go-pos-ws/internal/repository"

	"github.com/google/uuid"
)

type userStore struct{ s *Store }

// withRole attaches the role row the way a gorm Preload("Role") would.
func (r userStore) withRole(u model.User) model.User {
	u.Role = nil
	if u.RoleID != nil {
		for i := range r.s.roles {
			if r.s.roles[i].ID == *u.RoleID {
				role := r.s.roles[i]
				u.Role = &role
				break
			}
		}
	}
	privileges := make([]model.Privilege, len(u.Privileges))
	copy(privileges, u.Privileges)
	u.Privileges = privileges
	return u
}

func (r userStore) FindByEmail(email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			u = r.withRole(u)
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r userStore) FindByID(id uuid.UUID) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u = r.withRole(u)
	return &u, nil
}

func (r userStore) FindAll() ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, r.withRole(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].FullName < users[j].FullName })
	return users, nil
}

func (r userStore) Create(user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return fmt.Errorf("user %s already exists", user.Email)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := r.s.now()
	user.CreatedAt, user.UpdatedAt = now, now
	stored := *user
	stored.Role = nil
	r.s.users[user.ID] = stored
	return nil
}

func (r userStore) Update(user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.users[user.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored := *user
	stored.Role = nil
	stored.Privileges = existing.Privileges
	stored.UpdatedAt = r.s.now()
	r.s.users[user.ID] = stored
	return nil
}

func (r userStore) UpdatePassword(userID uuid.UUID, hashedPassword string) error {
	return r.patch(userID, func(u *model.User) { u.Password = hashedPassword })
}

func (r userStore) UpdateTokenVersion(userID uuid.UUID, version string) error {
	return r.patch(userID, func(u *model.User) { u.TokenVersion = version })
}

func (r userStore) UpdatePrivileges(userID uuid.UUID, privileges []model.Privilege) error {
	return r.patch(userID, func(u *model.User) {
		u.Privileges = append([]model.Privilege(nil), privileges...)
	})
}

func (r userStore) Delete(id uuid.UUID, deletedBy string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

func (r userStore) patch(id uuid.UUID, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

type roleStore struct{ s *Store }

func (r roleStore) FindAll() ([]model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	roles := make([]model.Role, len(r.s.roles))
	copy(roles, r.s.roles)
	return roles, nil
}

func (r roleStore) FindByID(id uint) (*model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.ID == id {
			role.Privileges = append([]model.Privilege(nil), role.Privileges...)
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r roleStore) FindByCode(code string) (*model.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, role := range r.s.roles {
		if role.Code == code {
			return &role, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r roleStore) SeedDefaults() error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
next:
	for _, def := range model.DefaultRoles {
		for _, existing := range r.s.roles {
			if existing.Code == def.Code {
				continue next
			}
		}
		def.ID = uint(len(r.s.roles) + 1)
		r.s.roles = append(r.s.roles, def)
	}
	return nil
}

func (r roleStore) AssignPrivileges(role *model.Role, privileges []model.Privilege) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.roles {
		if r.s.roles[i].ID == role.ID {
			r.s.roles[i].Privileges = append([]model.Privilege(nil), privileges...)
			role.Privileges = r.s.roles[i].Privileges
			return nil
		}
	}
	return repository.ErrNotFound
}

type privilegeStore struct{ s *Store }

func (r privilegeStore) FindByCodes(codes []string) ([]model.Privilege, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []model.Privilege
	for _, p := range r.s.privileges {
		for _, code := range codes {
			if p.Code == code {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (r privilegeStore) FindAll() ([]model.Privilege, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]model.Privilege(nil), r.s.privileges...), nil
}

func (r privilegeStore) SeedDefaults() error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
next:
	for _, def := range model.DefaultPrivileges {
		for _, existing := range r.s.privileges {
			if existing.Code == def.Code {
				continue next
			}
		}
		def.ID = uint(len(r.s.privileges) + 1)
		r.s.privileges = append(r.s.privileges, def)
	}
	return nil
}
