package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"inkwell/internal/storage"
	"inkwell/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// PasswordCost is the bcrypt cost for new hashes. Tests lower it.
var PasswordCost = bcrypt.DefaultCost

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy burns one bcrypt comparison so unknown usernames cost the same as wrong passwords.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("inkwell-unknown-user"), PasswordCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

// UserService owns accounts and their profiles.
type UserService struct {
	db      *gorm.DB
	users   repository.UserRepository
	images  repository.ImageRepository
	storage storage.ObjectStorage
}

type SignupInput struct {
	Username string
	Password string
	Name     string
}

// UpdateUserInput is a partial update; nil fields are left unchanged.
type UpdateUserInput struct {
	Username *string
	Password *string
}

func NewUserService(db *gorm.DB, store storage.ObjectStorage) *UserService {
	return &UserService{
		db:      db,
		users:   repository.NewUserRepository(db),
		images:  repository.NewImageRepository(db),
		storage: store,
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hash), nil
}

// Signup creates a user and its profile together.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)

	var issues validation.Issues
	issues.Check("username", validation.ValidateUsername(in.Username))
	issues.Check("password", validation.ValidatePassword(in.Password))
	issues.MaxLen("name", in.Name, validation.ProfileNameMax)
	if err := issues.Err("Invalid signup"); err != nil {
		return nil, err
	}
	if in.Name == "" {
		in.Name = in.Username
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: in.Username,
		Password: hash,
		Profile:  &models.Profile{Name: in.Name},
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.NewUserRepository(tx).Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, user.ID)
}

// Authenticate returns the user when password matches.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}
	if user == nil {
		compareDummy(password)
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// List returns every user. Admin only.
func (s *UserService) List(ctx context.Context, actor Actor, page repository.Page) ([]models.User, error) {
	if !actor.IsAdmin {
		return nil, models.NewUnauthorizedError("Admin access required")
	}
	return s.users.List(ctx, page.Normalize())
}

// UpdateSelf changes the actor's own username or password.
func (s *UserService) UpdateSelf(ctx context.Context, actor Actor, in UpdateUserInput) (*models.User, error) {
	var issues validation.Issues
	if in.Username != nil {
		trimmed := strings.TrimSpace(*in.Username)
		in.Username = &trimmed
		issues.Check("username", validation.ValidateUsername(trimmed))
	}
	if in.Password != nil {
		issues.Check("password", validation.ValidatePassword(*in.Password))
	}
	if err := issues.Err("Invalid user"); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Password != nil {
		if user.Password, err = hashPassword(*in.Password); err != nil {
			return nil, err
		}
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, user.ID)
}

// Delete removes a user and everything they own. Users may delete themselves; admins anyone.
func (s *UserService) Delete(ctx context.Context, actor Actor, id uint) error {
	if !CanMutate(id, actor.UserID, actor.IsAdmin) {
		return models.NewUnauthorizedError("You can only delete your own account")
	}

	var paths []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if paths, err = repository.NewImageRepository(tx).PathsByOwner(ctx, id); err != nil {
			return err
		}
		return repository.NewUserRepository(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	for _, p := range paths {
		removeObject(ctx, s.storage, p)
	}
	middleware.Logger.InfoContext(ctx, "User deleted",
		slog.Uint64("deleted_user_id", uint64(id)),
		slog.Int("objects", len(paths)),
	)
	return nil
}

// SetAdmin grants or revokes admin rights. Admins cannot demote themselves.
func (s *UserService) SetAdmin(ctx context.Context, actor Actor, id uint, isAdmin bool) (*models.User, error) {
	if !actor.IsAdmin {
		return nil, models.NewUnauthorizedError("Admin access required")
	}
	if id == actor.UserID && !isAdmin {
		return nil, models.NewValidationError("You cannot remove your own admin rights",
			models.FieldIssue{Field: "is_admin", Message: "cannot demote yourself"})
	}
	if err := s.users.SetAdmin(ctx, id, isAdmin); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, id)
}

// SetAdminByUsername is the operator path used by cmd/admin.
func (s *UserService) SetAdminByUsername(ctx context.Context, username string, isAdmin bool) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	if err := s.users.SetAdmin(ctx, user.ID, isAdmin); err != nil {
		return nil, err
	}
	user.IsAdmin = isAdmin
	return user, nil
}

// EnsureAdmin creates the named admin, or promotes an existing user of that name.
// The password of an existing user is left alone.
func (s *UserService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, bool, error) {
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if !existing.IsAdmin {
			if err := s.users.SetAdmin(ctx, existing.ID, true); err != nil {
				return nil, false, err
			}
			existing.IsAdmin = true
		}
		return existing, false, nil
	}

	user, err := s.Signup(ctx, SignupInput{Username: username, Password: password})
	if err != nil {
		return nil, false, err
	}
	if err := s.users.SetAdmin(ctx, user.ID, true); err != nil {
		return nil, false, err
	}
	user.IsAdmin = true
	return user, true, nil
}
