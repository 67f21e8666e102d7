package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"filetrack-backend/internal/shared/apperr"
	"filetrack-backend/internal/shared/telemetry"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{3,50}$`)

const minPasswordLength = 6

type Service struct {
	Repo Repo
	// Cost is the bcrypt work factor; zero means bcrypt.DefaultCost.
	Cost int
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

type CreateInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	Role       string `json:"role"`
	Permission string `json:"permission"`
}

type UpdateInput struct {
	FullName   *string `json:"fullName"`
	Role       *string `json:"role"`
	Permission *string `json:"permission"`
	Active     *bool   `json:"active"`
	Password   *string `json:"password"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FullName = strings.TrimSpace(in.FullName)
	role := Role(strings.ToLower(strings.TrimSpace(in.Role)))
	if role == "" {
		role = RoleOperator
	}
	perm := Permission(strings.ToLower(strings.TrimSpace(in.Permission)))
	if perm == "" {
		perm = PermissionView
	}

	var verr apperr.ValidationError
	if !usernamePattern.MatchString(in.Username) {
		verr.Add("username", "must be 3-50 characters of letters, digits, dot, dash or underscore")
	}
	if len(in.Password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if in.FullName == "" {
		verr.Add("fullName", "is required")
	}
	if !validRole(role) {
		verr.Add("role", "must be one of admin, supervisor, operator, user")
	}
	if !validPermission(perm) {
		verr.Add("permission", "must be view or edit")
	}
	if err := verr.OrNil(); err != nil {
		return User{}, err
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	user, err := s.Repo.Create(ctx, User{
		Username:     in.Username,
		PasswordHash: hash,
		FullName:     in.FullName,
		Role:         role,
		Permission:   perm,
		Active:       true,
	})
	if err != nil {
		return User{}, err
	}
	telemetry.Info("user.created", map[string]any{"user_id": user.ID, "username": user.Username, "role": user.Role})
	return user, nil
}

func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	var patch Patch
	var verr apperr.ValidationError
	if in.FullName != nil {
		name := strings.TrimSpace(*in.FullName)
		if name == "" {
			verr.Add("fullName", "cannot be blank")
		}
		patch.FullName = &name
	}
	if in.Role != nil {
		role := Role(strings.ToLower(strings.TrimSpace(*in.Role)))
		if !validRole(role) {
			verr.Add("role", "must be one of admin, supervisor, operator, user")
		}
		patch.Role = &role
	}
	if in.Permission != nil {
		perm := Permission(strings.ToLower(strings.TrimSpace(*in.Permission)))
		if !validPermission(perm) {
			verr.Add("permission", "must be view or edit")
		}
		patch.Permission = &perm
	}
	if in.Password != nil && len(*in.Password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if id == PrimordialAdminID {
		if in.Active != nil && !*in.Active {
			return User{}, apperr.Forbidden("user %d cannot be deactivated", id)
		}
		if patch.Role != nil && *patch.Role != RoleAdmin {
			return User{}, apperr.Forbidden("user %d must remain an admin", id)
		}
	}
	if err := verr.OrNil(); err != nil {
		return User{}, err
	}
	patch.Active = in.Active
	if in.Password != nil {
		hash, err := s.hash(*in.Password)
		if err != nil {
			return User{}, err
		}
		patch.PasswordHash = &hash
	}
	return s.Repo.Update(ctx, id, patch)
}

// Delete deactivates a user. History rows keep referencing it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id == PrimordialAdminID {
		return apperr.Forbidden("user %d cannot be deleted", id)
	}
	if err := s.Repo.Deactivate(ctx, id); err != nil {
		return err
	}
	telemetry.Info("user.deactivated", map[string]any{"user_id": id})
	return nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, apperr.Invalid("id", "must be positive")
	}
	return s.Repo.GetByID(ctx, id)
}

// GetActive returns the user only when the account is active.
func (s *Service) GetActive(ctx context.Context, id int64) (User, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !user.Active {
		return User{}, apperr.NotFound("user %d", id)
	}
	return user, nil
}

func (s *Service) List(ctx context.Context, includeInactive bool) ([]User, error) {
	return s.Repo.List(ctx, includeInactive)
}

// Authenticate verifies credentials against the stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.Repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !user.Active {
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureAdmin provisions the primordial admin on an empty store.
func (s *Service) EnsureAdmin(ctx context.Context, password string) (User, bool, error) {
	n, err := s.Repo.Count(ctx)
	if err != nil {
		return User{}, false, err
	}
	if n > 0 {
		user, err := s.Repo.GetByID(ctx, PrimordialAdminID)
		return user, false, err
	}
	user, err := s.Create(ctx, CreateInput{
		Username:   "admin",
		Password:   password,
		FullName:   "System Administrator",
		Role:       string(RoleAdmin),
		Permission: string(PermissionEdit),
	})
	if err != nil {
		return User{}, false, fmt.Errorf("provision admin: %w", err)
	}
	return user, true, nil
}

func (s *Service) hash(password string) (string, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
