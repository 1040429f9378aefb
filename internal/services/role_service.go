// Package services – RoleService
//
// This file implements deployment-wide named roles. Role names are trimmed,
// case-folded and validated before they reach the store, so "Devs" and
// "devs" name the same role.
package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// RoleRepo defines the storage contract required by RoleService.
type RoleRepo interface {
	CreateRole(ctx context.Context, name string) error
	DeleteRole(ctx context.Context, name string) error
	AddRoleMember(ctx context.Context, name string, u domain.User) error
	RemoveRoleMember(ctx context.Context, name string, userID int64) error
	ListRoleMembers(ctx context.Context, name string) ([]domain.MemberRef, error)
	ListRoles(ctx context.Context) ([]domain.RoleSummary, error)
}

// MaxRoleNameRunes caps the length of a role name.
const MaxRoleNameRunes = 32

var roleNameRE = regexp.MustCompile(fmt.Sprintf(`^[\p{L}\p{N}_-]{1,%d}$`, MaxRoleNameRunes))

// NormalizeRoleName trims and case-folds raw and validates the result.
func NormalizeRoleName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrMissingArgument
	}
	// cases.Caser is stateful; one per call.
	name = cases.Fold().String(name)
	if !roleNameRE.MatchString(name) {
		return "", ErrInvalidRoleName
	}
	return name, nil
}

// RoleService provides role management on top of a RoleRepo.
type RoleService struct {
	Repo  RoleRepo
	Retry Retrier
}

// NewRoleService constructs a RoleService retrying transient storage
// failures up to maxTries attempts.
func NewRoleService(r RoleRepo, maxTries int) *RoleService {
	return &RoleService{Repo: r, Retry: NewRetrier(maxTries)}
}

func (s *RoleService) span(ctx context.Context, op, role string) (context.Context, trace.Span) {
	return otel.Tracer("services/RoleService").Start(ctx, op,
		trace.WithAttributes(attribute.String("role.name", role)),
	)
}

// Create validates raw and creates the role. It returns the normalised name
// alongside domain.ErrRoleExists when the name is taken.
func (s *RoleService) Create(ctx context.Context, raw string) (string, error) {
	name, err := NormalizeRoleName(raw)
	if err != nil {
		return "", err
	}
	ctx, span := s.span(ctx, "CreateRole", name)
	defer span.End()

	return name, retry(ctx, s.Retry, func() error {
		return s.Repo.CreateRole(ctx, name)
	})
}

// Delete removes the role; members' directory entries are kept.
func (s *RoleService) Delete(ctx context.Context, raw string) (string, error) {
	name, err := NormalizeRoleName(raw)
	if err != nil {
		return "", err
	}
	ctx, span := s.span(ctx, "DeleteRole", name)
	defer span.End()

	return name, retry(ctx, s.Retry, func() error {
		return s.Repo.DeleteRole(ctx, name)
	})
}

// AddMember assigns u to the role, recording or refreshing u in the
// user directory.
func (s *RoleService) AddMember(ctx context.Context, raw string, u domain.User) (string, error) {
	name, err := NormalizeRoleName(raw)
	if err != nil {
		return "", err
	}
	ctx, span := s.span(ctx, "AddRoleMember", name)
	defer span.End()

	u.DisplayName = strings.TrimSpace(u.DisplayName)
	return name, retry(ctx, s.Retry, func() error {
		return s.Repo.AddRoleMember(ctx, name, u)
	})
}

// RemoveMember removes userID from the role.
func (s *RoleService) RemoveMember(ctx context.Context, raw string, userID int64) (string, error) {
	name, err := NormalizeRoleName(raw)
	if err != nil {
		return "", err
	}
	ctx, span := s.span(ctx, "RemoveRoleMember", name)
	defer span.End()

	return name, retry(ctx, s.Retry, func() error {
		return s.Repo.RemoveRoleMember(ctx, name, userID)
	})
}

// Members lists the role's members in assignment order.
func (s *RoleService) Members(ctx context.Context, raw string) (string, []domain.MemberRef, error) {
	name, err := NormalizeRoleName(raw)
	if err != nil {
		return "", nil, err
	}
	ctx, span := s.span(ctx, "ListRoleMembers", name)
	defer span.End()

	members, err := retryValue(ctx, s.Retry, func() ([]domain.MemberRef, error) {
		return s.Repo.ListRoleMembers(ctx, name)
	})
	return name, members, err
}

// List returns every role ordered by name.
func (s *RoleService) List(ctx context.Context) ([]domain.RoleSummary, error) {
	ctx, span := otel.Tracer("services/RoleService").Start(ctx, "ListRoles")
	defer span.End()

	return retryValue(ctx, s.Retry, func() ([]domain.RoleSummary, error) {
		return s.Repo.ListRoles(ctx)
	})
}
