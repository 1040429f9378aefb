package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// GormStore exposes the repository functions as methods bound to one
// *gorm.DB, so the services can depend on an interface rather than on GORM.
type GormStore struct {
	DB *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore { return &GormStore{DB: db} }

// GetOrCreateChat ensures the chat exists and returns its member lists.
func (s *GormStore) GetOrCreateChat(ctx context.Context, chatID int64) (domain.ChatMembers, error) {
	return GetOrCreateChat(ctx, s.DB, chatID)
}

// AddChatMember opts m into the chat. Returns domain.ErrAlreadyPresent if the
// user or the handle is already listed.
func (s *GormStore) AddChatMember(ctx context.Context, chatID int64, m domain.Member) error {
	return AddChatMember(ctx, s.DB, chatID, m)
}

// RemoveChatMember opts a user out by id or handle.
func (s *GormStore) RemoveChatMember(ctx context.Context, chatID, userID int64, handle string) error {
	return RemoveChatMember(ctx, s.DB, chatID, userID, handle)
}

// CreateRole adds a role. Returns domain.ErrRoleExists if the name is taken.
func (s *GormStore) CreateRole(ctx context.Context, name string) error {
	return CreateRole(ctx, s.DB, name)
}

// DeleteRole removes a role and its memberships. Returns domain.ErrRoleNotFound
// if there is no such role.
func (s *GormStore) DeleteRole(ctx context.Context, name string) error {
	return DeleteRole(ctx, s.DB, name)
}

// AddRoleMember refreshes u in the directory and adds it to the role.
func (s *GormStore) AddRoleMember(ctx context.Context, name string, u domain.User) error {
	return AddRoleMember(ctx, s.DB, name, u)
}

// RemoveRoleMember takes userID out of the role.
func (s *GormStore) RemoveRoleMember(ctx context.Context, name string, userID int64) error {
	return RemoveRoleMember(ctx, s.DB, name, userID)
}

// ListRoleMembers returns the role members in insertion order.
func (s *GormStore) ListRoleMembers(ctx context.Context, name string) ([]domain.MemberRef, error) {
	return ListRoleMembers(ctx, s.DB, name)
}

// ListRoles returns every role with its members, ordered by name.
func (s *GormStore) ListRoles(ctx context.Context) ([]domain.RoleSummary, error) {
	return ListRoles(ctx, s.DB)
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
