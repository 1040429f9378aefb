// Package domain defines the persistence models for chats, opted-in members,
// users and roles. The SQL backend maps these types with GORM; the document
// backend reuses the read-side shapes (Member, ChatMembers, RoleSummary).
package domain

import "time"

// Chat is the per-conversation record. It is created lazily on the first
// command that references the conversation and is never deleted.
type Chat struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// ChatMember is one opted-in participant of a chat. A row with a non-empty
// Handle belongs to the "with handle" list, otherwise to the "without handle"
// list. Keeping both lists in one table lets the (chat_id, user_id) unique
// index enforce that an id appears in at most one of them.
//
// Fields:
//   - ChatID / UserID: unique pair (ux_chat_member_user).
//   - Handle: public username without '@'; unique per chat when non-empty.
//   - DisplayName: first name shown in deep-link mentions.
//   - ID: insertion order, used to keep both lists ordered.
type ChatMember struct {
	ID          uint      `json:"-"            gorm:"primaryKey"`
	ChatID      int64     `json:"chat_id"      gorm:"not null;uniqueIndex:ux_chat_member_user,priority:1;uniqueIndex:ux_chat_member_handle,priority:1,where:handle <> ''"`
	UserID      int64     `json:"user_id"      gorm:"not null;uniqueIndex:ux_chat_member_user,priority:2"`
	Handle      string    `json:"handle"       gorm:"type:varchar(64);not null;default:'';uniqueIndex:ux_chat_member_handle,priority:2,where:handle <> ''"`
	DisplayName string    `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for ChatMember.
func (ChatMember) TableName() string { return "chat_members" }

// User is a deployment-wide directory entry referenced by role memberships.
type User struct {
	ID          int64  `json:"id"           gorm:"primaryKey;autoIncrement:false"`
	DisplayName string `json:"display_name" gorm:"type:varchar(255);not null;default:''"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Role is a named, deployment-wide group of users. Name is stored normalised.
type Role struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	Name      string    `json:"name"       gorm:"type:varchar(64);not null;uniqueIndex:ux_role_name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Role.
func (Role) TableName() string { return "roles" }

// RoleMember links a role to a user id. Users are resolved at read time.
type RoleMember struct {
	ID     uint  `json:"-"       gorm:"primaryKey"`
	RoleID uint  `json:"role_id" gorm:"not null;uniqueIndex:ux_role_member,priority:1"`
	UserID int64 `json:"user_id" gorm:"not null;uniqueIndex:ux_role_member,priority:2;index"`
}

// TableName returns the database table name for RoleMember.
func (RoleMember) TableName() string { return "role_members" }

// Member is the read-side projection of an opted-in participant.
type Member struct {
	UserID      int64  `json:"user_id"                bson:"user_id"`
	Handle      string `json:"handle,omitempty"       bson:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty" bson:"display_name,omitempty"`
}

// ChatMembers is the mentionable set of a chat, split by whether the member
// has a public handle. Both lists keep opt-in order.
type ChatMembers struct {
	ChatID        int64    `json:"chat_id"`
	WithHandle    []Member `json:"with_handle"`
	WithoutHandle []Member `json:"without_handle"`
}

// Empty reports whether nobody in the chat has opted in.
func (c ChatMembers) Empty() bool {
	return len(c.WithHandle) == 0 && len(c.WithoutHandle) == 0
}

// MemberRef is a role membership slot. User is nil when the directory entry
// the slot points at no longer exists.
type MemberRef struct {
	UserID int64 `json:"user_id"`
	User   *User `json:"user,omitempty"`
}

// Name returns the display name of the referenced user, or "" for a missing entry.
func (r MemberRef) Name() string {
	if r.User == nil {
		return ""
	}
	return r.User.DisplayName
}

// RoleSummary is one line of the roles overview.
type RoleSummary struct {
	Name    string      `json:"name"`
	Members []MemberRef `json:"members"`
}
