package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// findRole loads a role by its normalised name, mapping a missing row to
// domain.ErrRoleNotFound.
func findRole(ctx context.Context, db *gorm.DB, name string) (*domain.Role, error) {
	var r domain.Role
	err := db.WithContext(ctx).Where("name = ?", name).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRole inserts a new role. A taken name yields domain.ErrRoleExists.
func CreateRole(ctx context.Context, db *gorm.DB, name string) error {
	err := db.WithContext(ctx).Create(&domain.Role{Name: name, CreatedAt: time.Now().UTC()}).Error
	if isDuplicate(err) {
		return domain.ErrRoleExists
	}
	return err
}

// DeleteRole removes a role and its member references. Directory entries
// in users are left untouched.
func DeleteRole(ctx context.Context, db *gorm.DB, name string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findRole(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", r.ID).Delete(&domain.RoleMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Role{}, r.ID).Error
	})
}

// UpsertUser creates the directory entry or refreshes its display name.
func UpsertUser(ctx context.Context, db *gorm.DB, u domain.User) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name"}),
		}).
		Create(&u).Error
}

// AddRoleMember assigns u to the named role, creating or refreshing the
// user's directory entry. It returns domain.ErrRoleNotFound or
// domain.ErrAlreadyMember for the non-success outcomes. The directory
// refresh is kept even when the user was already a member.
func AddRoleMember(ctx context.Context, db *gorm.DB, name string, u domain.User) error {
	already := false
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findRole(ctx, tx, name)
		if err != nil {
			return err
		}
		if err := UpsertUser(ctx, tx, u); err != nil {
			return err
		}

		var n int64
		if err := tx.Model(&domain.RoleMember{}).
			Where("role_id = ? AND user_id = ?", r.ID, u.ID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			already = true
			return nil
		}
		return tx.Create(&domain.RoleMember{RoleID: r.ID, UserID: u.ID}).Error
	})
	switch {
	case isDuplicate(err):
		return domain.ErrAlreadyMember
	case err != nil:
		return err
	case already:
		return domain.ErrAlreadyMember
	}
	return nil
}

// RemoveRoleMember removes userID from the named role.
func RemoveRoleMember(ctx context.Context, db *gorm.DB, name string, userID int64) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r, err := findRole(ctx, tx, name)
		if err != nil {
			return err
		}
		res := tx.Where("role_id = ? AND user_id = ?", r.ID, userID).Delete(&domain.RoleMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotMember
		}
		return nil
	})
}

// memberRow is one role_members row joined with its (optional) user.
type memberRow struct {
	RoleID      uint
	UserID      int64
	DirID       *int64
	DisplayName *string
}

func (r memberRow) ref() domain.MemberRef {
	ref := domain.MemberRef{UserID: r.UserID}
	if r.DirID != nil {
		u := &domain.User{ID: *r.DirID}
		if r.DisplayName != nil {
			u.DisplayName = *r.DisplayName
		}
		ref.User = u
	}
	return ref
}

func memberRows(ctx context.Context, db *gorm.DB, roleIDs ...uint) ([]memberRow, error) {
	var rows []memberRow
	q := db.WithContext(ctx).
		Table("role_members").
		Select("role_members.role_id, role_members.user_id, users.id AS dir_id, users.display_name").
		Joins("LEFT JOIN users ON users.id = role_members.user_id").
		Order("role_members.id asc")
	if len(roleIDs) > 0 {
		q = q.Where("role_members.role_id IN ?", roleIDs)
	}
	err := q.Scan(&rows).Error
	return rows, err
}

// ListRoleMembers returns the members of the named role in assignment order.
// A member whose directory entry is missing has a nil User.
func ListRoleMembers(ctx context.Context, db *gorm.DB, name string) ([]domain.MemberRef, error) {
	r, err := findRole(ctx, db, name)
	if err != nil {
		return nil, err
	}
	rows, err := memberRows(ctx, db, r.ID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemberRef, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ref())
	}
	return out, nil
}

// ListRoles returns every role ordered by name with its members.
func ListRoles(ctx context.Context, db *gorm.DB) ([]domain.RoleSummary, error) {
	var roles []domain.Role
	if err := db.WithContext(ctx).Order("name asc").Find(&roles).Error; err != nil {
		return nil, err
	}
	out := make([]domain.RoleSummary, 0, len(roles))
	if len(roles) == 0 {
		return out, nil
	}

	rows, err := memberRows(ctx, db)
	if err != nil {
		return nil, err
	}
	byRole := make(map[uint][]domain.MemberRef, len(roles))
	for _, row := range rows {
		byRole[row.RoleID] = append(byRole[row.RoleID], row.ref())
	}
	for _, r := range roles {
		members := byRole[r.ID]
		if members == nil {
			members = []domain.MemberRef{}
		}
		out = append(out, domain.RoleSummary{Name: r.Name, Members: members})
	}
	return out, nil
}
