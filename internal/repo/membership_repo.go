package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// EnsureChat inserts the chat row if it does not exist yet.
func EnsureChat(ctx context.Context, db *gorm.DB, chatID int64) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.Chat{ID: chatID, CreatedAt: time.Now().UTC()}).Error
}

// ListChatMembers returns the opted-in members of a chat split by whether
// they have a handle. Both lists are in opt-in order.
func ListChatMembers(ctx context.Context, db *gorm.DB, chatID int64) (domain.ChatMembers, error) {
	out := domain.ChatMembers{ChatID: chatID, WithHandle: []domain.Member{}, WithoutHandle: []domain.Member{}}

	var rows []domain.ChatMember
	if err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("id asc").
		Find(&rows).Error; err != nil {
		return out, err
	}
	for _, r := range rows {
		m := domain.Member{UserID: r.UserID, Handle: r.Handle, DisplayName: r.DisplayName}
		if r.Handle != "" {
			out.WithHandle = append(out.WithHandle, m)
		} else {
			out.WithoutHandle = append(out.WithoutHandle, m)
		}
	}
	return out, nil
}

// GetOrCreateChat ensures the chat exists and returns its member lists.
func GetOrCreateChat(ctx context.Context, db *gorm.DB, chatID int64) (domain.ChatMembers, error) {
	if err := EnsureChat(ctx, db, chatID); err != nil {
		return domain.ChatMembers{ChatID: chatID}, err
	}
	return ListChatMembers(ctx, db, chatID)
}

// AddChatMember opts m into the chat. It returns domain.ErrAlreadyPresent if
// the user id is already listed, or if m.Handle is already taken in the chat.
// The unique indexes on chat_members make a concurrent duplicate insert fail
// the same way.
func AddChatMember(ctx context.Context, db *gorm.DB, chatID int64, m domain.Member) error {
	// The chat row outlives a rejected opt-in, so it is committed on its own.
	if err := EnsureChat(ctx, db, chatID); err != nil {
		return err
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		q := tx.Model(&domain.ChatMember{}).Where("chat_id = ?", chatID)
		if m.Handle != "" {
			q = q.Where("(user_id = ? OR handle = ?)", m.UserID, m.Handle)
		} else {
			q = q.Where("user_id = ?", m.UserID)
		}
		if err := q.Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domain.ErrAlreadyPresent
		}

		row := &domain.ChatMember{
			ChatID:      chatID,
			UserID:      m.UserID,
			Handle:      m.Handle,
			DisplayName: m.DisplayName,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.Create(row).Error
	})
	if isDuplicate(err) {
		return domain.ErrAlreadyPresent
	}
	return err
}

// RemoveChatMember opts a user out of the chat, matching by numeric id in
// either list or by handle in the handle list. It returns domain.ErrNotPresent
// when nothing matched.
func RemoveChatMember(ctx context.Context, db *gorm.DB, chatID, userID int64, handle string) error {
	if err := EnsureChat(ctx, db, chatID); err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("chat_id = ?", chatID)
		if handle != "" {
			q = q.Where("(user_id = ? OR (handle <> '' AND handle = ?))", userID, handle)
		} else {
			q = q.Where("user_id = ?", userID)
		}
		res := q.Delete(&domain.ChatMember{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotPresent
		}
		return nil
	})
}
