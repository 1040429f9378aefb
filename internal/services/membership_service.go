// Package services – MembershipService
//
// This file implements the per-chat opt-in list: opting in and out and the
// read-only projection used to build mention messages.
package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
)

// MembershipRepo defines the storage contract required by MembershipService.
// Implementations must make AddChatMember and RemoveChatMember atomic.
type MembershipRepo interface {
	// GetOrCreateChat returns the chat's member lists, creating the chat if unseen.
	GetOrCreateChat(ctx context.Context, chatID int64) (domain.ChatMembers, error)

	// AddChatMember appends m, or returns domain.ErrAlreadyPresent.
	AddChatMember(ctx context.Context, chatID int64, m domain.Member) error

	// RemoveChatMember removes by id or handle, or returns domain.ErrNotPresent.
	RemoveChatMember(ctx context.Context, chatID, userID int64, handle string) error
}

// MembershipService manages which chat members agreed to be mentioned.
type MembershipService struct {
	Repo  MembershipRepo
	Retry Retrier
}

// NewMembershipService constructs a MembershipService retrying transient
// storage failures up to maxTries attempts.
func NewMembershipService(r MembershipRepo, maxTries int) *MembershipService {
	return &MembershipService{Repo: r, Retry: NewRetrier(maxTries)}
}

func startSpan(ctx context.Context, tracer, name string, chatID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracer).Start(ctx, name,
		trace.WithAttributes(attribute.Int64("chat.id", chatID)),
	)
}

// NormalizeHandle strips surrounding whitespace and a leading '@'.
func NormalizeHandle(h string) string {
	return strings.TrimPrefix(strings.TrimSpace(h), "@")
}

// GetOrCreate returns the chat's member lists, creating an empty record on
// first reference.
func (s *MembershipService) GetOrCreate(ctx context.Context, chatID int64) (domain.ChatMembers, error) {
	ctx, span := startSpan(ctx, "services/MembershipService", "GetOrCreate", chatID)
	defer span.End()

	return retryValue(ctx, s.Retry, func() (domain.ChatMembers, error) {
		return s.Repo.GetOrCreateChat(ctx, chatID)
	})
}

// OptIn adds the member to the chat's handle list when it has a handle and
// to the handle-less list otherwise. Returns domain.ErrAlreadyPresent if the
// member is already listed.
func (s *MembershipService) OptIn(ctx context.Context, chatID int64, m domain.Member) error {
	ctx, span := startSpan(ctx, "services/MembershipService", "OptIn", chatID)
	defer span.End()

	m.Handle = NormalizeHandle(m.Handle)
	m.DisplayName = strings.TrimSpace(m.DisplayName)
	return retry(ctx, s.Retry, func() error {
		return s.Repo.AddChatMember(ctx, chatID, m)
	})
}

// OptOut removes the member matching userID or handle. Returns
// domain.ErrNotPresent if nothing matched.
func (s *MembershipService) OptOut(ctx context.Context, chatID, userID int64, handle string) error {
	ctx, span := startSpan(ctx, "services/MembershipService", "OptOut", chatID)
	defer span.End()

	handle = NormalizeHandle(handle)
	return retry(ctx, s.Retry, func() error {
		return s.Repo.RemoveChatMember(ctx, chatID, userID, handle)
	})
}

// ListMentionable returns the handles (without '@') and the handle-less
// members of the chat, both in opt-in order.
func (s *MembershipService) ListMentionable(ctx context.Context, chatID int64) ([]string, []domain.Member, error) {
	cm, err := s.GetOrCreate(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	handles := make([]string, 0, len(cm.WithHandle))
	for _, m := range cm.WithHandle {
		handles = append(handles, m.Handle)
	}
	return handles, cm.WithoutHandle, nil
}
