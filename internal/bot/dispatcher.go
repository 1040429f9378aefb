package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Tensaey-sol/tag-bot/internal/domain"
	"github.com/Tensaey-sol/tag-bot/internal/services"
)

//
// Service contracts (context-aware)
//

// MembershipService manages the per-chat opt-in list.
type MembershipService interface {
	GetOrCreate(ctx context.Context, chatID int64) (domain.ChatMembers, error)
	OptIn(ctx context.Context, chatID int64, m domain.Member) error
	OptOut(ctx context.Context, chatID, userID int64, handle string) error
	ListMentionable(ctx context.Context, chatID int64) ([]string, []domain.Member, error)
}

// RoleService manages deployment-wide roles. Every method taking a raw name
// returns the normalised name it acted on.
type RoleService interface {
	Create(ctx context.Context, raw string) (string, error)
	Delete(ctx context.Context, raw string) (string, error)
	AddMember(ctx context.Context, raw string, u domain.User) (string, error)
	RemoveMember(ctx context.Context, raw string, userID int64) (string, error)
	Members(ctx context.Context, raw string) (string, []domain.MemberRef, error)
	List(ctx context.Context) ([]domain.RoleSummary, error)
}

// AdminChecker answers whether a user administers a chat.
type AdminChecker interface {
	IsAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Reply is one outbound message produced by a handler.
type Reply struct {
	Text     string
	Markdown bool // MarkdownV2 parse mode
	ReplyTo  int  // message id to quote, 0 for none
}

type handlerFunc func(ctx context.Context, ev Event) ([]Reply, error)

type command struct {
	run       handlerFunc
	adminOnly bool
}

// Dispatcher routes command events to handlers. The command table is built
// once by NewDispatcher and only read afterwards.
type Dispatcher struct {
	members  MembershipService
	roles    RoleService
	admins   AdminChecker
	username string

	commands map[string]command
}

// NewDispatcher builds the command table. username is the bot's own handle
// (without '@'); commands addressed to another bot are ignored.
func NewDispatcher(username string, m MembershipService, r RoleService, a AdminChecker) *Dispatcher {
	d := &Dispatcher{
		members:  m,
		roles:    r,
		admins:   a,
		username: strings.TrimPrefix(username, "@"),
	}
	d.commands = map[string]command{
		"start":                 {run: d.start},
		"help":                  {run: d.help},
		"in":                    {run: d.optIn},
		"out":                   {run: d.optOut},
		"everyone":              {run: d.everyone},
		"create_role":           {run: d.createRole, adminOnly: true},
		"delete_role":           {run: d.deleteRole, adminOnly: true},
		"add_user_to_role":      {run: d.addUserToRole, adminOnly: true},
		"remove_user_from_role": {run: d.removeUserFromRole, adminOnly: true},
		"mention_role":          {run: d.mentionRole},
		"roles_info":            {run: d.rolesInfo},
	}
	return d
}

// Commands lists the registered command names.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.commands))
	for name := range d.commands {
		out = append(out, name)
	}
	return out
}

// Dispatch runs the handler for ev and returns the replies to send. It never
// returns an error: expected conditions are rendered as texts, and anything
// else is logged and answered with a generic failure text.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) []Reply {
	if ev.Mention != "" && !strings.EqualFold(ev.Mention, d.username) {
		return nil
	}
	cmd, ok := d.commands[ev.Command]
	if !ok {
		return nil
	}

	replies, err := d.run(ctx, cmd, ev)
	switch {
	case errors.Is(err, ErrUnauthorized):
		commandsTotal.WithLabelValues(ev.Command, outcomeUnauthorized).Inc()
		return []Reply{d.text(ev, textUnauthorized)}
	case err != nil:
		commandsTotal.WithLabelValues(ev.Command, outcomeError).Inc()
		log.Ctx(ctx).Error().Err(err).
			Str("command", ev.Command).
			Int64("chat_id", ev.ChatID).
			Int("update_id", ev.UpdateID).
			Msg("command failed")
		return []Reply{d.text(ev, textFailure)}
	}
	commandsTotal.WithLabelValues(ev.Command, outcomeOK).Inc()
	return replies
}

func (d *Dispatcher) run(ctx context.Context, cmd command, ev Event) ([]Reply, error) {
	if cmd.adminOnly {
		if err := d.authorize(ctx, ev); err != nil {
			return nil, err
		}
	}
	return cmd.run(ctx, ev)
}

// authorize checks the caller administers the chat. Private chats have no
// administrators.
func (d *Dispatcher) authorize(ctx context.Context, ev Event) error {
	if ev.ChatType == "private" || d.admins == nil {
		return ErrUnauthorized
	}
	ok, err := d.admins.IsAdmin(ctx, ev.ChatID, ev.From.UserID)
	if err != nil {
		return fmt.Errorf("admin lookup: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (d *Dispatcher) text(ev Event, s string) Reply {
	return Reply{Text: s, ReplyTo: ev.MessageID}
}

func (d *Dispatcher) textf(ev Event, format string, args ...any) []Reply {
	return []Reply{d.text(ev, fmt.Sprintf(format, args...))}
}

// ----- membership commands -----

func (d *Dispatcher) start(ctx context.Context, ev Event) ([]Reply, error) {
	if _, err := d.members.GetOrCreate(ctx, ev.ChatID); err != nil {
		return nil, err
	}
	return []Reply{d.text(ev, textStart)}, nil
}

func (d *Dispatcher) help(_ context.Context, ev Event) ([]Reply, error) {
	return []Reply{d.text(ev, textHelp)}, nil
}

func (d *Dispatcher) optIn(ctx context.Context, ev Event) ([]Reply, error) {
	err := d.members.OptIn(ctx, ev.ChatID, ev.From)
	switch {
	case err == nil:
		return []Reply{d.text(ev, textOptedIn)}, nil
	case errors.Is(err, domain.ErrAlreadyPresent):
		return []Reply{d.text(ev, textAlreadyIn)}, nil
	}
	return nil, err
}

func (d *Dispatcher) optOut(ctx context.Context, ev Event) ([]Reply, error) {
	err := d.members.OptOut(ctx, ev.ChatID, ev.From.UserID, ev.From.Handle)
	switch {
	case err == nil:
		return []Reply{d.text(ev, textOptedOut)}, nil
	case errors.Is(err, domain.ErrNotPresent):
		return []Reply{d.text(ev, textNotIn)}, nil
	}
	return nil, err
}

// everyone mentions all opted-in members: handles in plain text, the rest as
// MarkdownV2 deep links. An optional message heads the first segment.
func (d *Dispatcher) everyone(ctx context.Context, ev Event) ([]Reply, error) {
	handles, anon, err := d.members.ListMentionable(ctx, ev.ChatID)
	if err != nil {
		return nil, err
	}
	if len(handles) == 0 && len(anon) == 0 {
		return []Reply{d.text(ev, textNobodyOptIn)}, nil
	}

	var out []Reply
	header := ev.RawArgs
	if len(handles) > 0 {
		parts := make([]string, 0, len(handles))
		for _, h := range handles {
			parts = append(parts, handleMention(h))
		}
		for _, s := range chunk(header, parts, MaxMessageRunes) {
			out = append(out, Reply{Text: s, ReplyTo: ev.MessageID})
		}
		header = ""
	}
	if len(anon) > 0 {
		parts := make([]string, 0, len(anon))
		for _, m := range anon {
			parts = append(parts, linkMention(m.UserID, m.DisplayName))
		}
		out = append(out, markdownReplies(ev, escapeHeader(header), parts)...)
	}
	return out, nil
}

// ----- role commands -----

// roleOutcome renders the expected role-command conditions. target names the
// user acted on, when there is one. Unexpected errors are returned as-is.
func (d *Dispatcher) roleOutcome(ev Event, name, target string, err error) ([]Reply, error) {
	switch {
	case errors.Is(err, services.ErrMissingArgument):
		return d.textf(ev, textUsage, ev.Command), nil
	case errors.Is(err, services.ErrInvalidRoleName):
		return []Reply{d.text(ev, textInvalidRoleName)}, nil
	case errors.Is(err, domain.ErrRoleNotFound):
		return d.textf(ev, textRoleNotFound, name), nil
	case errors.Is(err, domain.ErrRoleExists):
		return d.textf(ev, textRoleExists, name), nil
	case errors.Is(err, domain.ErrAlreadyMember):
		return d.textf(ev, textAlreadyMember, target, name), nil
	case errors.Is(err, domain.ErrNotMember):
		return d.textf(ev, textNotMember, target, name), nil
	case errors.Is(err, ErrNoReplyTarget):
		return []Reply{d.text(ev, textNoReplyTarget)}, nil
	}
	return nil, err
}

func (d *Dispatcher) createRole(ctx context.Context, ev Event) ([]Reply, error) {
	name, err := d.roles.Create(ctx, ev.RawArgs)
	if err != nil {
		return d.roleOutcome(ev, name, "", err)
	}
	return d.textf(ev, textRoleCreated, name), nil
}

func (d *Dispatcher) deleteRole(ctx context.Context, ev Event) ([]Reply, error) {
	name, err := d.roles.Delete(ctx, ev.RawArgs)
	if err != nil {
		return d.roleOutcome(ev, name, "", err)
	}
	return d.textf(ev, textRoleDeleted, name), nil
}

func (d *Dispatcher) addUserToRole(ctx context.Context, ev Event) ([]Reply, error) {
	if ev.ReplyTo == nil {
		return d.roleOutcome(ev, "", "", ErrNoReplyTarget)
	}
	target := ev.ReplyTo
	name, err := d.roles.AddMember(ctx, ev.RawArgs, domain.User{ID: target.UserID, DisplayName: target.DisplayName})
	if err != nil {
		return d.roleOutcome(ev, name, target.DisplayName, err)
	}
	return d.textf(ev, textMemberAdded, target.DisplayName, name), nil
}

func (d *Dispatcher) removeUserFromRole(ctx context.Context, ev Event) ([]Reply, error) {
	if ev.ReplyTo == nil {
		return d.roleOutcome(ev, "", "", ErrNoReplyTarget)
	}
	target := ev.ReplyTo
	name, err := d.roles.RemoveMember(ctx, ev.RawArgs, target.UserID)
	if err != nil {
		return d.roleOutcome(ev, name, target.DisplayName, err)
	}
	return d.textf(ev, textMemberRemoved, target.DisplayName, name), nil
}

// mentionRole mentions every resolvable member of a role with deep links.
// Members whose directory entry is gone are skipped.
func (d *Dispatcher) mentionRole(ctx context.Context, ev Event) ([]Reply, error) {
	name, members, err := d.roles.Members(ctx, ev.RawArgs)
	if err != nil {
		return d.roleOutcome(ev, name, "", err)
	}

	parts := make([]string, 0, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		parts = append(parts, linkMention(m.UserID, m.User.DisplayName))
	}
	if len(parts) == 0 {
		return d.textf(ev, textRoleEmpty, name), nil
	}
	return markdownReplies(ev, "", parts), nil
}

func (d *Dispatcher) rolesInfo(ctx context.Context, ev Event) ([]Reply, error) {
	roles, err := d.roles.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return []Reply{d.text(ev, textNoRoles)}, nil
	}

	lines := make([]string, 0, len(roles)+1)
	lines = append(lines, textRolesHeader)
	for _, r := range roles {
		names := make([]string, 0, len(r.Members))
		for _, m := range r.Members {
			if m.User == nil {
				names = append(names, textUnknownUser)
				continue
			}
			names = append(names, m.User.DisplayName)
		}
		list := strings.Join(names, ", ")
		if list == "" {
			list = textNoMembers
		}
		lines = append(lines, "• "+r.Name+": "+list)
	}

	var out []Reply
	for _, s := range chunkLines(lines, MaxMessageRunes) {
		out = append(out, Reply{Text: s, ReplyTo: ev.MessageID})
	}
	return out, nil
}

func markdownReplies(ev Event, header string, parts []string) []Reply {
	var out []Reply
	for _, s := range chunk(header, parts, MaxMessageRunes) {
		out = append(out, Reply{Text: s, Markdown: true, ReplyTo: ev.MessageID})
	}
	return out
}
