package bot

import (
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageRunes is Telegram's per-message text limit.
const MaxMessageRunes = 4096

// handleMention renders a plain-text @mention.
func handleMention(handle string) string {
	return "@" + handle
}

// linkMention renders a MarkdownV2 deep link that notifies the user without a
// public handle. The name is escaped by the bot framework's MarkdownV2 escaper.
func linkMention(userID int64, name string) string {
	if strings.TrimSpace(name) == "" {
		name = "user " + strconv.FormatInt(userID, 10)
	}
	return "[" + tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, name) + "](tg://user?id=" + strconv.FormatInt(userID, 10) + ")"
}

// escapeHeader makes free text safe to place in a MarkdownV2 message.
func escapeHeader(h string) string {
	if h == "" {
		return ""
	}
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, h)
}

// chunk joins parts with single spaces into as few messages as possible. The
// optional header goes on its own line at the top of the first message.
func chunk(header string, parts []string, limit int) []string {
	return joinLimited(header, parts, " ", limit)
}

// chunkLines joins lines with newlines into as few messages as possible.
func chunkLines(lines []string, limit int) []string {
	return joinLimited("", lines, "\n", limit)
}

// joinLimited packs parts into messages no longer than limit runes. A single
// part longer than limit is sent on its own and left to the API to reject.
func joinLimited(header string, parts []string, sep string, limit int) []string {
	var (
		out []string
		b   strings.Builder
		n   int
	)
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
	}

	if header != "" {
		b.WriteString(header)
		n = utf8.RuneCountInString(header)
	}
	for i, p := range parts {
		pn := utf8.RuneCountInString(p)
		s := sep
		switch {
		case b.Len() == 0:
			s = ""
		case i == 0 && header != "":
			s = "\n"
		}
		if b.Len() > 0 && n+len(s)+pn > limit {
			flush()
			s = ""
		}
		b.WriteString(s)
		b.WriteString(p)
		n += len(s) + pn
	}
	flush()
	return out
}
