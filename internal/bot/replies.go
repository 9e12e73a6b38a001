package bot

import (
	"encoding/json"
	"strings"

	"github.com/veigamann/whisper-zap/internal/domain"
)

// DefaultBanner heads every message the bot sends.
const DefaultBanner = "> 🤖  *[BOT]*"

const notSet = "Not set"

// Texts renders user-facing replies. All replies start with Banner.
type Texts struct {
	Banner string
}

func (t Texts) wrap(body string) string {
	banner := t.Banner
	if banner == "" {
		banner = DefaultBanner
	}
	return banner + "\n\n" + body
}

func (t Texts) Help(prefix string) string {
	p := prefix
	return t.wrap(strings.Join([]string{
		"*Available commands:*",
		"",
		"- *" + p + "help* - Show this help message",
		"- *" + p + "enable* - Enable the bot for this chat",
		"- *" + p + "disable* - Disable the bot for this chat",
		"- *" + p + "status* - Get bot status",
		"- *" + p + "id* - Get current chat and user IDs",
		"- *" + p + "temp _[value]_* - Set or get temperature _(Admin only)_",
		"- *" + p + "lang <rm> _[language]_* - Set or get the transcription language _(Admin only)_",
		"- *" + p + "prompt <rm> _[prompt]_* - Set or get the transcription prompt. Must be in the same language as the audio. _(Admin only)_",
		"- *" + p + "prefix _[newPrefix]_* - Set or get command prefix",
		"- *" + p + "user <add|rm|list> _[userId]_* - Manage whitelisted users",
		"- *" + p + "admin <add|rm|list> _[userId]_* - Manage admins _(Admin only)_",
		"",
		"*Aliases:*",
		"",
		"- *" + p + "users* - Alias for '" + p + "user list'",
		"- *" + p + "admins* - Alias for '" + p + "admin list'",
	}, "\n"))
}

func (t Texts) Denied(action string) string {
	return t.wrap("⛔ Access denied: Only administrators can " + action + ".")
}

func (t Texts) Inactive(prefix string) string {
	return t.wrap("🔒 Bot inactive: The bot is currently disabled for this chat. An administrator can enable it using `" + prefix + "enable`.")
}

func (t Texts) Unknown(name, prefix string) string {
	return t.wrap("❓ Unknown command: `" + name + "`. Type " + prefix + "help for available commands.")
}

func (t Texts) Usage(prefix string, v Verb, usage string) string {
	form := strings.TrimSpace(prefix + v.String() + " " + usage)
	return t.wrap("❓ Invalid usage: `" + form + "`. Type " + prefix + "help for available commands.")
}

func (t Texts) Enabled() string {
	return t.wrap("✅ Bot activated: The bot has been successfully enabled for this chat.")
}

func (t Texts) Disabled() string {
	return t.wrap("🛑 Bot deactivated: The bot has been disabled for this chat.")
}

// IDs shows the chat and, in groups, the participant identifiers.
func (t Texts) IDs(msg domain.InboundMessage) string {
	if msg.IsGroup {
		return t.wrap("🆔 Identifier information:\n" +
			"- Chat ID: `" + domain.StripDomain(msg.ChatID) + "`\n" +
			"- User ID: `" + domain.StripDomain(msg.SenderID) + "`")
	}
	return t.wrap("🆔 Identifier information:\n- Chat/User ID: `" + domain.StripDomain(msg.ChatID) + "`")
}

func (t Texts) Whitelist(ids []string) string {
	return t.wrap("👥 Whitelist:\n" + strings.Join(ids, "\n"))
}

func (t Texts) UserAdded(id string) string {
	return t.wrap("✅ User whitelisted: " + domain.StripDomain(id) + " has been added to the whitelist.")
}

func (t Texts) UserRemoved(id string) string {
	return t.wrap("🗑️ User removed: " + domain.StripDomain(id) + " has been removed from the whitelist.")
}

func (t Texts) InvalidSubcommand(verb string) string {
	return t.wrap("❓ Invalid subcommand: Please use `add`, `rm`, or `list` with the " + verb + " command.")
}

func (t Texts) InvalidTemperature() string {
	return t.wrap("❌ Invalid input: Temperature must be a number between 0.0 and 1.0.")
}

func (t Texts) TemperatureSet(v string) string {
	return t.wrap("🌡️ Temperature updated: Set to " + v + " for this chat.")
}

func (t Texts) TemperatureCurrent(v string) string {
	return t.wrap("🌡️ Current temperature: " + v + " for this chat.")
}

func (t Texts) LanguageRemoved() string {
	return t.wrap("🗑️ Language removed: The transcription language has been cleared for this chat.")
}

func (t Texts) LanguageSet(v string) string {
	return t.wrap("🌐 Language updated: The transcription language has been set to \"" + v + "\".")
}

func (t Texts) LanguageCurrent(v string) string {
	if v == "" {
		return t.wrap("🌐 Current language: No transcription language is set for this chat.")
	}
	return t.wrap("🌐 Current language: The transcription language is set to \"" + v + "\".")
}

func (t Texts) PromptRemoved() string {
	return t.wrap("🗑️ Prompt removed: The transcription prompt has been cleared for this chat.")
}

func (t Texts) PromptSet(v string) string {
	return t.wrap("📝 Prompt updated: The transcription prompt has been set to \"" + v + "\".")
}

func (t Texts) PromptCurrent(v string) string {
	if v == "" {
		return t.wrap("📝 Current prompt: No transcription prompt is set for this chat.")
	}
	return t.wrap("📝 Current prompt: The transcription prompt is set to \"" + v + "\".")
}

func (t Texts) PrefixSet(p string) string {
	return t.wrap("✏️ Prefix updated: Command prefix set to \"" + p + "\".")
}

func (t Texts) PrefixCurrent(p string) string {
	return t.wrap("🔤 Current prefix: The command prefix is \"" + p + "\".")
}

func (t Texts) Admins(ids []string) string {
	return t.wrap("👑 Administrators:\n" + strings.Join(ids, "\n"))
}

func (t Texts) AdminMissingID(action string) string {
	return t.wrap("❌ Missing information: Please provide a user ID to " + action + " as an administrator.")
}

func (t Texts) AdminSelfRemoval() string {
	return t.wrap("❌ Action denied: You cannot remove yourself as an administrator.")
}

func (t Texts) AdminAdded(id string) string {
	return t.wrap("👑 Administrator added: " + domain.StripDomain(id) + " is now an administrator.")
}

func (t Texts) AdminRemoved(id string) string {
	return t.wrap("🔽 Administrator removed: " + domain.StripDomain(id) + " is no longer an administrator.")
}

// Status is the composite report for the status command.
type Status struct {
	Enabled     bool
	Temperature string
	Language    string
	Prompt      string
	Prefix      string
	ChatID      string
	UserID      string
}

func (t Texts) Status(s Status) string {
	state := "disabled"
	if s.Enabled {
		state = "enabled"
	}
	return t.wrap("📊 Bot status:\n\n" +
		"- Chat: *" + state + "*\n" +
		"- Temperature: *" + s.Temperature + "*\n" +
		"- Language: *" + orNotSet(s.Language) + "*\n" +
		"- Prompt: *" + orNotSet(s.Prompt) + "*\n" +
		"- Command Prefix: *" + s.Prefix + "*\n" +
		"- Chat ID: `" + domain.StripDomain(s.ChatID) + "`\n" +
		"- User ID: `" + domain.StripDomain(s.UserID) + "`")
}

// CommandFailure is the generic reply for an unexpected error while running
// a command.
func (t Texts) CommandFailure(command string, err error) string {
	return t.wrap("🚫 Error occurred: An unexpected error happened while processing the command.\nDetails:\n\n" + diagnostic(command, err))
}

// Transcript wraps a successful transcription.
func (t Texts) Transcript(text string) string {
	return t.wrap(text)
}

// TranscriptionFailure is the reply sent when the workflow fails.
func (t Texts) TranscriptionFailure(err error) string {
	return t.wrap("🚫 Transcription error: An issue occurred while processing the audio message.\nDetails:\n\n" + diagnostic("", err))
}

type diagnosticPayload struct {
	Command string `json:"command,omitempty"`
	Error   string `json:"error"`
}

func diagnostic(command string, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	b, _ := json.Marshal(diagnosticPayload{Command: command, Error: msg})
	return string(b)
}

func orNotSet(v string) string {
	if v == "" {
		return notSet
	}
	return v
}
