package bot

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/veigamann/whisper-zap/internal/domain"
	"github.com/veigamann/whisper-zap/internal/services"
)

// Roster is the whitelist side of services.AuthService.
type Roster interface {
	AddToWhitelist(ctx context.Context, id string) error
	RemoveFromWhitelist(ctx context.Context, id string) error
	ListWhitelist(ctx context.Context) ([]string, error)
	AddAdmin(ctx context.Context, id string) error
	RemoveAdmin(ctx context.Context, id string) error
	ListAdmins(ctx context.Context) ([]string, error)
}

// Settings is the subset of services.SettingsService used by commands.
type Settings interface {
	Temperature(ctx context.Context, chatID string) (float64, error)
	SetTemperature(ctx context.Context, chatID string, v float64) error
	Language(ctx context.Context, chatID string) (string, error)
	SetLanguage(ctx context.Context, chatID, lang string) error
	ClearLanguage(ctx context.Context, chatID string) error
	Prompt(ctx context.Context, chatID string) (string, error)
	SetPrompt(ctx context.Context, chatID, prompt string) error
	ClearPrompt(ctx context.Context, chatID string) error
	ChatEnabled(ctx context.Context, chatID string) (bool, error)
	SetChatEnabled(ctx context.Context, chatID string, enabled bool) error
	Prefix(ctx context.Context) (string, error)
	SetPrefix(ctx context.Context, prefix string) error
}

type adminPolicy int

const (
	// adminNone lets anyone run the verb.
	adminNone adminPolicy = iota
	// adminAlways rejects non-admins before the handler runs.
	adminAlways
	// adminOnChange leaves the decision to the handler, which only guards
	// mutating forms.
	adminOnChange
)

const prefixUsage = "[newPrefix]"

type handlerFunc func(d *Dispatcher, ctx context.Context, r *request) (string, error)

// commandSpec declares how a verb is gated and what it accepts.
type commandSpec struct {
	admin adminPolicy
	// denied completes "Only administrators can ..." for adminAlways verbs.
	denied string
	// maxArgs bounds the argument count; -1 means unbounded.
	maxArgs int
	usage   string
	// bypassGate lets the verb run while the chat is disabled.
	bypassGate bool
	handle     handlerFunc
}

var commands = map[Verb]commandSpec{
	VerbHelp:    {admin: adminNone, maxArgs: -1, handle: (*Dispatcher).help},
	VerbEnable:  {admin: adminAlways, denied: "enable the bot", maxArgs: 0, bypassGate: true, handle: (*Dispatcher).enable},
	VerbDisable: {admin: adminAlways, denied: "disable the bot", maxArgs: 0, bypassGate: true, handle: (*Dispatcher).disable},
	VerbID:      {admin: adminNone, maxArgs: 0, handle: (*Dispatcher).id},
	VerbUser:    {admin: adminOnChange, maxArgs: 2, usage: "<add|rm|list> [userId]", handle: (*Dispatcher).user},
	VerbUsers:   {admin: adminNone, maxArgs: -1, handle: (*Dispatcher).user},
	VerbTemp:    {admin: adminAlways, denied: "manage temperature settings", maxArgs: 1, usage: "[value]", handle: (*Dispatcher).temp},
	VerbLang:    {admin: adminAlways, denied: "manage language settings", maxArgs: -1, handle: (*Dispatcher).lang},
	VerbPrompt:  {admin: adminAlways, denied: "manage transcription prompts", maxArgs: -1, handle: (*Dispatcher).prompt},
	VerbPrefix:  {admin: adminOnChange, maxArgs: 1, usage: prefixUsage, handle: (*Dispatcher).prefix},
	VerbAdmin:   {admin: adminAlways, denied: "use this command", maxArgs: 2, usage: "<add|rm|list> [userId]", handle: (*Dispatcher).admin},
	VerbAdmins:  {admin: adminAlways, denied: "use this command", maxArgs: -1, handle: (*Dispatcher).admin},
	VerbStatus:  {admin: adminNone, maxArgs: 0, handle: (*Dispatcher).status},
	VerbUnknown: {admin: adminNone, maxArgs: -1, handle: (*Dispatcher).unknown},
}

// request carries one command through its handler.
type request struct {
	cmd     Command
	msg     domain.InboundMessage
	isAdmin bool
	prefix  string
	outcome string
}

// actor is the identity the command acts for: the participant in a group,
// the chat itself otherwise.
func (r *request) actor() string {
	return domain.NormalizeID(r.msg.ActingID())
}

// Dispatcher turns command text into a reply. It persists settings but
// never sends messages itself.
type Dispatcher struct {
	Roster   Roster
	Settings Settings
	Texts    Texts
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(roster Roster, settings Settings, texts Texts) *Dispatcher {
	return &Dispatcher{Roster: roster, Settings: settings, Texts: texts}
}

// Dispatch runs the command in raw for msg and returns the reply text. It
// returns "" when raw does not start with the active prefix. Errors never
// escape: they are logged and rendered as a diagnostic reply.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string, msg domain.InboundMessage, isAdmin bool) string {
	prefix, err := d.Settings.Prefix(ctx)
	if err != nil {
		return d.fail(raw, err)
	}
	cmd, ok := Parse(raw, prefix)
	if !ok {
		return ""
	}

	r := &request{cmd: cmd, msg: msg, isAdmin: isAdmin, prefix: prefix, outcome: outcomeOK}
	reply, err := d.run(ctx, r)
	if err != nil {
		r.outcome = outcomeError
		reply = d.fail(cmd.Name, err)
	}
	commandsTotal.WithLabelValues(cmd.Verb.String(), r.outcome).Inc()
	return reply
}

func (d *Dispatcher) run(ctx context.Context, r *request) (string, error) {
	spec := commands[r.cmd.Verb]

	if !spec.bypassGate {
		enabled, err := d.Settings.ChatEnabled(ctx, r.msg.ChatID)
		if err != nil {
			return "", err
		}
		if !enabled {
			r.outcome = outcomeInactive
			return d.Texts.Inactive(r.prefix), nil
		}
	}

	if spec.admin == adminAlways && !r.isAdmin {
		return d.deny(r, spec.denied), nil
	}

	if spec.maxArgs >= 0 && len(r.cmd.Args) > spec.maxArgs {
		r.outcome = outcomeInvalid
		return d.Texts.Usage(r.prefix, r.cmd.Verb, spec.usage), nil
	}

	return spec.handle(d, ctx, r)
}

func (d *Dispatcher) deny(r *request, action string) string {
	r.outcome = outcomeDenied
	return d.Texts.Denied(action)
}

func (d *Dispatcher) fail(command string, err error) string {
	log.Error().Err(err).Str("command", command).Msg("command failed")
	return d.Texts.CommandFailure(command, err)
}

func (d *Dispatcher) help(_ context.Context, r *request) (string, error) {
	return d.Texts.Help(r.prefix), nil
}

func (d *Dispatcher) enable(ctx context.Context, r *request) (string, error) {
	if err := d.Settings.SetChatEnabled(ctx, r.msg.ChatID, true); err != nil {
		return "", err
	}
	return d.Texts.Enabled(), nil
}

func (d *Dispatcher) disable(ctx context.Context, r *request) (string, error) {
	if err := d.Settings.SetChatEnabled(ctx, r.msg.ChatID, false); err != nil {
		return "", err
	}
	return d.Texts.Disabled(), nil
}

func (d *Dispatcher) id(_ context.Context, r *request) (string, error) {
	return d.Texts.IDs(r.msg), nil
}

func (d *Dispatcher) user(ctx context.Context, r *request) (string, error) {
	sub := r.cmd.Arg(0)
	if r.cmd.Verb == VerbUsers || sub == "list" {
		ids, err := d.Roster.ListWhitelist(ctx)
		if err != nil {
			return "", err
		}
		return d.Texts.Whitelist(ids), nil
	}

	target := r.cmd.Arg(1)
	if target == "" {
		target = r.actor()
	}
	switch sub {
	case "add":
		if !r.isAdmin {
			return d.deny(r, "add users to the whitelist"), nil
		}
		if err := d.Roster.AddToWhitelist(ctx, target); err != nil {
			return "", err
		}
		return d.Texts.UserAdded(target), nil
	case "rm":
		if !r.isAdmin {
			return d.deny(r, "remove users from the whitelist"), nil
		}
		if err := d.Roster.RemoveFromWhitelist(ctx, target); err != nil {
			return "", err
		}
		return d.Texts.UserRemoved(target), nil
	default:
		r.outcome = outcomeInvalid
		return d.Texts.InvalidSubcommand("user"), nil
	}
}

func (d *Dispatcher) temp(ctx context.Context, r *request) (string, error) {
	if len(r.cmd.Args) == 0 {
		v, err := d.Settings.Temperature(ctx, r.msg.ChatID)
		if err != nil {
			return "", err
		}
		return d.Texts.TemperatureCurrent(services.FormatTemperature(v)), nil
	}

	v, err := strconv.ParseFloat(r.cmd.Arg(0), 64)
	if err != nil || !services.ValidTemperature(v) {
		r.outcome = outcomeInvalid
		return d.Texts.InvalidTemperature(), nil
	}
	if err := d.Settings.SetTemperature(ctx, r.msg.ChatID, v); err != nil {
		if errors.Is(err, services.ErrInvalidTemperature) {
			r.outcome = outcomeInvalid
			return d.Texts.InvalidTemperature(), nil
		}
		return "", err
	}
	return d.Texts.TemperatureSet(services.FormatTemperature(v)), nil
}

func (d *Dispatcher) lang(ctx context.Context, r *request) (string, error) {
	switch {
	case len(r.cmd.Args) == 0:
		v, err := d.Settings.Language(ctx, r.msg.ChatID)
		if err != nil {
			return "", err
		}
		return d.Texts.LanguageCurrent(v), nil
	case r.cmd.Arg(0) == "rm":
		if err := d.Settings.ClearLanguage(ctx, r.msg.ChatID); err != nil {
			return "", err
		}
		return d.Texts.LanguageRemoved(), nil
	default:
		v := r.cmd.Joined()
		if err := d.Settings.SetLanguage(ctx, r.msg.ChatID, v); err != nil {
			return "", err
		}
		return d.Texts.LanguageSet(v), nil
	}
}

func (d *Dispatcher) prompt(ctx context.Context, r *request) (string, error) {
	switch {
	case len(r.cmd.Args) == 0:
		v, err := d.Settings.Prompt(ctx, r.msg.ChatID)
		if err != nil {
			return "", err
		}
		return d.Texts.PromptCurrent(v), nil
	case r.cmd.Arg(0) == "rm":
		if err := d.Settings.ClearPrompt(ctx, r.msg.ChatID); err != nil {
			return "", err
		}
		return d.Texts.PromptRemoved(), nil
	default:
		v := r.cmd.Joined()
		if err := d.Settings.SetPrompt(ctx, r.msg.ChatID, v); err != nil {
			return "", err
		}
		return d.Texts.PromptSet(v), nil
	}
}

func (d *Dispatcher) prefix(ctx context.Context, r *request) (string, error) {
	if len(r.cmd.Args) == 0 {
		return d.Texts.PrefixCurrent(r.prefix), nil
	}
	if !r.isAdmin {
		return d.deny(r, "change the command prefix"), nil
	}
	next := r.cmd.Arg(0)
	if err := d.Settings.SetPrefix(ctx, next); err != nil {
		if errors.Is(err, services.ErrEmptyPrefix) {
			r.outcome = outcomeInvalid
			return d.Texts.Usage(r.prefix, VerbPrefix, prefixUsage), nil
		}
		return "", err
	}
	return d.Texts.PrefixSet(next), nil
}

func (d *Dispatcher) admin(ctx context.Context, r *request) (string, error) {
	sub := r.cmd.Arg(0)
	if r.cmd.Verb == VerbAdmins || sub == "list" {
		ids, err := d.Roster.ListAdmins(ctx)
		if err != nil {
			return "", err
		}
		return d.Texts.Admins(ids), nil
	}

	target := r.cmd.Arg(1)
	switch sub {
	case "add":
		if target == "" {
			r.outcome = outcomeInvalid
			return d.Texts.AdminMissingID("add"), nil
		}
		if err := d.Roster.AddAdmin(ctx, target); err != nil {
			return "", err
		}
		return d.Texts.AdminAdded(target), nil
	case "rm":
		if target == "" {
			r.outcome = outcomeInvalid
			return d.Texts.AdminMissingID("remove"), nil
		}
		if domain.NormalizeID(target) == r.actor() {
			r.outcome = outcomeDenied
			return d.Texts.AdminSelfRemoval(), nil
		}
		if err := d.Roster.RemoveAdmin(ctx, target); err != nil {
			return "", err
		}
		return d.Texts.AdminRemoved(target), nil
	default:
		r.outcome = outcomeInvalid
		return d.Texts.InvalidSubcommand("admin"), nil
	}
}

func (d *Dispatcher) status(ctx context.Context, r *request) (string, error) {
	chatID := r.msg.ChatID
	enabled, err := d.Settings.ChatEnabled(ctx, chatID)
	if err != nil {
		return "", err
	}
	temp, err := d.Settings.Temperature(ctx, chatID)
	if err != nil {
		return "", err
	}
	lang, err := d.Settings.Language(ctx, chatID)
	if err != nil {
		return "", err
	}
	prompt, err := d.Settings.Prompt(ctx, chatID)
	if err != nil {
		return "", err
	}
	return d.Texts.Status(Status{
		Enabled:     enabled,
		Temperature: services.FormatTemperature(temp),
		Language:    lang,
		Prompt:      prompt,
		Prefix:      r.prefix,
		ChatID:      chatID,
		UserID:      r.msg.ActingID(),
	}), nil
}

func (d *Dispatcher) unknown(_ context.Context, r *request) (string, error) {
	r.outcome = outcomeUnknown
	return d.Texts.Unknown(r.cmd.Name, r.prefix), nil
}
