// Package bot contains the chat-facing core: command parsing and dispatch,
// the per-message router that gates on authorization and drives the
// transcription reaction protocol, and the single-consumer queue that feeds
// it.
package bot

import "strings"

// Verb is the closed set of chat commands.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbHelp
	VerbEnable
	VerbDisable
	VerbID
	VerbUser
	VerbUsers
	VerbTemp
	VerbLang
	VerbPrompt
	VerbPrefix
	VerbAdmin
	VerbAdmins
	VerbStatus
)

var verbNames = [...]string{
	VerbUnknown: "unknown",
	VerbHelp:    "help",
	VerbEnable:  "enable",
	VerbDisable: "disable",
	VerbID:      "id",
	VerbUser:    "user",
	VerbUsers:   "users",
	VerbTemp:    "temp",
	VerbLang:    "lang",
	VerbPrompt:  "prompt",
	VerbPrefix:  "prefix",
	VerbAdmin:   "admin",
	VerbAdmins:  "admins",
	VerbStatus:  "status",
}

var verbsByName = func() map[string]Verb {
	m := make(map[string]Verb, len(verbNames))
	for v, name := range verbNames {
		if Verb(v) != VerbUnknown {
			m[name] = Verb(v)
		}
	}
	return m
}()

// String returns the command word without prefix.
func (v Verb) String() string {
	if v < 0 || int(v) >= len(verbNames) {
		return verbNames[VerbUnknown]
	}
	return verbNames[v]
}

// LookupVerb maps a command word (without prefix) to its Verb. Matching is
// case-sensitive.
func LookupVerb(word string) Verb {
	return verbsByName[word]
}

// Command is a parsed chat command.
type Command struct {
	Verb Verb
	// Name is the first token as typed, prefix included.
	Name string
	Args []string
}

// Parse splits text into a Command when it starts with prefix. Tokens are
// separated by single spaces, so repeated spaces yield empty arguments.
func Parse(text, prefix string) (Command, bool) {
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return Command{}, false
	}
	tokens := strings.Split(text, " ")
	name := tokens[0]
	return Command{
		Verb: LookupVerb(strings.TrimPrefix(name, prefix)),
		Name: name,
		Args: tokens[1:],
	}, true
}

// Joined returns the arguments re-joined with single spaces.
func (c Command) Joined() string {
	return strings.Join(c.Args, " ")
}

// Arg returns the i-th argument or "" when absent.
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}
