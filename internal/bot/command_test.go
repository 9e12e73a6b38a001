package bot

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		prefix string
		ok     bool
		want   Command
	}{
		{"no prefix", "hello", ".", false, Command{}},
		{"empty prefix", ".help", "", false, Command{}},
		{"verb only", ".help", ".", true, Command{Verb: VerbHelp, Name: ".help", Args: []string{}}},
		{"args", ".lang pt BR", ".", true, Command{Verb: VerbLang, Name: ".lang", Args: []string{"pt", "BR"}}},
		{"double space keeps empty arg", ".temp  0.5", ".", true, Command{Verb: VerbTemp, Name: ".temp", Args: []string{"", "0.5"}}},
		{"multi-char prefix", "!!status", "!!", true, Command{Verb: VerbStatus, Name: "!!status", Args: []string{}}},
		{"case sensitive", ".HELP", ".", true, Command{Verb: VerbUnknown, Name: ".HELP", Args: []string{}}},
		{"unknown", ".foo bar", ".", true, Command{Verb: VerbUnknown, Name: ".foo", Args: []string{"bar"}}},
		{"prefix alone", ".", ".", true, Command{Verb: VerbUnknown, Name: ".", Args: []string{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.text, tc.prefix)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !tc.ok {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Parse(%q) = %+v, want %+v", tc.text, got, tc.want)
			}
		})
	}
}

func TestVerbNamesRoundTrip(t *testing.T) {
	for v := VerbHelp; v <= VerbStatus; v++ {
		if got := LookupVerb(v.String()); got != v {
			t.Fatalf("LookupVerb(%q) = %v, want %v", v.String(), got, v)
		}
		if _, ok := commands[v]; !ok {
			t.Fatalf("verb %v has no command spec", v)
		}
	}
	if LookupVerb("unknown") != VerbUnknown {
		t.Fatal(`"unknown" must not resolve to a real verb`)
	}
	if Verb(99).String() != "unknown" {
		t.Fatal("out-of-range verbs must stringify as unknown")
	}
}

func TestCommandHelpers(t *testing.T) {
	c := Command{Args: []string{"a", "b"}}
	if c.Joined() != "a b" || c.Arg(1) != "b" || c.Arg(2) != "" || c.Arg(-1) != "" {
		t.Fatalf("helpers misbehave: joined=%q arg1=%q", c.Joined(), c.Arg(1))
	}
}
