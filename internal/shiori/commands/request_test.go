package commands_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bdobrica/Shiori/internal/shiori/commands"
	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

func TestParseText(t *testing.T) {
	tests := []struct {
		input    string
		wantCmd  string
		wantArgs []string
		wantErr  bool
	}{
		{input: "!pin add 123 great find", wantCmd: "add", wantArgs: []string{"123", "great", "find"}},
		{input: "  !PIN   ADD   123  ", wantCmd: "add", wantArgs: []string{"123"}},
		{input: "!pin", wantCmd: "list", wantArgs: []string{}},
		{input: "!pin   ", wantCmd: "list", wantArgs: []string{}},
		{input: "!pin list 5", wantCmd: "list", wantArgs: []string{"5"}},
		{input: "!pin\tsearch foo\nbar", wantCmd: "search", wantArgs: []string{"foo", "bar"}},
		{input: "!pinboard list", wantErr: true},
		{input: "pin list", wantErr: true},
		{input: "hello !pin list", wantErr: true},
		{input: "", wantErr: true},
		{input: "!pi", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			req, err := commands.ParseText("!", "pin", tt.input, "list")
			if tt.wantErr {
				if !errors.Is(err, commands.ErrNotACommand) {
					t.Fatalf("expected ErrNotACommand, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Namespace != "pin" {
				t.Errorf("Namespace: got %q, want pin", req.Namespace)
			}
			if req.Command != tt.wantCmd {
				t.Errorf("Command: got %q, want %q", req.Command, tt.wantCmd)
			}
			if !reflect.DeepEqual(req.Args, tt.wantArgs) {
				t.Errorf("Args: got %q, want %q", req.Args, tt.wantArgs)
			}
		})
	}
}

func TestRequest_ArgAndRest(t *testing.T) {
	req := commands.Request{Namespace: "pin", Command: "search", Args: []string{"a", "b", "c"}}
	if v, ok := req.Arg(1); !ok || v != "b" {
		t.Errorf("Arg(1) = %q, %v", v, ok)
	}
	if _, ok := req.Arg(3); ok {
		t.Error("Arg(3) should be absent")
	}
	if got := req.Rest(1); got != "b c" {
		t.Errorf("Rest(1) = %q", got)
	}
	if got := req.Rest(5); got != "" {
		t.Errorf("Rest(5) = %q", got)
	}
	if got := req.FullCommand(); got != "pin search" {
		t.Errorf("FullCommand = %q", got)
	}
}

func pinGroup() commands.OptionSpec {
	return commands.Group("pin", "Pinboard",
		commands.Subcommand("add", "Pin a message",
			commands.Leaf("message", platform.OptionString, true, "id or link"),
			commands.Leaf("note", platform.OptionString, false, "note"),
		),
		commands.Subcommand("remove", "Remove a pin",
			commands.Leaf("id", platform.OptionInteger, true, "pin id"),
		),
		commands.Subcommand("list", "List pins",
			commands.Leaf("count", platform.OptionInteger, false, "how many"),
		),
	)
}

func TestParseStructured_DeclarationOrder(t *testing.T) {
	opt := platform.Option{Name: "pin", Type: platform.OptionSubcommandGroup, Options: []platform.Option{{
		Name: "add", Type: platform.OptionSubcommand,
		Options: []platform.Option{
			{Name: "note", Type: platform.OptionString, Value: "great find"},
			{Name: "message", Type: platform.OptionString, Value: "123"},
		},
	}}}

	req, err := commands.ParseStructured(pinGroup(), opt, "list")
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if req.Command != "add" {
		t.Errorf("Command: got %q", req.Command)
	}
	if want := []string{"123", "great find"}; !reflect.DeepEqual(req.Args, want) {
		t.Errorf("Args: got %q, want %q", req.Args, want)
	}
}

func TestParseStructured_StringifiesIntegers(t *testing.T) {
	opt := platform.Option{Name: "pin", Options: []platform.Option{{
		Name: "remove", Type: platform.OptionSubcommand,
		Options: []platform.Option{{Name: "id", Type: platform.OptionInteger, Value: float64(7)}},
	}}}
	req, err := commands.ParseStructured(pinGroup(), opt, "list")
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if want := []string{"7"}; !reflect.DeepEqual(req.Args, want) {
		t.Errorf("Args: got %q, want %q", req.Args, want)
	}
}

func TestParseStructured_OptionalOmitted(t *testing.T) {
	opt := platform.Option{Name: "pin", Options: []platform.Option{{Name: "list", Type: platform.OptionSubcommand}}}
	req, err := commands.ParseStructured(pinGroup(), opt, "list")
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if req.Command != "list" || len(req.Args) != 0 {
		t.Errorf("got %+v", req)
	}
}

func TestParseStructured_MissingRequired(t *testing.T) {
	opt := platform.Option{Name: "pin", Options: []platform.Option{{Name: "remove", Type: platform.OptionSubcommand}}}
	if _, err := commands.ParseStructured(pinGroup(), opt, "list"); err == nil {
		t.Fatal("expected error for missing required id")
	}
}

func TestParseStructured_UnknownSubcommandFallsThrough(t *testing.T) {
	opt := platform.Option{Name: "pin", Options: []platform.Option{{
		Name: "Export", Type: platform.OptionSubcommand,
		Options: []platform.Option{{Name: "format", Type: platform.OptionString, Value: "csv"}},
	}}}
	req, err := commands.ParseStructured(pinGroup(), opt, "list")
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if req.Command != "export" || !reflect.DeepEqual(req.Args, []string{"csv"}) {
		t.Errorf("got %+v", req)
	}
}

func TestParseStructured_BareGroupUsesDefault(t *testing.T) {
	req, err := commands.ParseStructured(pinGroup(), platform.Option{Name: "pin"}, "list")
	if err != nil {
		t.Fatalf("ParseStructured: %v", err)
	}
	if req.Command != "list" {
		t.Errorf("Command: got %q, want list", req.Command)
	}
}

func TestParseStructured_WrongNamespace(t *testing.T) {
	if _, err := commands.ParseStructured(pinGroup(), platform.Option{Name: "todo"}, "list"); err == nil {
		t.Fatal("expected namespace mismatch error")
	}
}

func TestTable_Lookup(t *testing.T) {
	table := commands.NewTable[string]()
	table.Register("pin", "list", "list-handler")
	table.Register("PIN", "Add", "add-handler")

	h, ok := table.Lookup(commands.Request{Namespace: "pin", Command: "add"})
	if !ok || h != "add-handler" {
		t.Errorf("Lookup(pin add) = %q, %v", h, ok)
	}
	if _, ok := table.Lookup(commands.Request{Namespace: "pin", Command: "nope"}); ok {
		t.Error("Lookup(pin nope) should miss")
	}
	if h, ok := table.Lookup(commands.Request{Namespace: "Pin", Command: "LIST"}); !ok || h != "list-handler" {
		t.Errorf("Lookup is case-insensitive, got %q, %v", h, ok)
	}
}
