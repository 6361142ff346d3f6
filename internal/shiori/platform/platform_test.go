package platform_test

import (
	"testing"

	"github.com/bdobrica/Shiori/internal/shiori/platform"
)

func TestOption_StringValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{value: nil, want: ""},
		{value: "great find", want: "great find"},
		{value: float64(3), want: "3"},
		{value: 2.5, want: "2.5"},
		{value: 7, want: "7"},
		{value: int64(123456789012345678), want: "123456789012345678"},
		{value: true, want: "true"},
		{value: []string{"x"}, want: ""},
	}
	for _, tt := range tests {
		if got := (platform.Option{Value: tt.value}).StringValue(); got != tt.want {
			t.Errorf("StringValue(%#v): got %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestOption_Find(t *testing.T) {
	opt := platform.Option{Name: "add", Type: platform.OptionSubcommand, Options: []platform.Option{
		{Name: "message", Type: platform.OptionString, Value: "1"},
		{Name: "note", Type: platform.OptionString, Value: "n"},
	}}
	if got, ok := opt.Find("note"); !ok || got.Value != "n" {
		t.Errorf("Find(note): got %+v, %v", got, ok)
	}
	if _, ok := opt.Find("missing"); ok {
		t.Error("Find(missing) should fail")
	}
}

func TestOptionType_IsLeaf(t *testing.T) {
	if platform.OptionSubcommand.IsLeaf() || platform.OptionSubcommandGroup.IsLeaf() {
		t.Error("subcommands are not leaves")
	}
	if !platform.OptionString.IsLeaf() || !platform.OptionInteger.IsLeaf() || !platform.OptionBoolean.IsLeaf() {
		t.Error("value types are leaves")
	}
}
