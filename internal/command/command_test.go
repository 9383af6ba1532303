package command_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/gazevoice/internal/command"
)

func TestID_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   command.ID
		want string
	}{
		{command.NoAction, "NO_ACTION"},
		{command.ScrollUp, "SCROLL_UP"},
		{command.ShowBookmarks, "SHOW_BOOKMARKS"},
		{command.Submit, "SUBMIT"},
		{command.ParameterOnly, "PARAMETER_ONLY"},
		{command.ID(999), "ID(999)"},
	}
	for _, tt := range tests {
		if got := tt.id.String(); got != tt.want {
			t.Errorf("ID(%d).String() = %q, want %q", int(tt.id), got, tt.want)
		}
	}
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	if got := command.ModeCommand.String(); got != "COMMAND" {
		t.Errorf("ModeCommand = %q", got)
	}
	if got := command.ModeFree.String(); got != "FREE" {
		t.Errorf("ModeFree = %q", got)
	}
}

func TestAction_String(t *testing.T) {
	t.Parallel()

	if got := (command.Action{Command: command.GoTo, Parameter: "wikipedia"}).String(); got != "GO_TO wikipedia" {
		t.Errorf("String() = %q", got)
	}
	if got := command.None.String(); got != "NO_ACTION" {
		t.Errorf("None.String() = %q", got)
	}
}

func TestDefault_Table(t *testing.T) {
	t.Parallel()

	v := command.Default()
	if v.Len() != 30 {
		t.Errorf("Len() = %d, want 30", v.Len())
	}

	// Every real command except the sentinels has an entry.
	for id := command.ScrollUp; id < command.ParameterOnly; id++ {
		e, ok := v.Lookup(id)
		if !ok {
			t.Errorf("Lookup(%s) missing", id)
			continue
		}
		if len(e.Variants) == 0 {
			t.Errorf("%s has no variants", id)
		}
	}
	for _, id := range []command.ID{command.NoAction, command.ParameterOnly} {
		if _, ok := v.Lookup(id); ok {
			t.Errorf("Lookup(%s) found a sentinel entry", id)
		}
	}

	params := []command.ID{command.GoTo, command.NewTab, command.Search, command.Click, command.Text}
	for _, e := range v.Entries() {
		if got, want := e.TakesParameter, slices.Contains(params, e.ID); got != want {
			t.Errorf("%s TakesParameter = %v, want %v", e.ID, got, want)
		}
	}

	check, _ := v.Lookup(command.Check)
	if !slices.Equal(check.Variants, []string{"check", "chuck", "checkbox", "checkbook's"}) {
		t.Errorf("CHECK variants = %q", check.Variants)
	}
}

func TestVocabulary_EntriesUsableIn(t *testing.T) {
	t.Parallel()

	v := command.Default()

	if got := len(v.EntriesUsableIn(command.ModeCommand)); got != v.Len() {
		t.Errorf("COMMAND entries = %d, want all %d", got, v.Len())
	}

	var free []command.ID
	for _, e := range v.EntriesUsableIn(command.ModeFree) {
		free = append(free, e.ID)
	}
	want := []command.ID{command.Remove, command.Clear, command.Submit, command.Close}
	if !slices.Equal(free, want) {
		t.Errorf("FREE entries = %v, want %v", free, want)
	}
}

func TestVocabulary_Names(t *testing.T) {
	t.Parallel()

	v := command.NewVocabulary(
		command.Entry{ID: command.Back, Variants: []string{"back"}},
		command.Entry{ID: command.Clear, Variants: []string{"clear", "clea"}, FreeMode: true},
		command.Entry{ID: command.Zoom},
	)
	if got, want := v.Names(command.ModeCommand), []string{"back", "clear", "ZOOM"}; !slices.Equal(got, want) {
		t.Errorf("Names(COMMAND) = %q, want %q", got, want)
	}
	if got, want := v.Names(command.ModeFree), []string{"clear"}; !slices.Equal(got, want) {
		t.Errorf("Names(FREE) = %q, want %q", got, want)
	}
}

func TestNewVocabulary_CopiesVariants(t *testing.T) {
	t.Parallel()

	variants := []string{"back"}
	v := command.NewVocabulary(command.Entry{ID: command.Back, Variants: variants})
	variants[0] = "mutated"

	e, _ := v.Lookup(command.Back)
	if e.Variants[0] != "back" {
		t.Errorf("variant mutated through caller slice: %q", e.Variants[0])
	}
}
