// Package command defines the fixed voice-command vocabulary of the browser:
// the command identifiers, the actions produced by the voice pipeline, and
// the table of phonetic surface forms each command is recognised by.
package command

import "fmt"

// ScrollDistance is the distance in pixels the browser layer scrolls for a
// single [ScrollUp] or [ScrollDown] action.
const ScrollDistance = 350

// ID identifies a voice command.
type ID int

const (
	// NoAction means nothing was recognised.
	NoAction ID = iota
	ScrollUp
	ScrollDown
	Top
	Bottom
	Bookmark
	Back
	Refresh
	Forward
	GoTo
	NewTab
	Search
	Zoom
	TabOverview
	ShowBookmarks
	Click
	Check
	VideoInput
	Increase
	Decrease
	Play
	Pause
	Stop
	Mute
	Unmute
	Text
	Remove
	Clear
	Submit
	Close
	Quit
	// ParameterOnly carries dictated free text without a command. It is only
	// produced in [ModeFree].
	ParameterOnly
)

var idNames = [...]string{
	NoAction:      "NO_ACTION",
	ScrollUp:      "SCROLL_UP",
	ScrollDown:    "SCROLL_DOWN",
	Top:           "TOP",
	Bottom:        "BOTTOM",
	Bookmark:      "BOOKMARK",
	Back:          "BACK",
	Refresh:       "REFRESH",
	Forward:       "FORWARD",
	GoTo:          "GO_TO",
	NewTab:        "NEW_TAB",
	Search:        "SEARCH",
	Zoom:          "ZOOM",
	TabOverview:   "TAB_OVERVIEW",
	ShowBookmarks: "SHOW_BOOKMARKS",
	Click:         "CLICK",
	Check:         "CHECK",
	VideoInput:    "VIDEO_INPUT",
	Increase:      "INCREASE",
	Decrease:      "DECREASE",
	Play:          "PLAY",
	Pause:         "PAUSE",
	Stop:          "STOP",
	Mute:          "MUTE",
	Unmute:        "UNMUTE",
	Text:          "TEXT",
	Remove:        "REMOVE",
	Clear:         "CLEAR",
	Submit:        "SUBMIT",
	Close:         "CLOSE",
	Quit:          "QUIT",
	ParameterOnly: "PARAMETER_ONLY",
}

// String returns the SCREAMING_SNAKE name of id.
func (id ID) String() string {
	if id >= 0 && int(id) < len(idNames) {
		return idNames[id]
	}
	return fmt.Sprintf("ID(%d)", int(id))
}

// Mode selects which vocabulary subset is eligible and which recognition
// model the transcription backend uses.
type Mode int

const (
	// ModeCommand restricts matching to browsing commands.
	ModeCommand Mode = iota
	// ModeFree is used during text entry. Unmatched speech is dictation.
	ModeFree
)

// String returns "COMMAND" or "FREE".
func (m Mode) String() string {
	switch m {
	case ModeCommand:
		return "COMMAND"
	case ModeFree:
		return "FREE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Action is the outcome of one recognition step, consumed by the browser
// interaction layer.
type Action struct {
	Command   ID
	Parameter string
}

// None is the action returned when nothing was recognised.
var None = Action{Command: NoAction}

// String renders the action for diagnostics, e.g. "GO_TO wikipedia".
func (a Action) String() string {
	if a.Parameter == "" {
		return a.Command.String()
	}
	return a.Command.String() + " " + a.Parameter
}
