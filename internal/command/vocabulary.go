package command

// Entry maps one command to the surface forms it is recognised by.
type Entry struct {
	ID ID

	// Variants are the phonetic surface forms. Variants[0] is the canonical
	// form used in logs and diagnostics.
	Variants []string

	// TakesParameter reports whether the words following the command form its
	// free-text parameter (e.g. the address for [GoTo]).
	TakesParameter bool

	// FreeMode reports whether the entry is usable while typing.
	FreeMode bool
}

// Canonical returns the first variant, or the command name if there is none.
func (e Entry) Canonical() string {
	if len(e.Variants) == 0 {
		return e.ID.String()
	}
	return e.Variants[0]
}

// Vocabulary is an immutable, ordered command table. Order matters: the
// matcher resolves ties in favour of earlier entries. A Vocabulary is safe for
// concurrent use.
type Vocabulary struct {
	entries []Entry
	free    []Entry
	byID    map[ID]int
}

// NewVocabulary builds a vocabulary from entries in the given order. Later
// entries with a duplicate ID are still matched but Lookup returns the first.
func NewVocabulary(entries ...Entry) *Vocabulary {
	v := &Vocabulary{
		entries: make([]Entry, 0, len(entries)),
		byID:    make(map[ID]int, len(entries)),
	}
	for _, e := range entries {
		e.Variants = append([]string(nil), e.Variants...)
		if _, dup := v.byID[e.ID]; !dup {
			v.byID[e.ID] = len(v.entries)
		}
		v.entries = append(v.entries, e)
		if e.FreeMode {
			v.free = append(v.free, e)
		}
	}
	return v
}

// EntriesUsableIn returns the entries eligible in mode: those with FreeMode set
// for [ModeFree], all entries for [ModeCommand]. The returned slice must not be
// modified.
func (v *Vocabulary) EntriesUsableIn(mode Mode) []Entry {
	if mode == ModeFree {
		return v.free
	}
	return v.entries
}

// Entries returns all entries in table order. The returned slice must not be
// modified.
func (v *Vocabulary) Entries() []Entry {
	return v.entries
}

// Lookup returns the entry for id.
func (v *Vocabulary) Lookup(id ID) (Entry, bool) {
	i, ok := v.byID[id]
	if !ok {
		return Entry{}, false
	}
	return v.entries[i], true
}

// Names returns the canonical form of every entry usable in mode.
func (v *Vocabulary) Names(mode Mode) []string {
	entries := v.EntriesUsableIn(mode)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Canonical()
	}
	return names
}

// Len returns the number of entries.
func (v *Vocabulary) Len() int {
	return len(v.entries)
}

// Default returns the browser's English command table. Misrecognitions that
// the transcription service commonly produces are listed as extra variants.
func Default() *Vocabulary {
	return NewVocabulary(
		Entry{ID: ScrollUp, Variants: []string{"scroll up", "up", "app", "call down"}},
		Entry{ID: ScrollDown, Variants: []string{"scroll down", "down", "town", "dawn", "dumb", "call up", "trov down"}},
		Entry{ID: Top, Variants: []string{"top", "talk"}},
		Entry{ID: Bottom, Variants: []string{"bottom", "button", "boredom", "autumn"}},
		Entry{ID: Bookmark, Variants: []string{"bookmark"}},
		Entry{ID: Back, Variants: []string{"back"}},
		Entry{ID: Refresh, Variants: []string{"reload", "refresh"}},
		Entry{ID: Forward, Variants: []string{"forward", "for what", "for want"}},
		Entry{ID: GoTo, Variants: []string{"go to", "visit"}, TakesParameter: true},
		Entry{ID: NewTab, Variants: []string{"new tab", "new tap", "utep"}, TakesParameter: true},
		Entry{ID: Search, Variants: []string{"search"}, TakesParameter: true},
		Entry{ID: Zoom, Variants: []string{"zoom"}},
		Entry{ID: TabOverview, Variants: []string{"tab overview", "tap overview"}},
		Entry{ID: ShowBookmarks, Variants: []string{"show bookmarks"}},
		Entry{ID: Click, Variants: []string{"click", "lick", "blick", "clique", "clip", "kik", "nick", "dick", "big"}, TakesParameter: true},
		Entry{ID: Check, Variants: []string{"check", "chuck", "checkbox", "checkbook's"}},
		Entry{ID: VideoInput, Variants: []string{"video", "video input"}},
		Entry{ID: Increase, Variants: []string{"increase", "increase volume", "increase sound"}},
		Entry{ID: Decrease, Variants: []string{"decrease", "decrease volume", "decrease sound"}},
		Entry{ID: Play, Variants: []string{"play"}},
		Entry{ID: Pause, Variants: []string{"pause"}},
		Entry{ID: Stop, Variants: []string{"stop"}},
		Entry{ID: Mute, Variants: []string{"mute"}},
		Entry{ID: Unmute, Variants: []string{"unmute"}},
		Entry{ID: Text, Variants: []string{"text", "type"}, TakesParameter: true},
		Entry{ID: Remove, Variants: []string{"remove"}, FreeMode: true},
		Entry{ID: Clear, Variants: []string{"clear", "thalia", "clea"}, FreeMode: true},
		Entry{ID: Submit, Variants: []string{"submit"}, FreeMode: true},
		Entry{ID: Close, Variants: []string{"close"}, FreeMode: true},
		Entry{ID: Quit, Variants: []string{"quit"}},
	)
}
