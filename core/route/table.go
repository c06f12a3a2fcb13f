package route

// Entry binds a route key to its handler.
type Entry[H any] struct {
	Key     string
	Handler H
}

// Table is an insertion-ordered mapping of route key to handler.
type Table[H any] struct {
	entries []Entry[H]
	index   map[string]int
}

// NewTable builds a table from entries; a repeated key replaces the earlier
// handler in place.
func NewTable[H any](entries ...Entry[H]) *Table[H] {
	t := &Table[H]{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		t.Set(e.Key, e.Handler)
	}
	return t
}

// Set replaces the handler for key, keeping its position, or appends it.
func (t *Table[H]) Set(key string, h H) {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[key]; ok {
		t.entries[i].Handler = h
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, Entry[H]{Key: key, Handler: h})
}

// Get returns the handler for key.
func (t *Table[H]) Get(key string) (H, bool) {
	i, ok := t.index[key]
	if !ok {
		var zero H
		return zero, false
	}
	return t.entries[i].Handler, true
}

// Len returns the number of entries.
func (t *Table[H]) Len() int {
	return len(t.entries)
}

// Keys returns the keys in order.
func (t *Table[H]) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the entries in order.
func (t *Table[H]) Entries() []Entry[H] {
	return append([]Entry[H](nil), t.entries...)
}

// Filter returns a new table holding only the entries that survive Filter.
func (t *Table[H]) Filter(includes, excludes []Pattern) *Table[H] {
	kept := Filter(t.Keys(), includes, excludes)
	out := &Table[H]{index: make(map[string]int, len(kept))}
	for _, key := range kept {
		h, _ := t.Get(key)
		out.Set(key, h)
	}
	return out
}

// Merge overlays custom on defaults. Custom handlers replace defaults of the
// same key in place; custom-only keys are appended in their own order.
func Merge[H any](defaults, custom *Table[H]) *Table[H] {
	out := &Table[H]{index: make(map[string]int)}
	if defaults != nil {
		for _, e := range defaults.entries {
			out.Set(e.Key, e.Handler)
		}
	}
	if custom != nil {
		for _, e := range custom.entries {
			out.Set(e.Key, e.Handler)
		}
	}
	return out
}
