package route

// Filter returns the well-formed keys that match at least one include and no
// exclude, in candidate order. A nil includes list includes every key; an
// empty, non-nil list includes none. Excludes always win over includes.
func Filter(keys []string, includes, excludes []Pattern) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if !Valid(key) {
			continue
		}
		if includes != nil && !matchAny(key, includes) {
			continue
		}
		if matchAny(key, excludes) {
			continue
		}
		out = append(out, key)
	}
	return out
}

func matchAny(key string, patterns []Pattern) bool {
	for _, p := range patterns {
		if p.Match(key) {
			return true
		}
	}
	return false
}
