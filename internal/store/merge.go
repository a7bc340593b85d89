package store

import "time"

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// uniqueBy keeps the first occurrence of every key.
func uniqueBy[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// mergeRoomSlice replaces the room's entries with page while keeping entries the page cannot
// know about: those newer than the newest page entry (delivered live before the page landed)
// and those keepExtra selects. Entries of other rooms are untouched.
func mergeRoomSlice[T any](
	existing []T,
	roomID string,
	page []T,
	roomOf func(T) string,
	idOf func(T) string,
	createdAt func(T) time.Time,
	keepExtra func(existing T, ids, correlations map[string]struct{}) bool,
	correlationOf func(T) string,
) []T {
	ids := make(map[string]struct{}, len(page))
	correlations := make(map[string]struct{}, len(page))
	var newest time.Time
	for _, item := range page {
		ids[idOf(item)] = struct{}{}
		if correlationOf != nil {
			if c := correlationOf(item); c != "" {
				correlations[c] = struct{}{}
			}
		}
		if at := createdAt(item); at.After(newest) {
			newest = at
		}
	}

	out := make([]T, 0, len(existing)+len(page))
	retained := make([]T, 0)
	for _, item := range existing {
		if roomOf(item) != roomID {
			out = append(out, item)
			continue
		}
		if _, inPage := ids[idOf(item)]; inPage {
			continue
		}
		if keepExtra != nil && keepExtra(item, ids, correlations) {
			retained = append(retained, item)
			continue
		}
		if correlationOf != nil {
			if _, settled := correlations[correlationOf(item)]; settled && correlationOf(item) != "" {
				continue
			}
		}
		if len(page) == 0 || createdAt(item).After(newest) {
			retained = append(retained, item)
		}
	}

	out = append(out, page...)
	return append(out, retained...)
}
