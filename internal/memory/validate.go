package memory

import (
	"strings"

	"github.com/octobrain/octobrain/internal/ferrors"
	"github.com/octobrain/octobrain/internal/store"
)

// validateMemorize validates in and normalizes in.Tags in place (see
// normalizeTags), so callers must read in.Tags back after this returns.
func validateMemorize(in *MemorizeInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return ferrors.InvalidInputf("title must not be empty")
	}
	if strings.TrimSpace(in.Content) == "" {
		return ferrors.InvalidInputf("content must not be empty")
	}
	if len(in.Content) > store.MaxContentBytes {
		return ferrors.InvalidInputf("content exceeds maximum size of %d bytes", store.MaxContentBytes)
	}
	if _, ok := store.ValidMemoryTypes[in.MemoryType]; !ok {
		return ferrors.InvalidInputf("unknown memory type %q", in.MemoryType)
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags
	if in.Importance < 0 || in.Importance > 1 {
		return ferrors.InvalidInputf("importance must be in [0,1], got %v", in.Importance)
	}
	return nil
}

// normalizeTags enforces spec.md §3's Memory.tags invariant: each tag is
// a lowercase string with no whitespace, and the set is deduplicated.
// Tags differing only by case or surrounding whitespace collapse to one
// entry, first-occurrence order preserved.
func normalizeTags(tags []string) ([]string, error) {
	if len(tags) > store.MaxTags {
		return nil, ferrors.InvalidInputf("too many tags: %d exceeds maximum of %d", len(tags), store.MaxTags)
	}

	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return nil, ferrors.InvalidInputf("tags must not be empty")
		}
		if len(trimmed) > store.MaxTagLength {
			return nil, ferrors.InvalidInputf("tag %q exceeds maximum length of %d", t, store.MaxTagLength)
		}
		if strings.ContainsAny(trimmed, " \t\n\r\v\f") {
			return nil, ferrors.InvalidInputf("tag %q must not contain whitespace", t)
		}

		lower := strings.ToLower(trimmed)
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out, nil
}
