// Package tags implements the set algebra over user tags: tags compare
// case-insensitively, keep the casing they were first seen with, and keep
// their insertion order for display.
package tags

import (
	"strings"

	"github.com/mwantia/xmeta/data"
	"golang.org/x/text/cases"
)

// folder builds comparison keys with Unicode case folding. No collation and
// no normalization is applied.
type folder struct {
	caser cases.Caser
}

func newFolder() *folder {
	return &folder{caser: cases.Fold()}
}

func (f *folder) key(tag string) string {
	return f.caser.String(tag)
}

func (f *folder) keys(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[f.key(tag)] = struct{}{}
	}
	return set
}

// Normalize drops empty and whitespace-only entries and removes
// case-insensitive duplicates, keeping the first occurrence.
func Normalize(tags []string) data.TagSet {
	return newFolder().normalize(tags)
}

func (f *folder) normalize(tags []string) data.TagSet {
	result := make(data.TagSet, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))

	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			continue
		}
		k := f.key(tag)
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, tag)
	}

	return result
}

// Set replaces whatever was there with the normalized newTags.
func Set(newTags []string) data.TagSet {
	return Normalize(newTags)
}

// Add returns the union of existing and toAdd. changed is false when toAdd
// contributed nothing new; the result is then the normalized existing set.
func Add(existing data.TagSet, toAdd []string) (data.TagSet, bool) {
	f := newFolder()
	result := f.normalize(existing)
	seen := f.keys(result)

	changed := false
	for _, tag := range f.normalize(toAdd) {
		k := f.key(tag)
		if _, exists := seen[k]; exists {
			continue
		}
		seen[k] = struct{}{}
		result = append(result, tag)
		changed = true
	}

	return result, changed
}

// Clear removes every tag of toRemove from existing. changed is false when
// nothing was removed.
func Clear(existing data.TagSet, toRemove []string) (data.TagSet, bool) {
	f := newFolder()
	normalized := f.normalize(existing)
	remove := f.keys(toRemove)

	result := make(data.TagSet, 0, len(normalized))
	for _, tag := range normalized {
		if _, drop := remove[f.key(tag)]; drop {
			continue
		}
		result = append(result, tag)
	}

	return result, len(result) != len(normalized)
}

// Intersect returns the tags present in every set, in the order and casing
// of the first one. No sets, or any empty set, yields an empty result.
func Intersect(sets ...data.TagSet) data.TagSet {
	if len(sets) == 0 {
		return data.TagSet{}
	}

	f := newFolder()
	result := f.normalize(sets[0])
	for _, other := range sets[1:] {
		keys := f.keys(other)
		kept := result[:0]
		for _, tag := range result {
			if _, ok := keys[f.key(tag)]; ok {
				kept = append(kept, tag)
			}
		}
		result = kept
	}

	return result
}

// Equal reports case-insensitive set equality, ignoring order.
func Equal(a, b data.TagSet) bool {
	f := newFolder()
	ka, kb := f.keys(a), f.keys(b)
	if len(ka) != len(kb) {
		return false
	}
	for k := range ka {
		if _, ok := kb[k]; !ok {
			return false
		}
	}
	return true
}

// Identical reports exact, order-sensitive equality including casing.
func Identical(a, b data.TagSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Merge replaces the shared tags of existing with replacement while keeping
// every tag that was not shared.
func Merge(existing, shared data.TagSet, replacement []string) data.TagSet {
	private, _ := Clear(existing, shared)
	merged, _ := Add(private, replacement)
	return merged
}
