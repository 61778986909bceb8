package data

import "testing"

func TestNaming_Shadows(t *testing.T) {
	tests := []struct {
		name     string
		naming   Naming
		key      Key
		expected bool
	}{
		{"Plain", DefaultNaming, "comment", false},
		{"OpaqueAlias", DefaultNaming, "opaque.bookmarks", true},
		{"OpaqueLookalike", DefaultNaming, "opaqueness", false},
		{"ShorterOpaque", Naming{IndexedPrefix: "user.m.idx.", OpaquePrefix: "user.m."}, "idx.tags", true},
		{"Disjoint", Naming{IndexedPrefix: "user.a.", OpaquePrefix: "user.b."}, "opaque.x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(tst *testing.T) {
			if got := tt.naming.Shadows(tt.key); got != tt.expected {
				tst.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestClassOf(t *testing.T) {
	for _, key := range DictionaryKeys() {
		if !IsKnown(key) || ClassOf(key) != Indexed {
			t.Errorf("Expected '%s' to be a known indexed key", key)
		}
	}
	if IsKnown("custom") || ClassOf("custom") != Opaque {
		t.Errorf("Expected unknown keys to classify as opaque")
	}
}
