package testutil

import (
	"sort"
	"strings"
	"testing"

	"github.com/vanderheijden86/triagemap/pkg/model"
)

// AssertNoDuplicateIDs verifies all feature IDs are unique.
func AssertNoDuplicateIDs(t *testing.T, features []model.Feature) {
	t.Helper()
	seen := make(map[int]bool, len(features))
	for _, f := range features {
		if seen[f.ID] {
			t.Errorf("duplicate feature ID: %d", f.ID)
		}
		seen[f.ID] = true
	}
}

// AssertAllValid verifies all features pass validation.
func AssertAllValid(t *testing.T, features []model.Feature) {
	t.Helper()
	for i, f := range features {
		if err := f.Validate(); err != nil {
			t.Errorf("feature %d (id %d) invalid: %v", i, f.ID, err)
		}
	}
}

// AssertSortedIDs verifies an ID slice is sorted ascending with no
// duplicates, the invariant selection and cell ID lists maintain.
func AssertSortedIDs(t *testing.T, ids []int) {
	t.Helper()
	if !sort.IntsAreSorted(ids) {
		t.Errorf("ids not sorted: %v", ids)
		return
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] == ids[i-1] {
			t.Errorf("duplicate id %d at position %d", ids[i], i)
		}
	}
}

// AssertContains fails when s does not contain sub.
func AssertContains(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Errorf("missing %q in:\n%s", sub, s)
	}
}

// AssertNotContains fails when s contains sub.
func AssertNotContains(t *testing.T, s, sub string) {
	t.Helper()
	if strings.Contains(s, sub) {
		t.Errorf("unexpected %q in:\n%s", sub, s)
	}
}
