package deps

import (
	"path/filepath"
	"strings"
	"testing"
)

func joinList(entries ...string) string {
	return strings.Join(entries, string(filepath.ListSeparator))
}

func TestSanitizeRemovesCondaEntries(t *testing.T) {
	env := []string{
		"PATH=/usr/bin",
		"CPATH=" + joinList("/usr/include", "/home/u/anaconda3/include", "/opt/local/include"),
	}
	got := SanitizeSearchPaths(env)
	if len(got) != 2 {
		t.Fatalf("unexpected env: %v", got)
	}
	if got[0] != "PATH=/usr/bin" {
		t.Fatalf("non-search-path vars must pass through: %v", got)
	}
	want := "CPATH=" + joinList("/usr/include", "/opt/local/include")
	if got[1] != want {
		t.Fatalf("got %q want %q", got[1], want)
	}
}

func TestSanitizeDropsFullyContaminatedVar(t *testing.T) {
	env := []string{"LIBRARY_PATH=/home/u/miniconda3/lib"}
	got := SanitizeSearchPaths(env)
	if len(got) != 0 {
		t.Fatalf("fully contaminated var must be dropped: %v", got)
	}
}

func TestSanitizePreservesOrderAndInput(t *testing.T) {
	orig := "CPATH=" + joinList("/a", "/b/mambaforge/x", "/c", "/d")
	env := []string{orig}
	got := SanitizeSearchPaths(env)
	if got[0] != "CPATH="+joinList("/a", "/c", "/d") {
		t.Fatalf("order not preserved: %v", got)
	}
	if env[0] != orig {
		t.Fatal("input slice must not be mutated")
	}
}

func TestSanitizeLeavesUnrelatedPathsAlone(t *testing.T) {
	env := []string{
		"CPATH=/usr/include",
		"HOME=/home/anaconda-fan", // not a search-path var
	}
	got := SanitizeSearchPaths(env)
	if len(got) != 2 || got[1] != env[1] {
		t.Fatalf("unrelated vars must never be filtered: %v", got)
	}
}
