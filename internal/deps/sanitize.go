package deps

import (
	"path/filepath"
	"strings"
)

// searchPathVars are the compiler search-path variables that third-party
// scientific-computing distributions are known to contaminate with
// incompatible headers and libraries.
var searchPathVars = map[string]bool{
	"CPATH":             true,
	"C_INCLUDE_PATH":    true,
	"CPLUS_INCLUDE_PATH": true,
	"LIBRARY_PATH":      true,
	"LD_LIBRARY_PATH":   true,
}

// conflictMarkers identify path entries injected by such distributions.
var conflictMarkers = []string{"anaconda", "miniconda", "miniforge", "mambaforge", "condabin"}

// SanitizeSearchPaths returns a copy of env with known-conflicting
// distribution entries removed from the compiler search-path variables.
// Only the offending entries are dropped; everything else, including entry
// order, is preserved. The input slice is never mutated, so the filtering
// stays scoped to the child process it is passed to.
func SanitizeSearchPaths(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		i := strings.IndexByte(kv, '=')
		if i < 0 || !searchPathVars[kv[:i]] {
			out = append(out, kv)
			continue
		}
		key, val := kv[:i], kv[i+1:]
		kept := make([]string, 0, 4)
		for _, entry := range filepath.SplitList(val) {
			if entry != "" && !hasConflictMarker(entry) {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			continue
		}
		out = append(out, key+"="+strings.Join(kept, string(filepath.ListSeparator)))
	}
	return out
}

func hasConflictMarker(entry string) bool {
	lower := strings.ToLower(entry)
	for _, m := range conflictMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
