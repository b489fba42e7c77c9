package process

import (
	"sort"
	"strings"
)

// mergeEnv applies overrides on top of base ("KEY=VALUE" entries).
// Overridden keys keep their position; new keys are appended in sorted
// order so the result is deterministic.
func mergeEnv(base []string, overrides map[string]string) []string {
	env := make([]string, 0, len(base)+len(overrides))
	seen := make(map[string]bool, len(overrides))

	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := overrides[key]; ok {
			if seen[key] {
				continue
			}
			seen[key] = true
			env = append(env, key+"="+v)
			continue
		}
		env = append(env, kv)
	}

	added := make([]string, 0, len(overrides))
	for key := range overrides {
		if !seen[key] {
			added = append(added, key)
		}
	}
	sort.Strings(added)
	for _, key := range added {
		env = append(env, key+"="+overrides[key])
	}

	return env
}
