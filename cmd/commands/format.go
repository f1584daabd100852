package commands

import (
	"sort"

	"github.com/dohr-michael/priomatrix/internal/tasks"
)

func sortedKeys(m map[string]tasks.Status) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
