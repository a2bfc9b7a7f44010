package tickets

import (
	"os"
	"sort"
	"strings"
)

// List returns the ids of every ticket under root, sorted. A missing
// tickets directory yields an empty list.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(Dir(root))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(ids)
	return ids, nil
}
