package parallel

import (
	"path"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// ResourceExtractor derives resource keys from a tool call's JSON arguments.
type ResourceExtractor func(args string) []string

// fileSystemTools are the tool names whose "path" argument names a file.
var fileSystemTools = []string{"fs", "file", "filesystem", "file_system"}

// IsFileSystemTool reports whether toolName is one of the file-system tool names.
func IsFileSystemTool(toolName string) bool {
	name := normalizeTool(toolName)
	for _, t := range fileSystemTools {
		if name == t {
			return true
		}
	}
	return false
}

// fileResources returns "file:<path>" for every path-like argument.
// Both "path" and "paths" (array) are recognized; "from"/"to" cover moves.
func fileResources(args string) []string {
	if !gjson.Valid(args) {
		return nil
	}
	var keys []string
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" {
			return
		}
		keys = append(keys, "file:"+path.Clean(p))
	}
	res := gjson.GetMany(args, "path", "from", "to")
	for _, r := range res {
		if r.Type == gjson.String {
			add(r.String())
		}
	}
	gjson.Get(args, "paths").ForEach(func(_, v gjson.Result) bool {
		if v.Type == gjson.String {
			add(v.String())
		}
		return true
	})
	return dedupe(keys)
}

func dedupe(keys []string) []string {
	if len(keys) < 2 {
		return keys
	}
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalizeTool(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
