package tools

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/crew/pkg/models"
)

// RecorderName is the registered name of the dry-run file-system tool.
const RecorderName = "fs"

// Write records one mutation applied by the Recorder.
type Write struct {
	AgentID string
	Action  string
	Path    string
	Bytes   int
}

// Recorder is a dry-run file-system tool. It keeps files in memory and
// records every mutation, so demo sessions and tests never touch disk.
//
// Actions: read, write, append, edit, list, delete, move. Strict sandboxes
// may only read and list; guided sandboxes are confined to relative paths.
type Recorder struct {
	files  map[string]string
	writes []Write
	mu     sync.Mutex
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{files: make(map[string]string)}
}

// Name implements Tool.
func (r *Recorder) Name() string { return RecorderName }

// Seed stores a file without recording a write.
func (r *Recorder) Seed(p, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path.Clean(p)] = content
}

// File returns the stored content of p.
func (r *Recorder) File(p string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.files[path.Clean(p)]
	return c, ok
}

// Writes returns recorded mutations in order.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// Execute implements Tool.
func (r *Recorder) Execute(_ context.Context, args string, opts Options) (models.ToolResult, error) {
	if args == "" {
		args = "{}"
	}
	if !gjson.Valid(args) {
		return fail("invalid arguments: not a JSON object"), nil
	}
	action := strings.ToLower(gjson.Get(args, "action").String())
	if action == "" {
		action = "read"
	}
	p := gjson.Get(args, "path").String()

	if opts.Sandbox == models.SandboxStrict && action != "read" && action != "list" {
		return fail(fmt.Sprintf("action %q not permitted in strict sandbox", action)), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch action {
	case "read":
		if err := r.checkPath(p, opts); err != "" {
			return fail(err), nil
		}
		content, ok := r.files[path.Clean(p)]
		if !ok {
			return fail("file not found: " + p), nil
		}
		return succeed(content), nil

	case "write", "append":
		if err := r.checkPath(p, opts); err != "" {
			return fail(err), nil
		}
		content := gjson.Get(args, "content").String()
		clean := path.Clean(p)
		if action == "append" {
			content = r.files[clean] + content
		}
		r.files[clean] = content
		r.record(opts.AgentID, action, clean, len(content))
		return succeed(fmt.Sprintf("wrote %d bytes to %s", len(content), clean)), nil

	case "edit":
		if err := r.checkPath(p, opts); err != "" {
			return fail(err), nil
		}
		clean := path.Clean(p)
		content, ok := r.files[clean]
		if !ok {
			return fail("file not found: " + p), nil
		}
		oldStr := gjson.Get(args, "old_string").String()
		newStr := gjson.Get(args, "new_string").String()
		count := strings.Count(content, oldStr)
		if oldStr == "" || count == 0 {
			return fail("old_string not found in file"), nil
		}
		if count > 1 && !gjson.Get(args, "replace_all").Bool() {
			return fail(fmt.Sprintf("old_string found %d times; must be unique or use replace_all", count)), nil
		}
		content = strings.ReplaceAll(content, oldStr, newStr)
		r.files[clean] = content
		r.record(opts.AgentID, action, clean, len(content))
		return succeed("edited " + clean), nil

	case "list":
		prefix := ""
		if p != "" && p != "." {
			prefix = path.Clean(p) + "/"
		}
		var names []string
		for name := range r.files {
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		if len(names) == 0 {
			return succeed("(empty)"), nil
		}
		return succeed(strings.Join(names, "\n")), nil

	case "delete":
		if err := r.checkPath(p, opts); err != "" {
			return fail(err), nil
		}
		clean := path.Clean(p)
		if _, ok := r.files[clean]; !ok {
			return fail("file not found: " + p), nil
		}
		delete(r.files, clean)
		r.record(opts.AgentID, action, clean, 0)
		return succeed("deleted " + clean), nil

	case "move":
		from := gjson.Get(args, "from").String()
		to := gjson.Get(args, "to").String()
		for _, q := range []string{from, to} {
			if err := r.checkPath(q, opts); err != "" {
				return fail(err), nil
			}
		}
		src, dst := path.Clean(from), path.Clean(to)
		content, ok := r.files[src]
		if !ok {
			return fail("file not found: " + from), nil
		}
		delete(r.files, src)
		r.files[dst] = content
		r.record(opts.AgentID, action, dst, len(content))
		return succeed(fmt.Sprintf("moved %s to %s", src, dst)), nil

	default:
		return fail(fmt.Sprintf("unknown action %q", action)), nil
	}
}

func (r *Recorder) checkPath(p string, opts Options) string {
	if strings.TrimSpace(p) == "" {
		return "missing path"
	}
	if opts.Sandbox == models.SandboxWild {
		return ""
	}
	clean := path.Clean(p)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "path escapes the workspace: " + p
	}
	return ""
}

func (r *Recorder) record(agentID, action, p string, n int) {
	r.writes = append(r.writes, Write{AgentID: agentID, Action: action, Path: p, Bytes: n})
}

func succeed(output string) models.ToolResult {
	return models.ToolResult{ToolName: RecorderName, Success: true, Output: output}
}

func fail(msg string) models.ToolResult {
	return models.ToolResult{ToolName: RecorderName, Success: false, Error: msg}
}
