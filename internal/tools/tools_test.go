package tools

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/crew/pkg/models"
)

type stubTool struct {
	name   string
	result models.ToolResult
	err    error
}

func (s stubTool) Name() string { return s.name }

func (s stubTool) Execute(context.Context, string, Options) (models.ToolResult, error) {
	return s.result, s.err
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d := NewDispatcher()
	res, err := d.Execute(context.Background(), "terminal", `{}`, Options{AgentID: "dev"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("expected ErrUnknownTool, got %v", err)
	}
	if res.Success || res.ToolName != "terminal" || !strings.Contains(res.Error, "terminal") {
		t.Errorf("expected failed result naming the tool, got %+v", res)
	}
	if audit := d.Audit(); len(audit) != 1 || audit[0].AgentID != "dev" {
		t.Errorf("expected unknown call to be audited, got %+v", audit)
	}
}

func TestDispatcher_ToolErrorBecomesFailedResult(t *testing.T) {
	d := NewDispatcher(stubTool{name: "broken", err: errors.New("crashed")})
	res, err := d.Execute(context.Background(), "BROKEN", `{}`, Options{})
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if res.Success || res.Error != "crashed" || res.ToolName != "BROKEN" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestDispatcher_StampsDuration(t *testing.T) {
	d := NewDispatcher(stubTool{name: "slow", result: models.ToolResult{Success: true}})
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	d.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	res, err := d.Execute(context.Background(), "slow", `{}`, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DurationMs != 250 {
		t.Errorf("expected 250ms, got %d", res.DurationMs)
	}
	if res.ToolName != "slow" {
		t.Errorf("expected tool name to be filled, got %q", res.ToolName)
	}
}

func TestDispatcher_AuditIsAppendOnly(t *testing.T) {
	d := NewDispatcher(NewRecorder())
	ctx := context.Background()
	d.Execute(ctx, "fs", `{"action":"write","path":"a.txt","content":"x"}`, Options{AgentID: "a"})
	d.Execute(ctx, "fs", `{"action":"read","path":"a.txt"}`, Options{AgentID: "b"})

	audit := d.Audit()
	if len(audit) != 2 || audit[0].AgentID != "a" || audit[1].AgentID != "b" {
		t.Fatalf("expected two entries in order, got %+v", audit)
	}
	audit[0].AgentID = "mutated"
	if d.Audit()[0].AgentID != "a" {
		t.Error("expected Audit to return a copy")
	}
	if got := d.Names(); !reflect.DeepEqual(got, []string{"fs"}) {
		t.Errorf("expected [fs], got %v", got)
	}
}

func TestRecorder_Actions(t *testing.T) {
	r := NewRecorder()
	r.Seed("src/main.go", "package main\n")
	ctx := context.Background()
	opts := Options{Sandbox: models.SandboxGuided, AgentID: "dev"}

	tests := []struct {
		name    string
		args    string
		success bool
		output  string
	}{
		{"read seeded", `{"action":"read","path":"src/main.go"}`, true, "package main\n"},
		{"default action is read", `{"path":"src/./main.go"}`, true, "package main\n"},
		{"write", `{"action":"write","path":"src/a.go","content":"abc"}`, true, "wrote 3 bytes to src/a.go"},
		{"append", `{"action":"append","path":"src/a.go","content":"def"}`, true, "wrote 6 bytes to src/a.go"},
		{"edit", `{"action":"edit","path":"src/a.go","old_string":"cd","new_string":"CD"}`, true, "edited src/a.go"},
		{"list", `{"action":"list","path":"src"}`, true, "src/a.go\nsrc/main.go"},
		{"move", `{"action":"move","from":"src/a.go","to":"lib/a.go"}`, true, "moved src/a.go to lib/a.go"},
		{"delete", `{"action":"delete","path":"lib/a.go"}`, true, "deleted lib/a.go"},
		{"read missing", `{"action":"read","path":"lib/a.go"}`, false, ""},
		{"escape", `{"action":"write","path":"../etc/passwd","content":"x"}`, false, ""},
		{"absolute", `{"action":"read","path":"/etc/passwd"}`, false, ""},
		{"unknown action", `{"action":"chmod","path":"src/main.go"}`, false, ""},
		{"invalid json", `{"path":`, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Execute(ctx, tt.args, opts)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Success != tt.success {
				t.Fatalf("expected success=%v, got %+v", tt.success, res)
			}
			if tt.success && res.Output != tt.output {
				t.Errorf("expected output %q, got %q", tt.output, res.Output)
			}
		})
	}

	writes := r.Writes()
	if len(writes) != 5 {
		t.Fatalf("expected 5 recorded writes, got %+v", writes)
	}
	if writes[0].AgentID != "dev" || writes[0].Path != "src/a.go" {
		t.Errorf("unexpected first write %+v", writes[0])
	}
}

func TestRecorder_StrictSandboxIsReadOnly(t *testing.T) {
	r := NewRecorder()
	r.Seed("a.txt", "hi")
	ctx := context.Background()
	strict := Options{Sandbox: models.SandboxStrict}

	if res, _ := r.Execute(ctx, `{"action":"read","path":"a.txt"}`, strict); !res.Success {
		t.Errorf("expected read to be allowed, got %+v", res)
	}
	if res, _ := r.Execute(ctx, `{"action":"write","path":"a.txt","content":"x"}`, strict); res.Success {
		t.Error("expected write to be denied")
	}
	if c, _ := r.File("a.txt"); c != "hi" {
		t.Errorf("expected file untouched, got %q", c)
	}
}

func TestRecorder_WildAllowsAbsolutePaths(t *testing.T) {
	r := NewRecorder()
	res, _ := r.Execute(context.Background(), `{"action":"write","path":"/tmp/x","content":"y"}`, Options{Sandbox: models.SandboxWild})
	if !res.Success {
		t.Errorf("expected wild sandbox to allow absolute path, got %+v", res)
	}
}

func TestRecorder_EditRequiresUniqueMatch(t *testing.T) {
	r := NewRecorder()
	r.Seed("a.txt", "x x")
	ctx := context.Background()

	if res, _ := r.Execute(ctx, `{"action":"edit","path":"a.txt","old_string":"x","new_string":"y"}`, Options{}); res.Success {
		t.Fatal("expected ambiguous edit to fail")
	}
	if res, _ := r.Execute(ctx, `{"action":"edit","path":"a.txt","old_string":"x","new_string":"y","replace_all":true}`, Options{}); !res.Success {
		t.Fatalf("expected replace_all edit to succeed, got %+v", res)
	}
	if c, _ := r.File("a.txt"); c != "y y" {
		t.Errorf("expected %q, got %q", "y y", c)
	}
}
