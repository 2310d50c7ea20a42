package orchestrator

import (
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/crew/pkg/models"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name    string
		content string
		found   bool
		wantErr bool
		tool    string
		action  string
		args    map[string]string
	}{
		{
			name:    "plain",
			content: `CALL_TOOL: fs({"action":"read","path":"a.go"})`,
			found:   true, tool: "fs",
			args: map[string]string{"action": "read", "path": "a.go"},
		},
		{
			name:    "dotted action merged",
			content: "I'll write it now.\nCALL_TOOL: fs.write({\"path\":\"a.go\",\"content\":\"x\"})",
			found:   true, tool: "fs", action: "write",
			args: map[string]string{"action": "write", "path": "a.go"},
		},
		{
			name:    "explicit action wins over dotted",
			content: `CALL_TOOL: fs.write({"action":"append","path":"a.go"})`,
			found:   true, tool: "fs", action: "write",
			args: map[string]string{"action": "append"},
		},
		{
			name:    "missing args default to object",
			content: `CALL_TOOL: fs.list`,
			found:   true, tool: "fs", action: "list",
			args: map[string]string{"action": "list"},
		},
		{
			name:    "empty parens",
			content: `CALL_TOOL: terminal()`,
			found:   true, tool: "terminal",
		},
		{
			name:    "parens inside strings",
			content: `CALL_TOOL: fs.write({"path":"a.go","content":"f(x) }"}) and then more text (aside)`,
			found:   true, tool: "fs", action: "write",
			args: map[string]string{"content": "f(x) }"},
		},
		{
			name:    "malformed json",
			content: `CALL_TOOL: fs.write({"path": )`,
			found:   true, wantErr: true,
		},
		{
			name:    "array is not an object",
			content: `CALL_TOOL: fs(["a"])`,
			found:   true, wantErr: true,
		},
		{
			name:    "unterminated",
			content: `CALL_TOOL: fs({"path":"a.go"}`,
			found:   true, wantErr: true,
		},
		{
			name:    "no call",
			content: "Just chatting about @dev's work.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, found, err := ParseToolCall(tt.content)
			if found != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, found)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedToolCall) {
					t.Fatalf("expected ErrMalformedToolCall, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !found {
				return
			}
			if call.Name != tt.tool || call.Action != tt.action {
				t.Errorf("expected %s.%s, got %s.%s", tt.tool, tt.action, call.Name, call.Action)
			}
			if !gjson.Valid(call.Args) {
				t.Fatalf("expected valid JSON args, got %q", call.Args)
			}
			for k, v := range tt.args {
				if got := gjson.Get(call.Args, k).String(); got != v {
					t.Errorf("expected %s=%q, got %q", k, v, got)
				}
			}
		})
	}
}

func TestToolCallString_RoundTrips(t *testing.T) {
	in := ToolCall{Name: "fs", Action: "write", Args: `{"path":"a.go","action":"write"}`}
	out, found, err := ParseToolCall("prefix " + in.String())
	if !found || err != nil {
		t.Fatalf("expected to parse own encoding, got %v %v", found, err)
	}
	if out.Name != in.Name || out.Action != in.Action || out.Args != in.Args {
		t.Errorf("expected %+v, got %+v", in, out)
	}
}

func TestIsFileWrite(t *testing.T) {
	tests := []struct {
		call ToolCall
		want bool
	}{
		{ToolCall{Name: "fs", Args: `{"action":"write"}`}, true},
		{ToolCall{Name: "FileSystem", Args: `{"action":"Delete"}`}, true},
		{ToolCall{Name: "fs", Args: `{"action":"read"}`}, false},
		{ToolCall{Name: "fs", Args: `{}`}, false},
		{ToolCall{Name: "terminal", Args: `{"action":"write"}`}, false},
	}
	for _, tt := range tests {
		if got := IsFileWrite(tt.call); got != tt.want {
			t.Errorf("%s %s: expected %v, got %v", tt.call.Name, tt.call.Args, tt.want, got)
		}
	}
}

func TestCheckRoleGuardrails(t *testing.T) {
	write := ToolCall{Name: "fs", Args: `{"action":"write","path":"a.go"}`}
	read := ToolCall{Name: "fs", Args: `{"action":"read","path":"a.go"}`}
	qa := models.Member{ID: "qa", Role: "QA"}
	lead := models.Member{ID: "lead", Role: "Team Lead"}
	dev := models.Member{ID: "dev", Role: "Engineer"}

	tests := []struct {
		name      string
		member    models.Member
		isLead    bool
		call      ToolCall
		hasTask   bool
		denied    bool
		toLead    bool
		reminders bool
	}{
		{"qa write", qa, false, write, true, true, true, false},
		{"qa read", qa, false, read, false, false, false, false},
		{"lead write", lead, true, write, false, true, false, true},
		{"dev without task", dev, false, write, false, true, true, false},
		{"dev with task", dev, false, write, true, false, false, false},
		{"dev read without task", dev, false, read, false, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, denied := checkRoleGuardrails(tt.member, tt.isLead, tt.call, tt.hasTask)
			if denied != tt.denied {
				t.Fatalf("expected denied=%v, got %v", tt.denied, denied)
			}
			if d.routeToLead != tt.toLead || d.remindAssignees != tt.reminders {
				t.Errorf("unexpected denial %+v", d)
			}
			if denied && d.notice == "" {
				t.Error("expected a notice")
			}
		})
	}
}
