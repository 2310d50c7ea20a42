package orchestrator

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/crew/internal/parallel"
	"github.com/ShayCichocki/crew/pkg/models"
)

// writeActions are file-system actions that mutate the workspace.
var writeActions = map[string]bool{
	"write":  true,
	"append": true,
	"edit":   true,
	"create": true,
	"delete": true,
	"remove": true,
	"move":   true,
	"rename": true,
	"mkdir":  true,
}

// IsFileWrite reports whether a tool call writes to the file system.
func IsFileWrite(call ToolCall) bool {
	if !parallel.IsFileSystemTool(call.Name) {
		return false
	}
	action := strings.ToLower(gjson.Get(call.Args, "action").String())
	return writeActions[action]
}

// denial is the outcome of a role guardrail that blocked a tool call.
type denial struct {
	// notice is the system message explaining the block.
	notice string
	// routeToLead schedules a followup for the lead.
	routeToLead bool
	// remindAssignees schedules mention turns for agents holding active tasks
	// plus a followup for the lead itself.
	remindAssignees bool
}

// checkRoleGuardrails decides whether member may run call. hasActiveTask
// reports whether the member owns a non-terminal task.
func checkRoleGuardrails(member models.Member, isLead bool, call ToolCall, hasActiveTask bool) (denial, bool) {
	if !IsFileWrite(call) {
		return denial{}, false
	}
	name := member.DisplayName()
	switch {
	case member.IsQA():
		return denial{
			notice:      fmt.Sprintf("%s is QA and may not write files. Report findings to the lead instead.", name),
			routeToLead: true,
		}, true
	case isLead:
		return denial{
			notice:          fmt.Sprintf("%s is the team lead and may not write files. Delegate the work to a teammate with an @mention.", name),
			remindAssignees: true,
		}, true
	case !hasActiveTask:
		return denial{
			notice:      fmt.Sprintf("%s has no assigned task. Ask the lead for an assignment before writing files.", name),
			routeToLead: true,
		}, true
	}
	return denial{}, false
}
