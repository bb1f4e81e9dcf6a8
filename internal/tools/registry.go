// Package tools assembles the agent's tool registry from the category
// packages.
package tools

import (
	"github.com/clio-agent/clio/internal/agent"
	"github.com/clio-agent/clio/internal/memory"
	"github.com/clio-agent/clio/internal/results"
	"github.com/clio-agent/clio/internal/tools/collab"
	"github.com/clio-agent/clio/internal/tools/filesystem"
	"github.com/clio-agent/clio/internal/tools/git"
	"github.com/clio-agent/clio/internal/tools/intel"
	"github.com/clio-agent/clio/internal/tools/memoryops"
	"github.com/clio-agent/clio/internal/tools/resultread"
	"github.com/clio-agent/clio/internal/tools/shell"
	"github.com/clio-agent/clio/internal/tools/todo"
	"github.com/clio-agent/clio/internal/tools/web"
)

// Deps carries everything the tool adapters need from the host process.
type Deps struct {
	WorkDir     string
	Results     *results.Store
	ShortMemory memory.Store
	LongMemory  memory.Store // nil disables the long scope
	Collab      collab.Channel
}

// NewRegistry builds the full tool registry for a session.
func NewRegistry(deps Deps) agent.Registry {
	reg := make(agent.Registry)

	add := func(t agent.Tool) { reg[t.Name] = t }

	add(filesystem.NewTool(deps.WorkDir).Definition())
	add(shell.NewTool(deps.WorkDir).Definition())
	add(git.NewTool(deps.WorkDir).Definition())
	add(web.NewTool().Definition())
	add(intel.NewCodeOutlineTool())
	add(todo.NewTool().Definition())

	if deps.Results != nil {
		add(resultread.NewTool(deps.Results).Definition())
	}
	if deps.ShortMemory != nil {
		long := deps.LongMemory
		if long == nil {
			long = deps.ShortMemory
		}
		add(memoryops.NewTool(deps.ShortMemory, long).Definition())
	}
	if deps.Collab != nil {
		add(collab.NewTool(deps.Collab).Definition())
	}

	return reg
}
