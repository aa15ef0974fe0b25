package tools

import (
	"github.com/abdul-hamid-achik/codeagent/internal/cache"
	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

// Deps are the collaborators of the default tool set.
type Deps struct {
	Files *cache.PathCache
	Dirs  *cache.PathCache
	Index VectorIndex
	Tools config.ToolsConfig
	Log   *logging.Logger
}

// NewDefaultRegistry registers the eight agent tools.
func NewDefaultRegistry(d Deps) *Registry {
	r := NewRegistry(d.Log)
	r.Register(&ReadFileTool{Cache: d.Files})
	r.Register(&SearchCodeTool{MaxOutput: d.Tools.MaxOutput})
	r.Register(&ListDirectoryTool{Cache: d.Dirs})
	run := &RunCommandTool{
		Timeout:        d.Tools.CommandTimeout,
		MaxOutput:      d.Tools.MaxOutput,
		BlockDangerous: d.Tools.BlockDangerous,
	}
	if d.Tools.Sandbox {
		run.Sandbox = DetectSandbox(SandboxOptions{
			AllowNetwork: d.Tools.SandboxNetwork,
			Writable:     d.Tools.SandboxWritable,
		})
		if _, ok := run.Sandbox.(NoopSandbox); ok {
			d.Log.Warn("no sandbox available, run_command runs unconfined")
		} else {
			d.Log.Info("run_command sandbox", logging.F("sandbox", run.Sandbox.Name()))
		}
	}
	r.Register(run)
	r.Register(&ChangeDirectoryTool{})
	r.Register(&SearchVectorstoreTool{Index: d.Index})
	r.Register(&AddToVectorstoreTool{Index: d.Index})
	r.Register(&IndexCodebaseTool{Index: d.Index})
	return r
}
