package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codeagent/internal/agent"
	"github.com/abdul-hamid-achik/codeagent/internal/cache"
	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/embedding"
	"github.com/abdul-hamid-achik/codeagent/internal/index"
	"github.com/abdul-hamid-achik/codeagent/internal/llm"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"github.com/abdul-hamid-achik/codeagent/internal/permissions"
	"github.com/abdul-hamid-achik/codeagent/internal/store"
	"github.com/abdul-hamid-achik/codeagent/internal/tools"
	"github.com/abdul-hamid-achik/codeagent/internal/ui"
)

// app holds the components shared by the subcommands.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	out     *ui.OutputHandler
	in      *ui.InputHandler
	session *tools.Session

	store    store.Store
	index    *index.Index
	registry *tools.Registry
}

// setup loads configuration and logging. The index and tools are built
// lazily by the commands that need them.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadWithOptions(config.LoadOptions{Path: flagConfig})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	switch {
	case flagAuto:
		cfg.Agent.PermissionMode = config.PermissionAuto
	case flagStrict:
		cfg.Agent.PermissionMode = config.PermissionStrict
	case flagAsk:
		cfg.Agent.PermissionMode = config.PermissionAsk
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logCfg := logging.ConfigFromEnv()
	if flagVerbose {
		logCfg = logCfg.WithLevel(logging.LevelDebug)
	}
	log, err := logging.Init(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start logging: %w", err)
	}
	log.Debug("session started", logging.F("command", cmd.CommandPath()), logging.Model(cfg.Model))

	session, err := tools.NewSession(flagDir)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		out:     ui.NewOutputHandler(),
		in:      ui.NewInputHandler(),
		session: session,
	}, nil
}

// openIndex opens the store (on disk unless --ephemeral) and the configured
// embedding strategy.
func (a *app) openIndex() (*index.Index, error) {
	if a.index != nil {
		return a.index, nil
	}
	embedder, err := embedding.FromConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	var st store.Store
	if flagEphemeral {
		st = store.NewMemory()
	} else {
		st, err = store.OpenSQLite(a.cfg.Index.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open index at %s: %w", a.cfg.Index.Path, err)
		}
	}
	a.store = st
	a.index = index.New(st, embedder, index.OptionsFromConfig(a.cfg.Index), a.log.WithPrefix("index"))
	return a.index, nil
}

// buildRegistry wires the eight tools and the permission policy. When
// interactive is false nobody can answer a prompt, so the policy runs
// without input and denies anything that would ask.
func (a *app) buildRegistry(interactive bool) (*tools.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	ix, err := a.openIndex()
	if err != nil {
		return nil, err
	}
	files, err := cache.New(a.cfg.Cache.FileCapacity)
	if err != nil {
		return nil, err
	}
	dirs, err := cache.New(a.cfg.Cache.DirCapacity)
	if err != nil {
		return nil, err
	}

	reg := tools.NewDefaultRegistry(tools.Deps{
		Files: files,
		Dirs:  dirs,
		Index: ix,
		Tools: a.cfg.Tools,
		Log:   a.log.WithPrefix("tools"),
	})

	mode, err := permissions.ParseMode(a.cfg.Agent.PermissionMode)
	if err != nil {
		return nil, err
	}
	var policy *permissions.Policy
	if interactive {
		policy = permissions.NewPolicy(mode, a.in, a.out, a.log.WithPrefix("permissions"))
	} else {
		policy = permissions.NewPolicy(mode, nil, nil, a.log.WithPrefix("permissions"))
	}
	reg.SetApprover(policy)

	a.registry = reg
	return reg, nil
}

// newLLM builds the model client; rate-limit waits show a spinner.
func (a *app) newLLM() (llm.LLMClient, error) {
	spinner := ui.NewSpinner(a.out)
	return llm.New(a.cfg, a.log.WithPrefix("llm"), func(ctx context.Context, info llm.WaitInfo) error {
		return spinner.Start(ctx, ui.SpinnerConfig{
			Message:     "Rate limited",
			Reason:      info.Reason,
			Duration:    info.Duration,
			Attempt:     info.Attempt,
			MaxAttempts: info.MaxAttempts,
		})
	})
}

// newAgent assembles an agent writing to output.
func (a *app) newAgent(output agent.Output, interactive bool) (*agent.Agent, llm.LLMClient, error) {
	reg, err := a.buildRegistry(interactive)
	if err != nil {
		return nil, nil, err
	}
	client, err := a.newLLM()
	if err != nil {
		return nil, nil, err
	}
	ag, err := agent.New(agent.Config{
		LLM:           client,
		Tools:         reg,
		Session:       a.session,
		Output:        output,
		MaxIterations: a.cfg.Agent.MaxIterations,
		Instructions:  agent.LoadProjectInstructions(a.session.Dir()),
		Console:       a.out,
		Input:         a.in,
		Log:           a.log,
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return ag, client, nil
}

// Close releases the store.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing store", logging.Error(err))
		}
	}
}
