package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// LineReader reads one line of user input after printing prompt.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// LineWriter is the console surface the REPL talks to.
type LineWriter interface {
	Header(text string)
	Info(msg string)
	Success(msg string)
	Error(err error)
	Separator()
}

const replPrompt = "codeagent> "

// Interactive runs the read-eval-print loop until exit, quit, EOF or
// context cancellation. Model errors are reported and the loop goes on.
func (a *Agent) Interactive(ctx context.Context) error {
	if a.input == nil || a.console == nil {
		return fmt.Errorf("agent: interactive mode needs Input and Console")
	}

	a.console.Header("codeagent")
	a.console.Info(fmt.Sprintf("model %s | cwd %s", a.llm.GetModel(), a.session.Dir()))
	a.console.Info("Type /help for commands, exit to leave.")

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := a.input.ReadLine(replPrompt)
		if errors.Is(err, io.EOF) {
			if strings.TrimSpace(line) == "" {
				return nil
			}
		} else if err != nil {
			return err
		}

		task := strings.TrimSpace(line)
		switch {
		case task == "":
		case isExit(task):
			a.console.Info("Goodbye!")
			return nil
		case strings.HasPrefix(task, "/"):
			a.handleCommand(task)
		default:
			if _, runErr := a.Run(ctx, task); runErr != nil {
				if ctx.Err() != nil {
					return nil
				}
				a.console.Error(runErr)
			}
			a.console.Separator()
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func isExit(s string) bool {
	switch strings.ToLower(s) {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}

func (a *Agent) handleCommand(cmd string) {
	parts := strings.Fields(cmd)

	switch parts[0] {
	case "/help":
		a.showHelp()

	case "/reset", "/clear":
		a.Reset()
		a.console.Success("Conversation cleared")

	case "/tools":
		a.listTools()

	case "/model":
		if len(parts) < 2 {
			a.console.Info("Current model: " + a.llm.GetModel())
			return
		}
		a.llm.SetModel(parts[1])
		a.console.Success("Model set to " + parts[1])

	case "/cwd":
		a.console.Info(a.session.Dir())

	case "/stats":
		snap := a.log.Metrics().Snapshot()
		if len(snap) == 0 {
			a.console.Info("No metrics recorded")
			return
		}
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			a.console.Info(fmt.Sprintf("  %-22s %v", k, snap[k]))
		}

	default:
		a.console.Error(fmt.Errorf("unknown command %s (try /help)", parts[0]))
	}
}

func (a *Agent) showHelp() {
	a.console.Info(`Commands:
  /help          Show this help
  /reset         Clear the conversation
  /tools         List available tools
  /model [name]  Show or switch the model
  /cwd           Show the tool working directory
  /stats         Show session metrics
  exit, quit     Leave`)
}

func (a *Agent) listTools() {
	for _, t := range a.tools.List() {
		a.console.Info(fmt.Sprintf("  %-20s %-8s %s", t.Name(), t.Permission(), firstLine(t.Description())))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
