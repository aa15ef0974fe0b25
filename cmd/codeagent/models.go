package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect and pull the configured Ollama models",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the configured chat and embedding models",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

var modelsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a short prompt to the chat model and time it",
	Args:  cobra.NoArgs,
	RunE:  runModelsTest,
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Pull the configured models with the ollama CLI",
	Args:  cobra.NoArgs,
	RunE:  runModelsPull,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsTestCmd, modelsPullCmd)
	rootCmd.AddCommand(modelsCmd)
}

type configuredModel struct {
	role  string
	model string
}

// ollamaModels lists the models served by Ollama under cfg.
func ollamaModels(cfg *config.Config) []configuredModel {
	var models []configuredModel
	if cfg.Provider == config.ProviderOllama {
		models = append(models, configuredModel{"chat", cfg.Model})
	}
	if cfg.Embedding.Strategy == config.StrategyChunk && cfg.Embedding.Backend == config.ProviderOllama {
		models = append(models, configuredModel{"embedding", cfg.Embedding.Model})
	}
	return models
}

func runModelsList(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	fmt.Println("Configured models:")
	fmt.Println()
	fmt.Printf("  provider:  %s\n", a.cfg.Provider)
	fmt.Printf("  chat:      %s\n", a.cfg.Model)
	fmt.Printf("  embedding: %s\n", a.cfg.EmbeddingModelID())
	fmt.Printf("  Ollama:    %s\n", a.cfg.Ollama.BaseURL)
	fmt.Println()

	models := ollamaModels(a.cfg)
	if len(models) == 0 {
		return nil
	}
	fmt.Println("Local availability:")
	local, err := listLocalModels(cmd.Context(), a.cfg.Ollama.BaseURL)
	if err != nil {
		return fmt.Errorf("cannot reach Ollama at %s: %w", a.cfg.Ollama.BaseURL, err)
	}
	for _, m := range models {
		status := "not found"
		if hasModel(local, m.model) {
			status = "available"
		}
		fmt.Printf("  %s (%s): %s\n", m.role, m.model, status)
	}
	return nil
}

func runModelsTest(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	client, err := a.newLLM()
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("Testing %s (%s)... ", client.GetModel(), a.cfg.Provider)
	start := time.Now()
	resp, err := client.Chat(cmd.Context(), []llm.Message{
		{Role: llm.RoleUser, Content: "What is 2+2? Answer with just the number."},
	}, nil, "")
	if err != nil {
		fmt.Println("ERROR")
		return err
	}

	answer := strings.TrimSpace(resp.Content)
	if len(answer) > 50 {
		answer = answer[:47] + "..."
	}
	fmt.Printf("%.2fs - %q\n", time.Since(start).Seconds(), answer)
	return nil
}

func runModelsPull(cmd *cobra.Command, _ []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	if _, err := exec.LookPath("ollama"); err != nil {
		return fmt.Errorf("the ollama CLI is not on PATH")
	}

	seen := make(map[string]bool)
	for _, m := range ollamaModels(a.cfg) {
		if seen[m.model] {
			continue
		}
		seen[m.model] = true

		fmt.Printf("Pulling %s...\n", m.model)
		c := exec.CommandContext(cmd.Context(), "ollama", "pull", m.model)
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("pulling %s: %w", m.model, err)
		}
	}
	return nil
}

// listLocalModels returns the model names from Ollama's /api/tags.
func listLocalModels(ctx context.Context, baseURL string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

// hasModel matches "name" against "name" or "name:tag".
func hasModel(local []string, model string) bool {
	for _, name := range local {
		if name == model || strings.HasPrefix(name, model+":") || model == strings.Split(name, ":")[0] {
			return true
		}
	}
	return false
}
