// Command loom-chat is an interactive console for exercising the full turn
// pipeline against a seeded store: context generation, prompt rendering, the
// downstream model call, and commit. With the activity feed enabled, each
// turn is also streamed to WebSocket subscribers.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/loomctx/loom/internal/app"
	"github.com/loomctx/loom/internal/config"
	"github.com/loomctx/loom/internal/llm"
	"github.com/loomctx/loom/internal/orchestrator"
	"github.com/loomctx/loom/internal/server"
)

func main() {
	userID := flag.String("user", "console", "user id for the session")
	showPrompt := flag.Bool("show-prompt", false, "print the rendered prompt before each model call")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	stores, err := app.BuildStores(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer stores.Close()

	embedder, err := app.BuildEmbedder(cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	var onActivity func(orchestrator.Event)
	if cfg.Activity.Enabled {
		hub := server.NewActivityHub(nil)
		feed := server.New(hub, cfg.Activity.Host, cfg.Activity.Port)
		go func() {
			if err := feed.Start(); err != nil {
				log.Printf("ERROR: activity feed: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = feed.Shutdown(ctx)
		}()
		onActivity = hub.Publish
	}

	engine, err := app.BuildOrchestrator(cfg, stores, embedder, onActivity)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	generator, err := llm.NewTextGenerator(providerConfig(cfg))
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	fmt.Printf("loom-chat ready (user=%s, model=%s). Type a message, or /quit to exit.\n",
		*userID, generator.GetModel())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/quit" || input == "/exit" {
			break
		}

		if err := runTurn(engine, generator, *userID, input, *showPrompt); err != nil {
			log.Printf("ERROR: %v", err)
		}
	}
}

// runTurn drives the two-phase protocol for one utterance.
func runTurn(engine *orchestrator.Orchestrator, generator llm.TextGenerator, userID, input string, showPrompt bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	obj, err := engine.GenerateContext(ctx, userID, input)
	if err != nil {
		return fmt.Errorf("generate context: %w", err)
	}

	prompt := engine.RenderPrompt(obj, input)
	if showPrompt {
		fmt.Println("----- prompt -----")
		fmt.Println(prompt)
		fmt.Println("------------------")
	}

	answer, err := generator.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	fmt.Printf("[%s] %s\n", obj.CurrentFocus, answer)

	// The response has been delivered; a commit failure is a warning.
	if err := engine.Commit(ctx, obj, input, answer); err != nil {
		log.Printf("WARN: commit: %v", err)
	}

	return nil
}

func providerConfig(cfg *config.Config) llm.ProviderConfig {
	pc := llm.ProviderConfig{Provider: cfg.LLM.Provider}
	switch cfg.LLM.Provider {
	case "openai":
		pc.APIKey = cfg.LLM.OpenAIAPIKey
		pc.Model = cfg.LLM.OpenAIModel
	case "anthropic":
		pc.APIKey = cfg.LLM.AnthropicAPIKey
		pc.Model = cfg.LLM.AnthropicModel
	default:
		pc.BaseURL = cfg.LLM.OllamaURL
		pc.Model = cfg.LLM.OllamaModel
	}
	return pc
}
