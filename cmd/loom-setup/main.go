// Command loom-setup seeds the configured stores from a knowledge base file.
// Run it once before serving traffic, and again whenever personas or curated
// knowledge change; seeding is idempotent.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/loomctx/loom/internal/app"
	"github.com/loomctx/loom/internal/config"
	"github.com/loomctx/loom/internal/kb"
)

func main() {
	kbPath := flag.String("kb", "", "knowledge base YAML path (overrides LOOM_KNOWLEDGE_BASE)")
	verify := flag.Bool("verify", false, "validate the knowledge base without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	path := cfg.Routing.KnowledgeBase
	if *kbPath != "" {
		path = *kbPath
	}

	base, err := kb.Load(path)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	fmt.Printf("Loaded %s: %d personas, %d semantic memories\n",
		path, len(base.Personas), len(base.SemanticMemories))

	if *verify {
		fmt.Println("OK: knowledge base is valid")
		os.Exit(0)
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	start := time.Now()
	if err := base.Seed(ctx, stores.Personas, stores.Memories, embedder); err != nil {
		log.Fatalf("ERROR: seed failed: %v", err)
	}

	fmt.Printf("OK: seeded %d personas and %d semantic memories in %s\n",
		len(base.Personas), len(base.SemanticMemories), time.Since(start).Round(time.Millisecond))
}
