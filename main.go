package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pagequery/pagequery/answer"
	"github.com/pagequery/pagequery/api"
	"github.com/pagequery/pagequery/config"
	"github.com/pagequery/pagequery/database"
	"github.com/pagequery/pagequery/embeddings"
	"github.com/pagequery/pagequery/llm"
	"github.com/pagequery/pagequery/pipeline"
	"github.com/pagequery/pagequery/retrieval"
	"github.com/pagequery/pagequery/scraper"
	"github.com/pagequery/pagequery/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "query":
		queryCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.Addr, "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	coordinator, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("pipeline setup: %v", err)
	}
	defer cleanup()

	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(coordinator, logger),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("server shutdown: %v", err)
		}
	}()

	logger.Printf("listening on %s (store=%s, embeddings=%s/%s, llm=%s/%s)",
		*addr, cfg.StoreBackend,
		cfg.Embeddings.Provider, cfg.Embeddings.Model,
		cfg.LLM.Provider, cfg.LLM.Model)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func queryCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	url := flags.String("url", "", "page URL to retrieve from")
	question := flags.String("question", "", "question to answer from the page")
	topK := flags.Int("k", cfg.DefaultTopK, "number of chunks to retrieve")
	noLLM := flags.Bool("no-llm", false, "skip answer generation, print ranked chunks only")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse query flags: %v", err)
	}

	if strings.TrimSpace(*url) == "" {
		logger.Fatal("missing required -url flag")
	}
	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		sc := bufio.NewScanner(os.Stdin)
		if sc.Scan() {
			*question = sc.Text()
		}
		if err := sc.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	coordinator, cleanup, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("pipeline setup: %v", err)
	}
	defer cleanup()

	resp, err := coordinator.Handle(ctx, pipeline.Request{
		URL:    *url,
		Query:  *question,
		TopK:   *topK,
		UseLLM: !*noLLM,
	})
	if err != nil {
		logger.Fatalf("retrieve failed: %v", err)
	}

	if resp.Answer != nil {
		fmt.Println(resp.Answer.Text)
		fmt.Println()
	}
	if resp.Note != "" {
		fmt.Printf("Note: %s\n\n", resp.Note)
	}

	if len(resp.Results) > 0 {
		fmt.Println("Relevant chunks:")
		for i, result := range resp.Results {
			fmt.Printf("%d. [score %.3f, chunk %d] %s\n", i+1, result.Score, result.Chunk.Index, snippet(result.Chunk.Content, 160))
		}
	} else {
		fmt.Println("No relevant chunks found.")
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if cfg.StoreBackend != config.StorePostgres {
		logger.Println("nothing to clear: the memory store does not outlive the process")
		return
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all indexed pages from Postgres. Continue? [y/N]: ")
		sc := bufio.NewScanner(os.Stdin)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		reply := strings.ToLower(strings.TrimSpace(sc.Text()))
		if reply != "y" && reply != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.Clear(ctx, pool); err != nil {
		logger.Fatalf("clear postgres: %v", err)
	}
	logger.Println("indexed pages removed")
}

// buildPipeline wires the store, embedder, llm client, and services. The
// returned cleanup closes the database pool when one was opened.
func buildPipeline(ctx context.Context, cfg config.Config, logger *log.Logger) (*pipeline.Coordinator, func(), error) {
	cleanup := func() {}

	var store vectorstore.Store
	switch cfg.StoreBackend {
	case config.StoreMemory:
		store = vectorstore.NewMemoryStore()
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connection: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		store = vectorstore.NewPostgresStore(pool)
		cleanup = pool.Close
	default:
		return nil, nil, fmt.Errorf("unknown vector store backend: %s", cfg.StoreBackend)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	retriever := retrieval.NewService(store, embedder, logger, cfg.ChunkSize, cfg.ChunkOverlap)
	synthesizer := answer.NewSynthesizer(llmClient, logger, cfg.LLM.Model, cfg.LLM.Temperature, cfg.MaxContextChunks, cfg.MaxContextLength)
	pageScraper := scraper.New(cfg.Scrape, logger)

	return pipeline.NewCoordinator(pageScraper, retriever, synthesizer, logger, cfg.DefaultTopK), cleanup, nil
}

func snippet(text string, limit int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}

func printUsage() {
	fmt.Println("Usage: pagequery <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  serve    Run the HTTP API (POST /retrieve, GET /healthz)")
	fmt.Println("  query    One-shot retrieval: --url and --question")
	fmt.Println("  clear    Remove indexed pages (postgres backend only)")
}
