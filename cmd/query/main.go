// Command query loads an index snapshot and answers "<query text> <k>" lines
// read from stdin, printing the ranked listing names. Logs go to stderr so
// stdout carries only answers.
//
// Usage:
//
//	go run ./cmd/query [-config configs/development.yaml] [-snapshot data/index.asix]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/appsearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/appsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/appsearch/pkg/logger"
)

const help = `enter "<query text> <k>" to list the k best matching apps
  :stats  index statistics
  :quit   leave`

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	snapshotPath := flag.String("snapshot", "", "snapshot path (defaults to indexer.snapshotPath)")
	quiet := flag.Bool("q", false, "no prompt")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	if *snapshotPath == "" {
		*snapshotPath = cfg.Indexer.SnapshotPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := indexer.NewEngine(cfg.Indexer, cfg.Tokenizer)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}
	stats, err := engine.Load(*snapshotPath)
	if err != nil {
		slog.Error("loading snapshot failed", "path", *snapshotPath, "error", err)
		os.Exit(1)
	}
	slog.Info("index loaded", "documents", stats.Documents, "vocabulary", stats.Vocabulary)

	loop := &repl{
		engine:   engine,
		defaultK: cfg.Search.DefaultK,
		maxK:     cfg.Search.MaxK,
		prompt:   !*quiet,
	}
	if err := loop.run(ctx, os.Stdin, os.Stdout); err != nil {
		slog.Error("query loop failed", "error", err)
		os.Exit(1)
	}
}

type repl struct {
	engine   *indexer.Engine
	defaultK int
	maxK     int
	prompt   bool
}

// run answers lines from in until EOF, :quit or ctx cancellation.
func (r *repl) run(ctx context.Context, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	scanner := bufio.NewScanner(in)
	for {
		if r.prompt {
			fmt.Fprint(w, "> ")
		}
		w.Flush()
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if cmd, ok := parser.Command(line); ok {
			switch cmd {
			case "quit":
				return nil
			case "stats":
				s := r.engine.Stats()
				fmt.Fprintf(w, "documents=%d vocabulary=%d generation=%d processor=%s\n",
					s.Documents, s.Vocabulary, s.Generation, s.Processor)
			case "help":
				fmt.Fprintln(w, help)
			}
			continue
		}
		r.answer(ctx, w, line)
	}
}

func (r *repl) answer(ctx context.Context, w io.Writer, line string) {
	req, err := parser.Parse(line, r.defaultK, r.maxK)
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	results, err := r.engine.Query(ctx, req.Text, req.K)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		fmt.Fprintln(w, "not found")
		return
	case err != nil:
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	for i, res := range results {
		fmt.Fprintf(w, "%2d. %s (%.4f)\n", i+1, res.Name, res.Score)
	}
}
