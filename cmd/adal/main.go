// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	adal "github.com/Devcavi19/adal-4naga-app"
	"github.com/Devcavi19/adal-4naga-app/chat"
	"github.com/Devcavi19/adal-4naga-app/config"
	"github.com/Devcavi19/adal-4naga-app/importer"
	"github.com/Devcavi19/adal-4naga-app/prompt"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "adal",
		Usage: "Question answering over Naga City Government documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file (default: ./adal.yaml when present)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the chat and search API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides server.addr",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid search and print the ranked passages",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of results, 0 picks k from the query intent",
					},
					&cli.BoolFlag{
						Name:  "explain",
						Usage: "Print each retrieval stage",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question and stream it to stdout",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "User id the session belongs to",
						Value: "cli",
					},
					&cli.StringFlag{
						Name:  "chat-id",
						Usage: "Continue an existing session",
					},
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "Print the NDJSON records instead of text",
					},
				},
			},
			{
				Name:      "import-index",
				Usage:     "Import a JSON-lines document export with vectors into the local store",
				ArgsUsage: "<file.jsonl>",
				Action:    importCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents written per transaction",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 500,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each batch write",
						Value: 3,
					},
				},
			},
			{
				Name:   "backfill-keywords",
				Usage:  "Fill in keywords for recent analytics events once",
				Action: backfillCommand,
			},
			{
				Name:   "anomaly-scan",
				Usage:  "Check query volume and error rate once and store notifications",
				Action: anomalyCommand,
			},
		},
	}
}

func openEngine(c *cli.Context, mutate func(*config.Config)) (*adal.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	return adal.NewEngine(cfg, adal.WithLogger(slog.Default()))
}

func serveCommand(c *cli.Context) error {
	engine, err := openEngine(c, func(cfg *config.Config) {
		if addr := c.String("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.LoadIndex(ctx); err != nil {
		slog.Error("retrieval not initialized, answering with fallback", "err", err)
	}
	return engine.Serve(ctx)
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query is required")
	}

	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := c.Context
	if err := engine.LoadIndex(ctx); err != nil {
		return err
	}
	if err := engine.Chat().Validate(query); err != nil {
		return err
	}

	out := c.App.Writer
	monitor := newExplainMonitor(io.Discard)
	if c.Bool("explain") {
		monitor = newExplainMonitor(out)
	}

	controller := engine.Controller()
	var outcome retrieval.Outcome
	if k := c.Int("k"); k > 0 {
		outcome, err = controller.SearchWithMonitor(ctx, query, k, monitor)
	} else {
		outcome, err = controller.RetrieveWithMonitor(ctx, query, monitor)
	}
	if err != nil && len(outcome.Results) == 0 {
		return err
	}
	if err != nil {
		slog.Warn("search partially failed", "err", err)
	}

	fmt.Fprintf(out, "Found %d passages (intent: %s)\n", len(outcome.Results), outcome.Intent)
	for i, r := range outcome.Results {
		fmt.Fprintf(out, "%d: [%0.3f] %s (semantic %0.3f, keyword %0.3f)\n",
			i+1, r.HybridScore, prompt.Citation(r.Metadata), r.SemanticScore, r.KeywordScore)
		fmt.Fprintf(out, "   %s\n", preview(r.Text, 160))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.Join(c.Args().Slice(), " ")

	engine, err := openEngine(c, func(cfg *config.Config) {
		cfg.Maintenance.Enabled = false
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	if err := engine.LoadIndex(ctx); err != nil {
		slog.Error("retrieval not initialized, answering with fallback", "err", err)
	}

	var w io.Writer = c.App.Writer
	if !c.Bool("raw") {
		w = newTextRenderer(c.App.Writer)
	}
	return engine.Chat().Answer(ctx, chat.Request{
		UserID:    c.String("user"),
		SessionID: c.String("chat-id"),
		Message:   question,
	}, w)
}

func importCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("export file is required")
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	cfg := importer.DefaultConfig()
	cfg.BatchSize = c.Int("batch-size")
	cfg.ReportInterval = c.Int("report-interval")
	cfg.MaxRetries = c.Int("max-retries")

	imp, err := engine.NewImporter(cfg, c.App.ErrWriter)
	if err != nil {
		return err
	}
	_, err = imp.Run(c.Context, f)
	return err
}

func backfillCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	updated, err := engine.Runner().BackfillKeywords(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Updated keywords on %d events\n", updated)
	return nil
}

func anomalyCommand(c *cli.Context) error {
	engine, err := openEngine(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	found, err := engine.Runner().ScanAnomalies(c.Context)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(c.App.Writer, "No anomalies detected")
		return nil
	}
	for _, n := range found {
		fmt.Fprintf(c.App.Writer, "[%s] %s: %s\n", n.Severity, n.Title, n.Message)
	}
	return nil
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
