package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/charset"
	"github.com/fwojciec/kura/crawl"
	"github.com/fwojciec/kura/fs"
	"github.com/fwojciec/kura/goquery"
	"github.com/fwojciec/kura/htmltomarkdown"
	kurahttp "github.com/fwojciec/kura/http"
	"github.com/fwojciec/kura/rod"
	kuraslog "github.com/fwojciec/kura/slog"
	"github.com/fwojciec/kura/sqlite"
)

func main() {
	// An interrupt stops dispatching; in-flight pages finish writing.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// SQLite database backing the manifest, if one was requested.
	DB *sqlite.DB

	// Fetcher used by the crawl command. Closed by Close.
	Fetcher kura.Fetcher
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	var err error
	if m.Fetcher != nil {
		err = m.Fetcher.Close()
	}
	if m.DB != nil {
		if dbErr := m.DB.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("kura"),
		kong.Description("Mirror a legacy Japanese website into Markdown documents"),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Bind(deps),
		kong.Vars{
			"user_agent":        kurahttp.DefaultUserAgent,
			"placeholder_title": goquery.DefaultPlaceholderTitle,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'kura --help' to see available commands")
	}

	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	defer m.Close()

	switch strings.Fields(kongCtx.Command())[0] {
	case "crawl":
		if err := m.wireCrawl(&cli.Crawl, deps); err != nil {
			return err
		}
	case "runs":
		if err := m.openManifest(cli.Runs.Manifest, deps); err != nil {
			return err
		}
	}

	return kongCtx.Run(deps)
}

// wireCrawl builds the crawler and its collaborators from the crawl flags.
func (m *Main) wireCrawl(c *CrawlCmd, deps *Dependencies) error {
	if c.Concurrency <= 0 {
		return kura.Errorf(kura.EINVALID, "concurrency must be positive")
	}
	if c.Delay < 0 {
		return kura.Errorf(kura.EINVALID, "delay must not be negative")
	}

	level := slog.LevelWarn
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(deps.Stderr, &slog.HandlerOptions{Level: level}))

	origin := c.Origin
	if origin == "" {
		var err error
		if origin, err = kura.Origin(c.URL); err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
			return err
		}
	}

	writer := fs.NewWriter(c.Out, fs.WithDate(c.Date))
	if err := writer.Open(); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", kura.ErrorMessage(err))
		return err
	}

	if c.Browser {
		fetcher, err := rod.NewFetcher(
			rod.WithFetchTimeout(c.Timeout),
			rod.WithRecycleAfter(rod.RecycleInterval(c.MaxPages, c.Concurrency)),
		)
		if err != nil {
			fmt.Fprintln(deps.Stderr, "Hint: Chrome or Chromium must be installed")
			return fmt.Errorf("failed to start browser: %w", err)
		}
		m.Fetcher = fetcher
	} else {
		m.Fetcher = kurahttp.NewFetcher(
			kurahttp.WithTimeout(c.Timeout),
			kurahttp.WithUserAgent(c.UserAgent),
		)
	}

	if c.Manifest != "" {
		if err := m.openManifest(c.Manifest, deps); err != nil {
			return err
		}
	}

	extractor := goquery.NewExtractor(
		htmltomarkdown.NewConverter(),
		goquery.WithOrigin(origin),
		goquery.WithPlaceholderTitle(c.PlaceholderTitle),
	)

	deps.Crawler = &crawl.Crawler{
		Fetcher:     kuraslog.NewLoggingFetcher(m.Fetcher, logger),
		Resolver:    kuraslog.NewLoggingResolver(charset.NewResolver(), logger),
		Extractor:   extractor,
		Documents:   kuraslog.NewLoggingWriter(writer, logger),
		Manifest:    deps.Manifest,
		RateLimiter: crawl.NewDomainLimiterEvery(crawl.PolitenessInterval(c.Delay, c.Concurrency)),
		Concurrency: c.Concurrency,
		MaxDepth:    c.MaxDepth,
		MaxPages:    c.MaxPages,
		RetryDelays: crawl.BackoffDelays(c.Retries, c.RetryDelay),
		Logger:      logger,
		OutputDir:   c.Out,
	}
	return nil
}

// openManifest opens the SQLite manifest at path.
func (m *Main) openManifest(path string, deps *Dependencies) error {
	m.DB = sqlite.NewDB(path)
	if err := m.DB.Open(); err != nil {
		fmt.Fprintln(deps.Stderr, "Hint: Set KURA_MANIFEST to use a different manifest path")
		return fmt.Errorf("failed to open manifest at %q: %w", path, err)
	}
	deps.Manifest = sqlite.NewManifestService(m.DB)
	return nil
}
