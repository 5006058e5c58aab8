package main

import (
	"context"
	"io"
	"time"

	"github.com/fwojciec/kura"
	"github.com/fwojciec/kura/crawl"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx      context.Context
	Stdout   io.Writer
	Stderr   io.Writer
	Crawler  *crawl.Crawler
	Manifest kura.ManifestService
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Crawl CrawlCmd `cmd:"" help:"Crawl a site from a seed URL into Markdown files"`
	Runs  RunsCmd  `cmd:"" help:"List recorded crawl runs or the failed pages of one run"`
	Show  ShowCmd  `cmd:"" help:"Print the header and body of a persisted document"`
}

// CrawlCmd is the "crawl" subcommand.
type CrawlCmd struct {
	URL              string        `arg:"" help:"Seed URL (the site's landing page)"`
	Origin           string        `env:"KURA_ORIGIN" help:"Only follow links under this origin (default: the seed's origin)"`
	Out              string        `short:"o" default:"content" env:"KURA_OUT" help:"Output root directory"`
	Delay            time.Duration `default:"1s" env:"KURA_DELAY" help:"Minimum delay between requests, shared across workers"`
	Concurrency      int           `short:"c" default:"3" env:"KURA_CONCURRENCY" help:"Concurrent fetch limit"`
	MaxDepth         int           `short:"d" default:"5" env:"KURA_MAX_DEPTH" help:"Maximum link distance from the seed"`
	MaxPages         int           `env:"KURA_MAX_PAGES" help:"Stop after this many pages (0 means no limit)"`
	Timeout          time.Duration `short:"t" default:"10s" env:"KURA_TIMEOUT" help:"Fetch timeout per page"`
	Retries          int           `default:"0" env:"KURA_RETRIES" help:"Retries for transient fetch failures"`
	RetryDelay       time.Duration `default:"1s" env:"KURA_RETRY_DELAY" help:"Delay before the first retry, doubled for each further retry"`
	UserAgent        string        `default:"${user_agent}" env:"KURA_USER_AGENT" help:"User-Agent header for HTTP requests"`
	PlaceholderTitle string        `default:"${placeholder_title}" env:"KURA_PLACEHOLDER_TITLE" help:"Site-wide <title> that is ignored when picking a page title"`
	Date             bool          `env:"KURA_DATE" help:"Record the crawl date in each document header"`
	Manifest         string        `short:"m" env:"KURA_MANIFEST" help:"Record the run in this SQLite manifest"`
	Browser          bool          `env:"KURA_BROWSER" help:"Fetch pages with headless Chrome"`
	Verbose          bool          `short:"v" help:"Log every fetch and write to stderr"`
}

// RunsCmd is the "runs" subcommand.
type RunsCmd struct {
	Manifest string `short:"m" required:"" env:"KURA_MANIFEST" help:"SQLite manifest to read"`
	Failed   string `help:"List failed pages of the run with this ID"`
	Limit    int    `short:"n" default:"20" help:"Maximum number of runs to list"`
}

// ShowCmd is the "show" subcommand.
type ShowCmd struct {
	Path string `arg:"" type:"existingfile" help:"Path of a persisted document"`
	Full bool   `help:"Print the document body as well"`
}
