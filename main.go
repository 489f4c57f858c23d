package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	flag "github.com/spf13/pflag"

	"github.com/stablekernel/ghd/internal/config"
	"github.com/stablekernel/ghd/internal/deploy"
	"github.com/stablekernel/ghd/internal/github"
	"github.com/stablekernel/ghd/internal/logger"
	"github.com/stablekernel/ghd/internal/present"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the exit code. Nothing below it
// exits the process.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	p := present.New(stdout, stderr)

	cfg, err := parseArgs(args, stdout)
	if errors.Is(err, flag.ErrHelp) || errors.Is(err, errVersion) {
		return present.ExitOK
	}
	if err != nil {
		return p.Present("", err)
	}

	log := logger.New(stderr, cfg.Verbose)

	endpoints, err := github.NewEndpoints(cfg.APIURL)
	if err != nil {
		return p.Present("", err)
	}
	client := github.New(cfg.Credential.TokenSource(),
		github.WithEnvironment(cfg.Environment),
		github.WithTimeout(cfg.Timeout),
		github.WithLogger(log),
	)
	log.Debug("configuration",
		"version", version,
		"repository", cfg.Repository,
		"api_root", endpoints.Root().String(),
		"environment", client.Environment(),
		"timeout", cfg.Timeout,
		"trust_order", cfg.TrustOrder,
		"skip_failed", cfg.SkipFailed,
		"credential", cfg.Credential,
	)
	resolver := deploy.NewResolver(client, endpoints,
		deploy.WithTrustProviderOrder(cfg.TrustOrder),
		deploy.WithSkipFailedStatus(cfg.SkipFailed),
		deploy.WithLogger(log),
	)

	return p.Present(resolver.LatestCommitMessage(ctx, cfg.Repository))
}

// errVersion stops parsing after --version has been printed.
var errVersion = errors.New("version requested")

func parseArgs(args []string, stdout io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("ghd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	defaultTimeout, err := config.GetDuration(config.EnvTimeout, github.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	var (
		token    string
		cfg      config.Config
		showHelp bool
		showVer  bool
	)
	fs.StringVarP(&token, "token", "t", "", "GitHub token (falls back to "+config.EnvToken+", then the OS keyring)")
	fs.StringVar(&cfg.APIURL, "api-url", config.GetString(config.EnvAPIURL, github.DefaultAPIRoot), "GitHub API root")
	fs.StringVarP(&cfg.Environment, "environment", "e", config.GetString(config.EnvEnvironment, github.DefaultEnvironment), "Deployment environment to filter on")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "Per-request timeout")
	fs.BoolVar(&cfg.TrustOrder, "trust-order", false, "Take the first listed deployment without checking its statuses")
	fs.BoolVar(&cfg.SkipFailed, "skip-failed", false, "Skip deployments whose statuses cannot be fetched")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log requests and decisions to stderr")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show help message and exit")
	fs.BoolVar(&showVer, "version", false, "Print the version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	if showHelp {
		printUsage(fs, stdout)
		return nil, flag.ErrHelp
	}
	if showVer {
		fmt.Fprintln(stdout, "ghd", version)
		return nil, errVersion
	}

	switch fs.NArg() {
	case 0:
		return nil, fmt.Errorf("%w: no repository provided", config.ErrInvalid)
	case 1:
		cfg.Repository = fs.Arg(0)
	default:
		return nil, fmt.Errorf("%w: expected one repository, got %d", config.ErrInvalid, fs.NArg())
	}

	if cfg.Credential, err = config.ResolveCredential(token); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fs.SetOutput(w)
	fmt.Fprintln(w, "Usage: ghd [options] owner/repo")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Prints the commit message of the latest successful deployment of a GitHub repository.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  owner/repo    GitHub repository")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Environment: %s, %s, %s, %s (default timeout %s)\n",
		config.EnvToken, config.EnvAPIURL, config.EnvEnvironment, config.EnvTimeout, github.DefaultTimeout.String())
}
