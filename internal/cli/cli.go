package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/seclith/aadprobe/internal/probe"
)

var ErrHelp = errors.New("help requested")

type Options struct {
	Tenant     string
	InputFile  string
	OutputFile string

	Workers int
	Delay   time.Duration
	Timeout time.Duration

	Verbose bool
	NoColor bool

	ProxyURL     string
	Authority    string
	ClientSecret string
	Scope        string
}

const usageText = `
usage:
  aadprobe -t TENANT -f FILE [flags]

required:
  -t, --tenant DOMAIN   target tenant (domain or tenant ID)
  -f, --file PATH       file with candidate application IDs (TXT, CSV or TSV)

flags:
  -h, --help            show this help message and exit
  -o, --output PATH     write the full report as JSON to PATH
  -w, --workers N       number of concurrent workers (default: 10)
  -d, --delay SECONDS   minimum delay between requests per worker (default: 0.5)
  --timeout SECONDS     per-request timeout (default: 15)
  -v, --verbose         also print misses, errors and per-probe debug output
  --no-color            disable colored stdout output
  --proxy URL           route probes through a SOCKS proxy (e.g. socks5://127.0.0.1:9050)
  --authority URL       token authority for national clouds (default: https://login.microsoftonline.com)
  --secret VALUE        override the placeholder client secret
  --scope VALUE         override the token request scope
`

func Parse(args []string, stdout, stderr io.Writer) (Options, error) {
	var opts Options
	var (
		help     bool
		delayS   float64
		timeoutS float64
	)

	fs := flag.NewFlagSet("aadprobe", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.Usage = func() {
		_, _ = fmt.Fprint(stdout, usageText)
	}

	// Help
	fs.BoolVar(&help, "h", false, "show help")
	fs.BoolVar(&help, "help", false, "show help")

	// Required
	fs.StringVar(&opts.Tenant, "t", "", "target tenant")
	fs.StringVar(&opts.Tenant, "tenant", "", "target tenant")
	fs.StringVar(&opts.InputFile, "f", "", "candidate ID file")
	fs.StringVar(&opts.InputFile, "file", "", "candidate ID file")

	// Behavior flags
	fs.BoolVar(&opts.Verbose, "v", false, "verbose output")
	fs.BoolVar(&opts.Verbose, "verbose", false, "verbose output")
	fs.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	// Options
	fs.StringVar(&opts.OutputFile, "o", "", "JSON report path")
	fs.StringVar(&opts.OutputFile, "output", "", "JSON report path")
	fs.IntVar(&opts.Workers, "w", probe.DefaultConcurrency, "concurrent workers")
	fs.IntVar(&opts.Workers, "workers", probe.DefaultConcurrency, "concurrent workers")
	fs.Float64Var(&delayS, "d", probe.DefaultDelay.Seconds(), "per-worker delay in seconds")
	fs.Float64Var(&delayS, "delay", probe.DefaultDelay.Seconds(), "per-worker delay in seconds")
	fs.Float64Var(&timeoutS, "timeout", probe.DefaultTimeout.Seconds(), "request timeout in seconds")
	fs.StringVar(&opts.ProxyURL, "proxy", "", "SOCKS proxy URL")
	fs.StringVar(&opts.Authority, "authority", "", "token authority base URL")
	fs.StringVar(&opts.ClientSecret, "secret", "", "client secret override")
	fs.StringVar(&opts.Scope, "scope", "", "token scope override")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if help {
		fs.Usage()
		return Options{}, ErrHelp
	}

	if opts.Tenant == "" {
		return Options{}, errors.New("missing required flag: -t/--tenant")
	}
	if opts.InputFile == "" {
		return Options{}, errors.New("missing required flag: -f/--file")
	}
	if opts.Workers <= 0 {
		return Options{}, fmt.Errorf("workers must be positive, got %d", opts.Workers)
	}
	if delayS < 0 {
		return Options{}, fmt.Errorf("delay must not be negative, got %g", delayS)
	}
	if timeoutS <= 0 {
		return Options{}, fmt.Errorf("timeout must be positive, got %g", timeoutS)
	}

	opts.Delay = time.Duration(delayS * float64(time.Second))
	opts.Timeout = time.Duration(timeoutS * float64(time.Second))

	if extra := fs.Args(); len(extra) > 0 {
		return Options{}, fmt.Errorf("unexpected arguments: %v", extra)
	}

	return opts, nil
}
