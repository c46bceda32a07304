package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/seclith/aadprobe/internal/cli"
	"github.com/seclith/aadprobe/internal/httpx"
	"github.com/seclith/aadprobe/internal/input"
	"github.com/seclith/aadprobe/internal/output"
	"github.com/seclith/aadprobe/internal/probe"
)

func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "aadprobe - Detect registered applications in an Azure AD tenant.")

	opts, err := cli.Parse(args, stdout, stderr)
	if err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	color.NoColor = opts.NoColor

	logger := logrus.New()
	logger.SetOutput(stderr)
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	httpClient, err := httpx.NewClient(httpx.ClientConfig{
		Timeout:  opts.Timeout,
		ProxyURL: opts.ProxyURL,
	})
	if err != nil {
		fmt.Fprintf(stderr, "failed to initialize HTTP client: %v\n", err)
		return 1
	}

	candidates, err := input.LoadCandidates(opts.InputFile, logger)
	if err != nil {
		fmt.Fprintf(stderr, "input error: %v\n", err)
		return 1
	}

	detector, err := probe.NewDetector(httpClient, probe.Config{
		Tenant:       opts.Tenant,
		Concurrency:  opts.Workers,
		Delay:        opts.Delay,
		Timeout:      opts.Timeout,
		Authority:    opts.Authority,
		ClientSecret: opts.ClientSecret,
		Scope:        opts.Scope,
	}, logger)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 2
	}

	if opts.NoColor {
		fmt.Fprintf(stdout, "\nProbing %d application IDs in tenant %s:\n", len(candidates), opts.Tenant)
	} else {
		fmt.Fprintf(color.Output, "\nProbing %d application IDs in tenant %s:\n",
			len(candidates), color.HiGreenString(opts.Tenant))
	}

	printer := output.NewPrinter(stdout, opts.NoColor, opts.Verbose)

	report, runErr := detector.Run(ctx, candidates, printer.Result)
	printer.Summary(report)

	if opts.OutputFile != "" {
		if err := output.WriteReport(opts.OutputFile, report); err != nil {
			fmt.Fprintf(stderr, "failed to write report %q: %v\n", opts.OutputFile, err)
			return 1
		}
		fmt.Fprintf(stdout, "Report saved to %s\n", opts.OutputFile)
	}

	if runErr != nil && errors.Is(runErr, context.Canceled) {
		return 130
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "run error: %v\n", runErr)
		return 1
	}
	return 0
}
