// Command jobs runs one batch job and exits with its exit code.
//
//	jobs bir:aggregate-daily --from 2024-01-01 --to 2024-01-31 --branch B1
//	jobs --list
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/posreport/internal/auth"
	"github.com/smallbiznis/posreport/internal/clock"
	"github.com/smallbiznis/posreport/internal/config"
	"github.com/smallbiznis/posreport/internal/jobs"
	"github.com/smallbiznis/posreport/internal/observability"
	"github.com/smallbiznis/posreport/internal/ratelimit"
	"github.com/smallbiznis/posreport/pkg/db"
	"github.com/smallbiznis/posreport/pkg/validation"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

type cliOptions struct {
	from, to      string
	branch, store string
	list          bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts cliOptions
	flags := pflag.NewFlagSet("jobs", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.from, "from", "", "first business date, YYYY-MM-DD (default yesterday)")
	flags.StringVar(&opts.to, "to", "", "last business date, YYYY-MM-DD (default --from, or today)")
	flags.StringVar(&opts.branch, "branch", "", "only this branch code")
	flags.StringVar(&opts.store, "store", "", "only this store code")
	flags.BoolVarP(&opts.list, "list", "l", false, "list registered jobs")
	flags.Usage = func() {
		fmt.Fprintln(stderr, "usage: jobs <name> [--from YYYY-MM-DD] [--to YYYY-MM-DD] [--branch CODE] [--store CODE]")
		fmt.Fprintln(stderr, "       jobs --list")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return jobs.ExitOK
		}
		fmt.Fprintf(stderr, "jobs: %v\n", err)
		flags.Usage()
		return jobs.ExitFailed
	}
	if !opts.list && flags.NArg() != 1 {
		flags.Usage()
		return jobs.ExitFailed
	}

	var (
		runner *jobs.Runner
		clk    clock.Clock
	)
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		auth.Module,
		jobs.Module,
		fx.NopLogger,
		fx.Populate(&runner, &clk),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		fmt.Fprintf(stderr, "jobs: start: %v\n", err)
		return jobs.ExitFailed
	}
	defer func() {
		if err := app.Stop(ctx); err != nil {
			fmt.Fprintf(stderr, "jobs: stop: %v\n", err)
		}
	}()

	if opts.list {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		for _, job := range runner.Jobs() {
			fmt.Fprintf(tw, "%s\t%s\n", job.Name(), job.Description())
		}
		_ = tw.Flush()
		return jobs.ExitOK
	}

	jobOpts, err := jobs.ParseOptions(clk.Now(), opts.from, opts.to, opts.branch, opts.store)
	if err != nil {
		if verrs, ok := validation.As(err); ok {
			for field, msg := range verrs.First() {
				fmt.Fprintf(stderr, "jobs: --%s: %s\n", field, msg)
			}
		} else {
			fmt.Fprintf(stderr, "jobs: %v\n", err)
		}
		return jobs.ExitFailed
	}

	res := runner.Run(ctx, flags.Arg(0), jobOpts)
	fmt.Fprint(stdout, res.Output)
	if res.ExitCode == jobs.ExitUnknownJob {
		fmt.Fprintf(stderr, "jobs: unknown job %q, try --list\n", res.Job)
	}
	return res.ExitCode
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
