// Command jobsweep inspects and prunes job directories under MEDIA_ROOT
// while the server is running or stopped.
package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	cfgpkg "github.com/local/pdfdesk/internal/config"
	"github.com/local/pdfdesk/internal/jobs"
	logpkg "github.com/local/pdfdesk/internal/logger"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	cfg, err := cfgpkg.Load()
	if err != nil {
		cfg = cfgpkg.FromEnv()
	}

	var store *jobs.Store
	return &cli.App{
		Name:  "jobsweep",
		Usage: "list, remove and expire pdfdesk jobs",
		// errors are reported by main
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "media-root",
				Usage:   "directory holding jobs/",
				Value:   cfg.Storage.MediaRoot,
				EnvVars: []string{"MEDIA_ROOT"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: cfg.Logging.Level,
			},
		},
		Before: func(c *cli.Context) error {
			if err := logpkg.Init(logpkg.Options{Level: c.String("log-level"), Pretty: true, Stdout: os.Stderr}); err != nil {
				return err
			}
			s, err := jobs.NewStore(jobs.Options{
				MediaRoot:  c.String("media-root"),
				URLPrefix:  cfg.Storage.URLPrefix,
				Extensions: cfg.Storage.Extensions,
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			store = s
			return nil
		},
		After: func(*cli.Context) error {
			logpkg.Close()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "sweep",
				Usage: "remove jobs older than --max-age",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:    "max-age",
						Usage:   "remove jobs whose directory is older than this",
						Value:   cfg.Storage.Retention,
						EnvVars: []string{"JOB_RETENTION"},
					},
					&cli.BoolFlag{
						Name:  "scratch",
						Usage: "also remove stale conversion directories in the temp dir",
					},
				},
				Action: func(c *cli.Context) error {
					maxAge := c.Duration("max-age")
					if maxAge <= 0 {
						return cli.Exit("max-age must be positive", 1)
					}
					n, err := store.Sweep(maxAge)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "removed %d job(s) older than %s\n", n, maxAge)
					if c.Bool("scratch") {
						fmt.Fprintf(out, "removed %d scratch dir(s)\n", jobs.CleanupScratch(os.TempDir(), maxAge))
					}
					log.Info().Int("removed", n).Dur("max_age", maxAge).Msg("sweep complete")
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "remove one job",
				ArgsUsage: "<job-id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return cli.Exit("job id required", 1)
					}
					if err := store.Remove(id); err != nil {
						return cli.Exit(fmt.Sprintf("%s: %v", id, err), 1)
					}
					fmt.Fprintf(out, "removed %s\n", id)
					return nil
				},
			},
			{
				Name:      "ls",
				Usage:     "list the files of one job",
				ArgsUsage: "<job-id>",
				Action: func(c *cli.Context) error {
					id := c.Args().First()
					if id == "" {
						return cli.Exit("job id required", 1)
					}
					arts, err := store.List(id)
					if err != nil {
						return cli.Exit(fmt.Sprintf("%s: %v", id, err), 1)
					}
					tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED\tURL")
					for _, a := range arts {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", a.Name, a.Size, a.ModTime.Format(time.RFC3339), a.URL)
					}
					return tw.Flush()
				},
			},
		},
	}
}
