package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jrhy/pst"
	"github.com/jrhy/pst/internal/config"
	"github.com/jrhy/pst/internal/jobs"
	"github.com/jrhy/pst/internal/logging"
	"github.com/jrhy/pst/internal/metrics"
	"github.com/jrhy/pst/persist/file"
	s3Persist "github.com/jrhy/pst/persist/s3"
)

type rootOptions struct {
	configPath  string
	metricsFile string
	verbose     bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "pstree",
		Short: "pstree - persistent and mergeable segment trees",
		Long: `pstree runs workloads on persistent and mergeable segment trees.

Commands:
  kth       k-th smallest values and range counts over subarrays
  subtree   dominant-colour sums over every subtree of a rooted tree`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default .pstree.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(newKthCommand(opts))
	rootCmd.AddCommand(newSubtreeCommand(opts))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pstree %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// runner holds what every job command sets up before running.
type runner struct {
	env     jobs.Env
	metrics *metrics.Metrics
	file    string
	closer  io.Closer
}

func (o *rootOptions) setup(cmd *cobra.Command) (*runner, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.verbose {
		cfg.Log.Level = "debug"
	}
	logger, closer := logging.New(cfg.Log, cmd.ErrOrStderr())

	persist, err := newPersist(cfg.Persist)
	if err != nil {
		closer.Close()
		return nil, err
	}
	r := &runner{
		env: jobs.Env{
			Logger:           logger.With(slog.String("command", cmd.Name())),
			Persist:          persist,
			CacheSize:        cfg.Cache.Size,
			StoreConcurrency: cfg.Store.Concurrency,
			ArenaCapacity:    cfg.Arena.Capacity,
		},
		file:   o.metricsFile,
		closer: closer,
	}
	if o.metricsFile != "" {
		r.metrics = metrics.New()
		r.env.Metrics = r.metrics
	}
	return r, nil
}

func (r *runner) finish() error {
	defer r.closer.Close()
	if r.metrics == nil {
		return nil
	}
	return r.metrics.WriteTextfile(r.file)
}

func newPersist(cfg config.PersistConfig) (pst.Persist, error) {
	switch cfg.Kind {
	case config.PersistMemory:
		return pst.NewInMemoryStore(), nil
	case config.PersistFile:
		p, err := file.NewPersistForPath(cfg.Path)
		if err != nil {
			return nil, err
		}
		return p, nil
	case config.PersistS3:
		awsConfig := &aws.Config{Region: aws.String(cfg.S3.Region)}
		if cfg.S3.Endpoint != "" {
			awsConfig.Endpoint = aws.String(cfg.S3.Endpoint)
			awsConfig.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(awsConfig)
		if err != nil {
			return nil, fmt.Errorf("s3 session: %w", err)
		}
		return s3Persist.NewPersist(s3.New(sess), cfg.S3.Bucket, cfg.S3.Prefix), nil
	default:
		return nil, nil
	}
}

func openJob(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open job: %w", err)
	}
	return f, nil
}

func writeResult(w io.Writer, result any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return enc.Close()
}

type jobOptions struct {
	jobFile string
	save    bool
}

func addJobFlags(cmd *cobra.Command, opts *jobOptions) {
	cmd.Flags().StringVarP(&opts.jobFile, "file", "f", "", "job file in YAML, - for stdin")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the resulting versions to the configured store")
	_ = cmd.MarkFlagRequired("file")
}

// runJob loads the job at opts.jobFile with run and writes its result.
func (o *rootOptions) runJob(cmd *cobra.Command, opts *jobOptions, run func(context.Context, io.Reader, jobs.Env, bool) (any, error)) (err error) {
	r, err := o.setup(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if finishErr := r.finish(); err == nil {
			err = finishErr
		}
	}()
	in, err := openJob(opts.jobFile)
	if err != nil {
		return err
	}
	defer in.Close()
	res, err := run(cmd.Context(), in, r.env, opts.save)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), res)
}

func newKthCommand(root *rootOptions) *cobra.Command {
	opts := &jobOptions{}
	cmd := &cobra.Command{
		Use:   "kth",
		Short: "Answer k-th smallest and range count queries over subarrays",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.runJob(cmd, opts, func(ctx context.Context, in io.Reader, env jobs.Env, save bool) (any, error) {
				job, err := jobs.LoadKth(in)
				if err != nil {
					return nil, err
				}
				return jobs.RunKth(ctx, job, env, save)
			})
		},
	}
	addJobFlags(cmd, opts)
	return cmd
}

func newSubtreeCommand(root *rootOptions) *cobra.Command {
	opts := &jobOptions{}
	cmd := &cobra.Command{
		Use:   "subtree",
		Short: "Sum the dominant colours of every subtree by merging segment trees",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return root.runJob(cmd, opts, func(ctx context.Context, in io.Reader, env jobs.Env, save bool) (any, error) {
				job, err := jobs.LoadSubtree(in)
				if err != nil {
					return nil, err
				}
				return jobs.RunSubtree(ctx, job, env, save)
			})
		},
	}
	addJobFlags(cmd, opts)
	return cmd
}
