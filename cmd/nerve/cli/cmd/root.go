package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/config"
	"github.com/balaji-balu/nerve-cli/internal/credentials"
	"github.com/balaji-balu/nerve-cli/internal/journal"
	"github.com/balaji-balu/nerve-cli/internal/logger"
	"github.com/balaji-balu/nerve-cli/internal/metrics"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/nodes"
	"github.com/balaji-balu/nerve-cli/internal/render"
	"github.com/balaji-balu/nerve-cli/internal/telemetry"
)

const serviceName = "nerve"

var version = "v0.3.0"

// app is the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg      *config.Config
	log      *logger.Logger
	metrics  *metrics.Recorder
	journal  *journal.Journal
	printer  *render.Printer
	prompter credentials.Prompter

	span     trace.Span
	shutdown func(context.Context) error
}

func newApp() *app {
	return &app{v: viper.New(), log: logger.Nop()}
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	a := newApp()
	root := newRootCmd(a)
	err := root.ExecuteContext(ctx)
	a.close(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "nerve",
		Short: "Manage nodes and workloads of a Nerve management system",
		Long: `nerve lists, filters and controls the nodes of a Nerve management system,
manages the workload catalogue and deploys DNA files. Node and workload lists
are exchanged between commands as JSON files.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.init,
	}
	root.SetGlobalNormalizationFunc(normalizeFlag)

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is ./nerve.yaml)")
	pf.BoolP("verbose", "V", false, "show debug information")
	pf.String("trace", "", "trace exporter: none, stdout or otlp")
	pf.String("metrics-file", "", "write request metrics to this file on exit")

	a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	a.v.BindPFlag("telemetry.exporter", pf.Lookup("trace"))
	a.v.BindPFlag("metrics.file", pf.Lookup("metrics-file"))

	root.AddCommand(
		newSetLoginCmd(a),
		newLogoutCmd(a),
		newListWorkloadsCmd(a),
		newCreateWorkloadCmd(a),
		newCreateTemplateCmd(a),
		newDeleteWorkloadsCmd(a),
		newCreateLabelCmd(a),
		newGetLabelsCmd(a),
		newDeleteLabelCmd(a),
		newListNodesCmd(a),
		newTreeCmd(a),
		newRebootNodesCmd(a),
		newControlCmd(a, nodes.ActionStart),
		newControlCmd(a, nodes.ActionStop),
		newControlCmd(a, nodes.ActionRestart),
		newGetDNACmd(a),
		newPutDNACmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
	)
	return root
}

// normalizeFlag accepts the underscore spelling of every flag.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func (a *app) init(cmd *cobra.Command, _ []string) error {
	config.LoadDotEnv(".env")

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	opts := logger.Options{Env: cfg.Log.Env, File: cfg.Log.File}
	if a.v.GetBool("verbose") {
		opts.Env, opts.Debug = "development", true
	}
	l, err := logger.New(opts, serviceName)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	a.log = l

	a.shutdown, err = telemetry.Init(cmd.Context(), serviceName, telemetry.Options{
		Exporter: cfg.Telemetry.Exporter,
		Endpoint: cfg.Telemetry.Endpoint,
		Version:  version,
	})
	if err != nil {
		return err
	}
	ctx, span := telemetry.Tracer("cli").Start(cmd.Context(), cmd.CommandPath())
	a.span = span
	cmd.SetContext(ctx)

	a.metrics = metrics.New()
	a.printer = render.New(cmd.OutOrStdout())
	if f, ok := cmd.InOrStdin().(*os.File); ok {
		a.prompter = credentials.NewTerminalPrompter(f, cmd.OutOrStdout())
	} else {
		a.prompter = credentials.NewReaderPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	a.log.WithContext(ctx).Debug("command started",
		zap.String("command", cmd.CommandPath()),
		zap.String("config", a.v.ConfigFileUsed()),
	)
	return nil
}

// close flushes everything init set up. It runs even when the command
// failed.
func (a *app) close(ctx context.Context) {
	if a.cfg != nil {
		if err := a.metrics.WriteFile(a.cfg.Metrics.File); err != nil {
			a.log.Error("failed to write metrics file", err, zap.String("file", a.cfg.Metrics.File))
		}
	}
	if err := a.journal.Close(); err != nil {
		a.log.Error("failed to close journal", err)
	}
	if a.span != nil {
		a.span.End()
	}
	if a.shutdown != nil {
		if err := a.shutdown(ctx); err != nil {
			a.log.Error("failed to shut down tracing", err)
		}
	}
	a.log.Sync()
}

func (a *app) zap() *zap.Logger {
	return a.log.Zap()
}

func (a *app) sessionStore() *msapi.SessionStore {
	return msapi.NewSessionStore(a.cfg.Session.File)
}

func (a *app) clientOptions() []msapi.Option {
	return []msapi.Option{
		msapi.WithTimeout(a.cfg.API.Timeout),
		msapi.WithLogger(a.zap()),
		msapi.WithMetrics(a.metrics),
	}
}

// client returns a client for the stored session. Requests fail with
// ErrNotLoggedIn when there is none.
func (a *app) client() (*msapi.Client, error) {
	sess, err := a.sessionStore().Load()
	if err != nil {
		return nil, err
	}
	return msapi.NewClient(sess, a.clientOptions()...), nil
}

func (a *app) walkerOptions() []nodes.WalkerOption {
	return []nodes.WalkerOption{
		nodes.WithMaxDepth(a.cfg.Walk.MaxDepth),
		nodes.WithLogger(a.zap()),
		nodes.WithMetrics(a.metrics),
	}
}

// record adds an entry to the action journal, opening it on first use.
// Journal failures never fail the command.
func (a *app) record(action, target string, cause error) {
	if !a.cfg.Journal.Enabled {
		return
	}
	if a.journal == nil {
		j, err := journal.Open(a.cfg.Journal.Path)
		if err != nil {
			a.log.Warn("journal disabled", zap.Error(err))
			a.cfg.Journal.Enabled = false
			return
		}
		a.journal = j
	}
	if err := a.journal.Record(action, target, cause); err != nil {
		a.log.Warn("failed to record action", zap.String("action", action), zap.Error(err))
	}
}

// confirm asks question unless yes is set.
func (a *app) confirm(yes bool, format string, args ...any) (bool, error) {
	if yes {
		return true, nil
	}
	return a.prompter.Confirm(fmt.Sprintf(format, args...))
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
