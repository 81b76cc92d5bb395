package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"scoped/internal/config"
	"scoped/internal/registry"
)

// flagValues holds raw flag values; only flags the user changed override
// the file and environment configuration.
type flagValues struct {
	configPath     string
	envFile        string
	addr           string
	modelsDir      string
	pipeline       string
	pipelineParams map[string]string
	loadTimeout    time.Duration
	frameTimeout   time.Duration
	queueCapacity  int
	shutdownGrace  time.Duration
	logLevel       string
	logFormat      string
	corsOrigins    string
	maxBodyBytes   int64
	udpPortMin     uint16
	udpPortMax     uint16
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&flagValues{}) }

// newRootCmdWith binds the root flags to fv.
func newRootCmdWith(fv *flagValues) *cobra.Command {
	d := config.Defaults()
	root := &cobra.Command{
		Use:           "scoped",
		Short:         "Real-time video pipeline server",
		Long:          "scoped serves WebRTC sessions whose video is processed by a hot-swappable pipeline.",
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, fv)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	f := root.Flags()
	f.StringVar(&fv.configPath, "config", "", "Path to a YAML/JSON/TOML config file")
	f.StringVar(&fv.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing is ignored)")
	f.StringVar(&fv.addr, "addr", d.Addr, "HTTP listen address (env SCOPE_ADDR)")
	f.StringVar(&fv.modelsDir, "models-dir", d.ModelsDir, "Models directory; LoRA files live under <dir>/lora (env SCOPE_MODELS_DIR)")
	f.StringVar(&fv.pipeline, "pipeline", "", "Pipeline id to pre-warm at startup (env PIPELINE)")
	f.StringToStringVar(&fv.pipelineParams, "pipeline-param", nil, "Pre-warm load parameter, key=value (repeatable)")
	f.DurationVar(&fv.loadTimeout, "load-timeout", d.LoadTimeout.D(), "Deadline for a single pipeline load")
	f.DurationVar(&fv.frameTimeout, "frame-timeout", d.FrameTimeout.D(), "Per-frame processing bound")
	f.IntVar(&fv.queueCapacity, "queue-capacity", d.QueueCapacity, "Inbound frames buffered per media line")
	f.DurationVar(&fv.shutdownGrace, "shutdown-grace", d.ShutdownGrace.D(), "Grace period for sessions to drain on shutdown")
	f.StringVar(&fv.logLevel, "log-level", d.LogLevel, "Log level: debug|info|warn|error (env SCOPE_LOG_LEVEL, VERBOSE_LOGGING)")
	f.StringVar(&fv.logFormat, "log-format", d.LogFormat, "Log format: json|console (env SCOPE_LOG_FORMAT)")
	f.StringVar(&fv.corsOrigins, "cors-origins", strings.Join(d.CORSOrigins, ","), "Comma-separated allowed CORS origins; empty disables CORS")
	f.Int64Var(&fv.maxBodyBytes, "max-body-bytes", d.MaxBodyBytes, "Maximum JSON request body size")
	f.Uint16Var(&fv.udpPortMin, "udp-port-min", 0, "Lowest UDP port for ICE candidates (0 = any)")
	f.Uint16Var(&fv.udpPortMax, "udp-port-max", 0, "Highest UDP port for ICE candidates (0 = any)")

	root.SetVersionTemplate("scoped {{.Version}}\n")
	root.AddCommand(newVersionCmd(), newPipelinesCmd())
	return root
}

// buildConfig layers defaults < config file < environment < flags.
func buildConfig(cmd *cobra.Command, fv *flagValues) (config.Config, error) {
	if err := config.LoadDotEnv(fv.envFile); err != nil {
		return config.Config{}, fmt.Errorf("load %s: %w", fv.envFile, err)
	}
	var cfg config.Config
	if fv.configPath != "" {
		c, err := config.Load(fv.configPath)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	cfg = cfg.WithDefaults()
	config.ApplyEnv(&cfg)

	changed := cmd.Flags().Changed
	if changed("addr") {
		cfg.Addr = fv.addr
	}
	if changed("models-dir") {
		cfg.ModelsDir = fv.modelsDir
	}
	if changed("pipeline") {
		cfg.Pipeline = fv.pipeline
	}
	if changed("pipeline-param") {
		cfg.PipelineParams = fv.pipelineParams
	}
	if changed("load-timeout") {
		cfg.LoadTimeout = config.Duration(fv.loadTimeout)
	}
	if changed("frame-timeout") {
		cfg.FrameTimeout = config.Duration(fv.frameTimeout)
	}
	if changed("queue-capacity") {
		cfg.QueueCapacity = fv.queueCapacity
	}
	if changed("shutdown-grace") {
		cfg.ShutdownGrace = config.Duration(fv.shutdownGrace)
	}
	if changed("log-level") {
		cfg.LogLevel = fv.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = fv.logFormat
	}
	if changed("cors-origins") {
		cfg.CORSOrigins = splitCSV(fv.corsOrigins)
	}
	if changed("max-body-bytes") {
		cfg.MaxBodyBytes = fv.maxBodyBytes
	}
	if changed("udp-port-min") {
		cfg.UDPPortMin = fv.udpPortMin
	}
	if changed("udp-port-max") {
		cfg.UDPPortMax = fv.udpPortMax
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and VCS revision",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scoped", versionString())
		},
	}
}

func newPipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List built-in pipelines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tACCELERATOR\tPARAMS")
			for _, e := range registry.Default().List() {
				accel := "no"
				if e.Capabilities.RequiresAccelerator {
					accel = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Name, accel, strings.Join(e.Capabilities.Params, ","))
			}
			return tw.Flush()
		},
	}
}

// splitCSV splits a comma-separated string into trimmed non-empty items.
func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

