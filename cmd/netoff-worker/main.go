// Command netoff-worker hosts the integrator demo simulation behind a
// netoff Worker, accepting exactly one driver connection and then exiting.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/atsika/netoff"
	"github.com/atsika/netoff/internal/integrator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	port          int
	retryAttempts int
	retryDelay    time.Duration
	logLevel      string
	logFormat     string
)

var rootCmd = &cobra.Command{
	Use:   "netoff-worker",
	Short: "Host a demo simulation behind a netoff Worker",
	Long: `netoff-worker accepts one driver connection, registers a single
built-in integrator simulation, and drives it to completion or abort.

Use "netoff-worker --help" for flag details.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, flags/env only)")
	rootCmd.Flags().IntVar(&port, "port", netoff.DefaultPort, "TCP port to bind")
	rootCmd.Flags().IntVar(&retryAttempts, "retry-attempts", netoff.DefaultRetryAttempts, "bounded accept attempt count")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", netoff.DefaultRetryDelay, "fixed inter-attempt delay between accept retries")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text, json")

	viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("retry-attempts", rootCmd.Flags().Lookup("retry-attempts"))
	viper.BindPFlag("retry-delay", rootCmd.Flags().Lookup("retry-delay"))
	viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.Flags().Lookup("log-format"))
	viper.SetEnvPrefix("NETOFF_WORKER")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newLogger builds the structured logger used for the run, choosing a
// slog.Handler from --log-format and a minimum level from --log-level,
// matching the flag/env/default precedence dittofs's config layer applies
// to its own logging.level/logging.format settings.
func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be debug, info, warn, or error", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be text or json", format)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
	}
	if viper.IsSet("port") {
		port = viper.GetInt("port")
	}
	if viper.IsSet("retry-attempts") {
		retryAttempts = viper.GetInt("retry-attempts")
	}
	if viper.IsSet("retry-delay") {
		retryDelay = viper.GetDuration("retry-delay")
	}
	if viper.IsSet("log-level") {
		logLevel = viper.GetString("log-level")
	}
	if viper.IsSet("log-format") {
		logFormat = viper.GetString("log-format")
	}

	logger, err := newLogger(logLevel, logFormat)
	if err != nil {
		return err
	}

	worker, err := netoff.NewWorker(
		netoff.WithPort(port),
		netoff.WithRetry(retryAttempts, retryDelay),
		netoff.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("new worker: %w", err)
	}

	logger.Info("waiting for driver", "port", port)
	if err := worker.InitializeConnection(); err != nil {
		return fmt.Errorf("initialize_connection: %w", err)
	}
	defer worker.Deinitialize()

	sim := integrator.New()

	if err := runInitPhase(worker, sim); err != nil {
		return err
	}
	return runStartedPhase(worker, sim)
}

func runInitPhase(worker *netoff.Worker, sim *integrator.Integrator) error {
	for {
		tag, err := worker.GetInitialClientRequest()
		if err != nil {
			return fmt.Errorf("get_initial_client_request: %w", err)
		}

		switch tag {
		case netoff.TagAddSim:
			path, simID, err := worker.GetAddedSimulation()
			if err != nil {
				return err
			}
			fmt.Printf("add_sim: id=%d path=%s\n", simID, path)
			if err := worker.ConfirmSimulationAdd(simID, integrator.PossibleInputs(), integrator.PossibleOutputs()); err != nil {
				return err
			}

		case netoff.TagInitSim:
			simID := worker.GetLastSimID()
			inputs, err := worker.GetInputValueContainer(simID)
			if err != nil {
				return err
			}
			outputs, err := worker.GetOutputValueContainer(simID)
			if err != nil {
				return err
			}
			echo, value := sim.Init(inputs.Reals()[0])
			if err := outputs.SetReals([]float64{echo, value}); err != nil {
				return err
			}
			if err := worker.ConfirmSimulationInit(simID, outputs); err != nil {
				return err
			}

		case netoff.TagGetFile:
			name, err := worker.GetSimulationFileName()
			if err != nil {
				return err
			}
			simID := worker.GetLastSimID()
			if err := worker.ConfirmSimulationFile(simID, []byte("# "+name+"\n")); err != nil {
				return err
			}

		case netoff.TagStart:
			return worker.ConfirmStart()

		case netoff.TagClientInitAbort:
			return fmt.Errorf("driver aborted during initialization")
		}
	}
}

func runStartedPhase(worker *netoff.Worker, sim *integrator.Integrator) error {
	for {
		tag, err := worker.GetClientRequest()
		if err != nil {
			return fmt.Errorf("get_client_request: %w", err)
		}

		switch tag {
		case netoff.TagInputs:
			simID := worker.GetLastSimID()
			inputs, err := worker.RecvInputValues(simID)
			if err != nil {
				return err
			}
			t := inputs.Time()
			echo, value := sim.Step(t, inputs.Reals()[0])
			outputs, err := worker.GetOutputValueContainer(simID)
			if err != nil {
				return err
			}
			if err := outputs.SetReals([]float64{echo, value}); err != nil {
				return err
			}
			if err := worker.SendOutputValues(simID, t); err != nil {
				return err
			}

		case netoff.TagPause:
			sim.Pause()
			if err := worker.ConfirmPause(); err != nil {
				return err
			}

		case netoff.TagUnpause:
			sim.Unpause()
			if err := worker.ConfirmUnpause(); err != nil {
				return err
			}

		case netoff.TagReset:
			sim.Reset()
			if err := worker.ConfirmReset(); err != nil {
				return err
			}

		case netoff.TagClientAbort:
			return nil
		}
	}
}
