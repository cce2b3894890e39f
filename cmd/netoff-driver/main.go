// Command netoff-driver connects to a netoff-worker, registers and runs the
// integrator demo simulation for a fixed number of steps, then aborts.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/atsika/netoff"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	host          string
	port          int
	retryAttempts int
	retryDelay    time.Duration
	logLevel      string
	logFormat     string
	steps         int
	dt            float64
	rate          float64
	path          string
)

var rootCmd = &cobra.Command{
	Use:   "netoff-driver",
	Short: "Drive the integrator demo simulation over netoff",
	Long: `netoff-driver connects to a netoff-worker, registers the built-in
integrator simulation, runs it for a fixed number of steps feeding a
constant rate, and prints the outputs after each step.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none, flags/env only)")
	rootCmd.Flags().StringVar(&host, "host", "127.0.0.1", "worker host to connect to")
	rootCmd.Flags().IntVar(&port, "port", netoff.DefaultPort, "worker TCP port")
	rootCmd.Flags().IntVar(&retryAttempts, "retry-attempts", netoff.DefaultRetryAttempts, "bounded connect attempt count")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", netoff.DefaultRetryDelay, "fixed inter-attempt delay between connect retries")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "log format: text, json")
	rootCmd.Flags().IntVar(&steps, "steps", 10, "number of INPUTS/OUTPUTS rounds to run")
	rootCmd.Flags().Float64Var(&dt, "dt", 1.0, "timestep between rounds")
	rootCmd.Flags().Float64Var(&rate, "rate", 1.0, "constant input rate")
	rootCmd.Flags().StringVar(&path, "path", "integrator.sim", "simulation path reported to the worker")

	viper.BindPFlag("host", rootCmd.Flags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.Flags().Lookup("port"))
	viper.BindPFlag("retry-attempts", rootCmd.Flags().Lookup("retry-attempts"))
	viper.BindPFlag("retry-delay", rootCmd.Flags().Lookup("retry-delay"))
	viper.BindPFlag("log-level", rootCmd.Flags().Lookup("log-level"))
	viper.BindPFlag("log-format", rootCmd.Flags().Lookup("log-format"))
	viper.SetEnvPrefix("NETOFF_DRIVER")
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
	if viper.IsSet("host") {
		host = viper.GetString("host")
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

	driver, err := netoff.NewDriver(
		netoff.WithPort(port),
		netoff.WithRetry(retryAttempts, retryDelay),
		netoff.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("new driver: %w", err)
	}

	logger.Info("connecting to worker", "host", host, "port", port)
	if err := driver.InitializeConnection(host); err != nil {
		return fmt.Errorf("initialize_connection: %w", err)
	}
	defer driver.Deinitialize()

	simID, possibleInputs, possibleOutputs, err := driver.AddSimulation(path)
	if err != nil {
		return fmt.Errorf("add_simulation: %w", err)
	}
	fmt.Printf("registered sim %d, possible inputs=%v outputs=%v\n", simID, possibleInputs, possibleOutputs)

	initialOutputs, err := driver.InitializeSimulation(simID, possibleInputs, possibleOutputs,
		[]float64{0}, nil, nil)
	if err != nil {
		return fmt.Errorf("initialize_simulation: %w", err)
	}
	fmt.Printf("initial outputs=%v\n", initialOutputs.Reals())

	if err := driver.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	for i := 1; i <= steps; i++ {
		t := float64(i) * dt
		inputs, err := driver.GetInputValueContainer(simID)
		if err != nil {
			return err
		}
		if err := inputs.SetReals([]float64{rate}); err != nil {
			return err
		}
		if err := driver.SendInputValues(simID, t); err != nil {
			return fmt.Errorf("send_input_values: %w", err)
		}
		outputs, err := driver.RecvOutputValues(simID)
		if err != nil {
			return fmt.Errorf("recv_output_values: %w", err)
		}
		fmt.Printf("t=%.2f outputs=%v\n", t, outputs.Reals())
	}

	return driver.ClientAbort(simID)
}
