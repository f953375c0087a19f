package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/spf13/cobra"
)

// app is the state shared by every subcommand once flags are resolved.
type app struct {
	apiURL   string
	timeout  time.Duration
	output   string
	retries  int
	logLevel string
	client   *service.Client
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{"error": err.Error()}
			var tErr *service.TransportError
			if errors.As(err, &tErr) && tErr.StatusCode != 0 {
				errObj["http_status"] = tErr.StatusCode
				errObj["detail"] = tErr.Detail()
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// resolveAPIURL applies flag > CONSOLIDADOR_API_URL > NEXT_PUBLIC_API_URL > default.
func resolveAPIURL(cmd *cobra.Command, flagValue string) string {
	if cmd.Flags().Changed("api-url") {
		return strings.TrimRight(flagValue, "/")
	}
	for _, name := range []string{"CONSOLIDADOR_API_URL", "NEXT_PUBLIC_API_URL"} {
		if v := os.Getenv(name); v != "" {
			return strings.TrimRight(v, "/")
		}
	}
	return config.DefaultAPIURL
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "consolidador",
		Short:         "Consolidador T25 command-line client",
		Long:          "Upload master files, start and follow consolidation runs on the Consolidador T25 backend.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(a.output); err != nil {
				return err
			}
			if a.timeout <= 0 {
				return fmt.Errorf("--timeout must be positive, got %s", a.timeout)
			}

			slog.SetDefault(logger.New(cmd.ErrOrStderr(), &logger.Config{Level: a.logLevel, Format: "text"}))

			a.apiURL = resolveAPIURL(cmd, a.apiURL)
			a.client = service.NewClient(&config.APIConfig{
				BaseURL:        a.apiURL,
				TimeoutSeconds: int((a.timeout + time.Second - 1) / time.Second),
			})
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.apiURL, "api-url", config.DefaultAPIURL, "Backend base URL")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 60*time.Second, "Per-request timeout")
	rootCmd.PersistentFlags().StringVarP(&a.output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().IntVar(&a.retries, "retries", 3, "Retries for transient backend failures on submit")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newUploadCmd(a),
		newStartCmd(a),
		newProgressCmd(a),
		newCancelCmd(a),
		newResultsCmd(a),
		newWatchCmd(a),
		newRunCmd(a),
		newHealthCmd(a),
	)
	return rootCmd
}

func (a *app) retryPolicy() service.RetryPolicy {
	return service.NewRetryPolicy(config.RetryConfig{
		MaxRetries:  a.retries,
		BaseDelayMS: 500,
		MaxDelayMS:  10000,
	})
}
