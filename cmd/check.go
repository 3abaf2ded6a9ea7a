package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/danielolaszy/tasklane/internal/bridge"
	"github.com/danielolaszy/tasklane/internal/config"
	"github.com/danielolaszy/tasklane/internal/extract"
	"github.com/danielolaszy/tasklane/internal/logging"
	"github.com/danielolaszy/tasklane/internal/tracker"
	"github.com/spf13/cobra"
)

// checkCmd reports which configuration variables are set.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the environment and .env configuration",
	Long: `Report whether a .env file was found and which configuration variables are
set. Secrets are masked. Exits non-zero when a required variable is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")

		_, statErr := os.Stat(envFile)
		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}

		missing := writeCheckReport(cmd.OutOrStdout(), envFile, statErr == nil, cfg.Variables())
		if len(missing) > 0 {
			return fmt.Errorf("missing required environment variables: %v", missing)
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			return pingServices(cmd.Context(), cmd.OutOrStdout(), cfg)
		}
		return nil
	},
}

// pingServices makes one live call to each configured backend.
func pingServices(ctx context.Context, w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "\nConnectivity:")
	failed := 0
	report := func(name string, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(w, "  ✗ %-10s %v\n", name, err)
			return
		}
		fmt.Fprintf(w, "  ✓ %-10s ok\n", name)
	}

	_, err := tracker.Open(ctx, cfg)
	report(cfg.TrackerKind, err)

	completer, err := extract.NewGeminiCompleter(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, cfg.AI.Timeout)
		err = completer.Ping(pingCtx)
		cancel()
	}
	report("gemini", err)

	if cfg.Bridge.Endpoint != "" {
		client, err := bridge.NewClient(bridge.Options{
			Endpoint: cfg.Bridge.Endpoint,
			Tool:     cfg.Bridge.Tool,
			Timeout:  cfg.Bridge.Timeout,
		})
		if err == nil {
			err = client.Probe(ctx)
			client.Close()
		}
		report("bridge", err)
	}

	if failed > 0 {
		return fmt.Errorf("%d service(s) unreachable", failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().String("env-file", ".env", "dotenv file to read")
	checkCmd.Flags().Bool("ping", false, "also call the tracker, Gemini and the bridge")
}

// writeCheckReport prints one line per variable and returns the names of
// required variables that are not set.
func writeCheckReport(w io.Writer, envFile string, envFound bool, vars []config.Variable) []string {
	if envFound {
		fmt.Fprintf(w, "✓ %s found and loaded\n\n", envFile)
	} else {
		fmt.Fprintf(w, "! %s not found, using the process environment only\n\n", envFile)
	}

	var missing []string
	for _, v := range vars {
		value := v.Value
		if v.Sensitive {
			value = logging.MaskSensitive(value)
		}

		switch {
		case v.Value != "":
			fmt.Fprintf(w, "  ✓ %-26s %s\n", v.Name, value)
		case v.Required:
			fmt.Fprintf(w, "  ✗ %-26s missing\n", v.Name)
			missing = append(missing, v.Name)
		default:
			fmt.Fprintf(w, "  - %-26s not set (optional)\n", v.Name)
		}
	}

	if len(missing) == 0 {
		fmt.Fprintln(w, "\nAll required variables are set.")
	} else {
		fmt.Fprintf(w, "\n%d required variable(s) missing.\n", len(missing))
	}
	return missing
}
