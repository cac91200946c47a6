// ABOUTME: Root command for the storefront CLI
// ABOUTME: Handles global flags, logging and exit code conventions

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markalston/storefront-client/internal/cart"
	"github.com/markalston/storefront-client/internal/config"
	"github.com/markalston/storefront-client/internal/gateway"
	"github.com/markalston/storefront-client/internal/logger"
	"github.com/markalston/storefront-client/internal/session"
	"github.com/markalston/storefront-client/internal/tui"
)

var (
	apiURL     string
	jsonOutput bool
	configDir  string
	verbose    bool
)

// Exit codes
const (
	exitOK          = 0
	exitUsage       = 1
	exitUnavailable = 2
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Shop from the terminal",
	Long: `storefront is a command-line client for the storefront API.

Browse and search products, keep a cart on this device before logging in,
and have it merged into your account cart when you do.

Environment Variables:
  STOREFRONT_API_URL           API root (default: http://localhost:8000/api/)
  STOREFRONT_CONFIG_DIR        Where session and cart state is kept
  STOREFRONT_STORE_URL         redis:// URL to keep state in Redis instead
  STOREFRONT_ALL_PROXY         ssh+socks5://user@host:port?private-key=path
  STOREFRONT_TIMEOUT           Request timeout in seconds (default: 60)
  STOREFRONT_ORDERS_CACHE_TTL  Seconds an order list is reused (default: 30)
  STOREFRONT_LOG_LEVEL         debug, info, warn, error (default: info)
  STOREFRONT_LOG_FORMAT        text or json (default: text)`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opts := logger.FromEnv()
		if verbose {
			opts.Level = "debug"
		}
		logger.Init(opts)
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Storefront API URL (overrides STOREFRONT_API_URL)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "State directory (overrides STOREFRONT_CONFIG_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
}

// loadConfig reads the environment and applies flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if apiURL != "" {
		cfg.APIURL = config.NormalizeAPIURL(apiURL)
	}
	if configDir != "" {
		cfg.ConfigDir = configDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsJSONOutput returns whether JSON output is requested
func IsJSONOutput() bool {
	return jsonOutput
}

// run wires signal handling around a command body and exits with its code
func run(fn func(ctx context.Context, w io.Writer) int) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := fn(ctx, os.Stdout)
	cancel()
	if exitCode != exitOK {
		os.Exit(exitCode)
	}
}

// usageError reports a bad argument and exits
func usageError(cmd *cobra.Command, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	os.Exit(exitUsage)
}

// exitCodeFor maps an error to the process exit code:
// 2 when the storefront could not be reached or failed, 1 otherwise
func exitCodeFor(err error) int {
	if err == nil {
		return exitOK
	}
	if kind, ok := gateway.KindOf(err); ok && (kind == gateway.KindNetwork || kind == gateway.KindServer) {
		return exitUnavailable
	}
	return exitUsage
}

// describe turns an error into a short message for the terminal
func describe(err error) string {
	var refused *loginRefusedError
	switch {
	case errors.As(err, &refused):
		return refused.Error()
	case errors.Is(err, session.ErrSessionChanged):
		return "Your session ended before the command finished. Log in again."
	case errors.Is(err, tui.ErrCancelled):
		return "Cancelled"
	case errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, cart.ErrLoginRequired):
		return "Not logged in. Run 'storefront login' first."
	case gateway.IsKind(err, gateway.KindAuthorization):
		return "Your session has expired or was revoked. Log in again."
	}
	return err.Error()
}
