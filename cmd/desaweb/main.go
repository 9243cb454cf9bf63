// Command desaweb runs the village site backend and its admin tooling.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kkn-guyangan/desaweb"
	"github.com/kkn-guyangan/desaweb/logging"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "desaweb",
	Short: "desaweb - Padukuhan Guyangan village site backend",
	Long: `desaweb serves the public JSON API, RSS feed and sitemap of the
village site, plus the admin endpoints for articles, gallery photos and
local businesses.

Configuration comes from an optional YAML file, a .env file and the
environment, in that order.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage admin accounts",
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an admin account",
	Long: `Stores a new admin login in the accounts collection.

Example:
  desaweb account add --username admin --password rahasia --name "Admin Desa"`,
	RunE: runAccountAdd,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the desaweb version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "desaweb %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "desaweb.yaml", "path to the YAML config file")

	accountAddCmd.Flags().String("name", "", "display name (defaults to the username)")
	accountAddCmd.Flags().String("username", "", "login username")
	accountAddCmd.Flags().String("password", "", "login password")
	_ = accountAddCmd.MarkFlagRequired("username")
	_ = accountAddCmd.MarkFlagRequired("password")

	accountCmd.AddCommand(accountAddCmd)
	rootCmd.AddCommand(serveCmd, accountCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and initializes the app.
func setup() (*desaweb.App, error) {
	cfg, err := desaweb.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger, err = logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app := desaweb.New(cfg, desaweb.WithLogger(logger))
	if err := app.Init(); err != nil {
		return nil, err
	}
	return app, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.Start(ctx)
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	app, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer app.Close()

	acct, err := app.Content.AddAccount(cmd.Context(), name, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account %q added (id %s)\n", acct.Username, acct.ID)
	return nil
}
