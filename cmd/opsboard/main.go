// ABOUTME: Entry point for the opsboard kitchen operations server
// ABOUTME: Provides serve, useradd, users and health subcommands

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/pflag"

	"github.com/2389/opsboard/internal/auth"
	"github.com/2389/opsboard/internal/config"
	"github.com/2389/opsboard/internal/logging"
	"github.com/2389/opsboard/internal/server"
	"github.com/2389/opsboard/internal/store"
)

// version is set at build time via -ldflags.
var version = "dev"

const banner = `
   ___  _ __  ___| |__   ___   __ _ _ __ __| |
  / _ \| '_ \/ __| '_ \ / _ \ / _' | '__/ _' |
 | (_) | |_) \__ \ |_) | (_) | (_| | | | (_| |
  \___/| .__/|___/_.__/ \___/ \__,_|_|  \__,_|
       |_|
`

const defaultConfigFile = "opsboard.yaml"

func usage() {
	fmt.Println("Usage: opsboard <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                              Start the board server")
	fmt.Println("  useradd --name NAME --pin PIN      Create a user (--role admin|staff)")
	fmt.Println("  users                              List users")
	fmt.Println("  health                             Check server health")
	fmt.Println()
	fmt.Println("Every command accepts --config PATH (default: $OPSBOARD_CONFIG or ./opsboard.yaml).")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, args)
	case "useradd":
		err = runUserAdd(ctx, args)
	case "users":
		err = runUsers(ctx, args)
	case "health":
		err = runHealth(ctx, args)
	case "version", "--version":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newFlagSet returns a flag set carrying the shared --config flag.
func newFlagSet(name string, configPath *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVarP(configPath, "config", "c", "", "path to a YAML or TOML config file")
	return fs
}

// resolveConfigPath picks the config file.
// Priority: --config flag > OPSBOARD_CONFIG env var > ./opsboard.yaml if present > none
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envPath := os.Getenv("OPSBOARD_CONFIG"); envPath != "" {
		return envPath
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func loadConfig(flagValue string) (*config.Config, string, error) {
	path := resolveConfigPath(flagValue)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func runServe(ctx context.Context, args []string) error {
	var configPath string
	fs := newFlagSet("serve", &configPath)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, path, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if path == "" {
		path = "(defaults and environment)"
	}
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", path)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)
	green.Print("    ▶ ")
	fmt.Printf("Realtime:  ")
	if cfg.Realtime.RedisURL != "" {
		cyan.Print("redis relay")
	} else {
		gray.Print("single process")
	}
	fmt.Println()
	if cfg.Metrics.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Metrics:   %s\n", cfg.Metrics.Path)
	}
	if cfg.Auth.JWTSecret == "" {
		yellow.Println("    ! JWT_SECRET not set, sessions reset on restart")
	}
	fmt.Println()

	logger.Info("starting opsboard",
		"config", path,
		"http_addr", cfg.Server.HTTPAddr,
		"database", cfg.Database.Path,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

// openStore opens the configured database for offline administration.
func openStore(ctx context.Context, cfg *config.Config) (*store.SQLiteStore, error) {
	logger := logging.New(config.LoggingConfig{Level: "warn"}, os.Stderr)
	st, err := store.Open(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

func runUserAdd(ctx context.Context, args []string) error {
	var configPath, name, pin, role string
	fs := newFlagSet("useradd", &configPath)
	fs.StringVarP(&name, "name", "n", "", "display name used to sign in")
	fs.StringVarP(&pin, "pin", "p", "", "PIN (at least 4 characters)")
	fs.StringVarP(&role, "role", "r", string(store.RoleStaff), "admin or staff")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	if name == "" || pin == "" {
		return errors.New("--name and --pin are required")
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	authn := auth.NewAuthenticator(st, nil, logging.New(config.LoggingConfig{Level: "warn"}, os.Stderr))
	u, err := authn.CreateUser(ctx, name, pin, store.Role(role))
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Created %s %q (id %d)\n", u.Role, u.Name, u.ID)
	return nil
}

func runUsers(ctx context.Context, args []string) error {
	var configPath string
	fs := newFlagSet("users", &configPath)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	users, err := st.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE\tLAST LOGIN")
	for _, u := range users {
		last := "never"
		if u.LastLogin != nil {
			last = u.LastLogin.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Name, u.Role, last)
	}
	return tw.Flush()
}

func runHealth(ctx context.Context, args []string) error {
	var configPath string
	fs := newFlagSet("health", &configPath)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health", dialAddr(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status     string `json:"status"`
		Restaurant string `json:"restaurant"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Printf("%s (%s)\n", body.Status, body.Restaurant)
	return nil
}

// dialAddr turns a wildcard listen address into one a client can connect to.
func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
