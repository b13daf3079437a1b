package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/worktrack/worktrack/internal/config"
	"github.com/worktrack/worktrack/internal/identity"
	"github.com/worktrack/worktrack/internal/logging"
	"github.com/worktrack/worktrack/internal/services"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("worktrack", flag.ContinueOnError)
	configDir := fs.String("config", config.DefaultDir, "Config directory holding config.yml and config.local.yml")
	host := fs.String("host", "", "Listen host, overrides server.host")
	noRealtime := fs.Bool("no-realtime", false, "Disable the websocket endpoint")
	tokenUser := fs.String("token", "", "Print a development token for this user id and exit")
	tokenName := fs.String("token-name", "", "Username claim for -token")
	tokenRoles := fs.String("token-roles", "", "Comma separated roles for -token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		return err
	}

	if *tokenUser != "" {
		return printToken(stdout, cfg.Identity, *tokenUser, *tokenName, *tokenRoles)
	}

	// 2. Logging
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	defer func() {
		if err := logging.Shutdown(); err != nil {
			log.Printf("Error closing logs: %v", err)
		}
	}()

	// 3. Build and run
	mgr := services.NewManager(cfg, services.Options{
		ListenHost:      *host,
		DisableRealtime: *noRealtime,
	})

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	shutdown := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return mgr.Shutdown(ctx)
	}

	if err := mgr.Init(initCtx); err != nil {
		return errors.Join(err, shutdown())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting worktrack", "config", *configDir, "tables", mgr.Tables().IDs())
	startErr := mgr.Start(ctx)
	if startErr == nil {
		slog.Info("Shutting down...")
	}

	// 4. Graceful shutdown
	if err := errors.Join(startErr, shutdown()); err != nil {
		return err
	}
	slog.Info("Stopped")
	return nil
}

func printToken(w io.Writer, cfg identity.Config, user, name, roles string) error {
	auth, err := identity.NewAuthenticator(cfg)
	if err != nil {
		return err
	}
	var roleList []string
	if roles != "" {
		roleList = strings.Split(roles, ",")
	}
	token, err := auth.Issue(user, name, roleList)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
