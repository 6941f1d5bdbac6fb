package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/sessionhub/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionhub/internal/server"
)

// serveFlags override the environment configuration when set
type serveFlags struct {
	engine     string
	host       string
	port       string
	controlURL string
	rules      string
	headful    bool
	dev        bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sessiond",
		Short: "Browser session registry with an HTTP and WebSocket inspection API",
		Long: `sessiond keeps the set of browser sessions, tracks which one is current,
and relays engine events to connected clients.

Configuration is read from SESSIONHUB_* environment variables; flags
override them.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd(), newRulesCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var f serveFlags
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session registry server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)

			srv, err := server.New(cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			defer srv.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	f.bind(cmd)
	return cmd
}

func (f *serveFlags) bind(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.engine, "engine", "", "Web engine: memory or rod")
	fl.StringVar(&f.host, "host", "", "Listen host")
	fl.StringVarP(&f.port, "port", "p", "", "Listen port")
	fl.StringVar(&f.controlURL, "control-url", "", "Attach to a running Chrome instead of launching one")
	fl.StringVar(&f.rules, "rules", "", "Per-site rules file (yaml, toml or json)")
	fl.BoolVar(&f.headful, "headful", false, "Show the launched Chrome window")
	fl.BoolVar(&f.dev, "dev", false, "Development logging")
}

// apply copies every flag the user set onto cfg
func (f *serveFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("engine") {
		cfg.Engine.Kind = f.engine
	}
	if changed("host") {
		cfg.Server.Host = f.host
	}
	if changed("port") {
		cfg.Server.Port = f.port
	}
	if changed("control-url") {
		cfg.Engine.ControlURL = f.controlURL
	}
	if changed("rules") {
		cfg.RulesFile = f.rules
	}
	if changed("headful") {
		cfg.Engine.Headless = !f.headful
	}
	if changed("dev") {
		cfg.Logging.Development = f.dev
		if f.dev {
			cfg.Logging.Level = "debug"
		}
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sessiond %s\n", server.Version)
		},
	}
}

func newRulesCmd() *cobra.Command {
	rules := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and convert per-site rules files",
	}

	rules.AddCommand(&cobra.Command{
		Use:   "check <file>",
		Short: "Validate a rules file and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := config.LoadRules(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user agent rules: %d\n", len(r.UserAgents))
			fmt.Fprintf(out, "drm hosts:        %d\n", len(r.DRMHosts))
			fmt.Fprintf(out, "pop-up decisions: %d\n", len(r.PopupDecisions))
			return nil
		},
	})

	rules.AddCommand(&cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Rewrite a rules file in the format named by the output extension",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return convertRules(args[0], args[1])
		},
	})
	return rules
}

func convertRules(in, out string) error {
	r, err := config.LoadRules(in)
	if err != nil {
		return err
	}
	data, err := config.EncodeRules(filepath.Ext(out), r)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
