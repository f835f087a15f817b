// restub CLI - run a stub HTTP service from a definition file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getrestub/restub/pkg/config"
	"github.com/getrestub/restub/pkg/logging"
	"github.com/getrestub/restub/pkg/service"
	"github.com/getrestub/restub/pkg/tlsutil"
)

// Build-time variables set via ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "restub",
		Short:         "A stub HTTP service for test environments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newCertCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var (
		configFile string
		port       int
		trace      bool
		delay      time.Duration
		keyFile    string
		certFile   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start a stub service from a definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.LoadFromFile(configFile)
			if err != nil {
				return err
			}

			cfg := file.ServiceConfig()
			// Flags override the definition file.
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("trace") {
				cfg.Trace = trace
			}
			if cmd.Flags().Changed("delay") {
				cfg.Delay = delay
			}
			if keyFile != "" && certFile != "" {
				cfg.Secure = true
				cfg.KeyFile = keyFile
				cfg.CertFile = certFile
			}

			routes, err := file.RouteList()
			if err != nil {
				return err
			}

			log := logging.New(logging.Config{Output: cmd.ErrOrStderr()})
			svc, err := service.New(cfg, service.WithLogger(log))
			if err != nil {
				return err
			}
			for _, rt := range routes {
				svc.Add(rt)
			}

			if err := svc.Start(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Serving %d routes at %s\n", svc.Routes(), svc.Host())

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
			<-stop
			return svc.Stop()
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "restub.yaml", "definition file to serve")
	cmd.Flags().IntVarP(&port, "port", "p", service.DefaultPort, "port to listen on")
	cmd.Flags().BoolVar(&trace, "trace", false, "log request/response exchanges")
	cmd.Flags().DurationVar(&delay, "delay", 0, "artificial delay before each response body")
	cmd.Flags().StringVar(&keyFile, "key", "", "TLS private key file (enables HTTPS with --cert)")
	cmd.Flags().StringVar(&certFile, "cert", "", "TLS certificate file (enables HTTPS with --key)")
	return cmd
}

func newCertCmd() *cobra.Command {
	var (
		outDir     string
		commonName string
		validFor   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "cert",
		Short: "Generate a self-signed certificate for secure mode",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := tlsutil.DefaultCertificateConfig()
			cfg.CommonName = commonName
			cfg.ValidFor = validFor

			cert, err := tlsutil.GenerateSelfSignedCert(cfg)
			if err != nil {
				return err
			}

			certFile := filepath.Join(outDir, "server.crt")
			keyFile := filepath.Join(outDir, "server.key")
			if err := cert.WriteFiles(certFile, keyFile); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s and %s\n", certFile, keyFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "directory to write server.crt and server.key")
	cmd.Flags().StringVar(&commonName, "cn", "localhost", "certificate common name")
	cmd.Flags().DurationVar(&validFor, "valid-for", 365*24*time.Hour, "certificate validity period")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "restub %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		},
	}
}
