package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/snapgrab/snapgrab/internal/api"
	"github.com/snapgrab/snapgrab/internal/capture"
	"github.com/snapgrab/snapgrab/internal/config"
	"github.com/snapgrab/snapgrab/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the snapgrab HTTP server",
	Long: `Start the snapgrab HTTP server.

The server exposes one-shot region screenshots, display enumeration,
configuration, and a WebSocket endpoint where every client message is
answered with one encoded image.`,
	Example: `  # Start server on default port (8080)
  snapgrab serve

  # Start server on custom port
  snapgrab serve --port 9090

  # Start with specific config file
  snapgrab serve --config /path/to/config.yaml

  # Start with debug logging
  snapgrab serve --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}

	// Override config with command line flags if provided
	if viper.IsSet("server_port") {
		if port := viper.GetInt("server_port"); port > 0 {
			configMgr.SetPort(port)
		}
	}
	if viper.IsSet("log_level") {
		if level := viper.GetString("log_level"); level != "" {
			configMgr.SetLogLevel(level)
		}
	}

	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)
	log := logger.WithComponent("serve")
	log.Info().Str("path", configMgr.GetConfigPath()).Msg("configuration loaded")

	engine := capture.NewAsyncEngine(capture.NewEngine(capture.Config{
		Display:       cfg.Capture.Display,
		FrameTimeout:  cfg.FrameTimeout(),
		ForceFallback: cfg.Capture.ForceFallback,
		JPEGQuality:   cfg.Capture.JPEGQuality,
	}))
	defer engine.Close()

	// Bring the backend up now so a broken display surfaces at startup
	// rather than on the first request.
	if err := <-engine.Init(); err != nil {
		return fmt.Errorf("failed to initialize capture engine: %w", err)
	}

	server := api.NewServer(engine, configMgr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.ServerPort)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Info().Int("port", cfg.ServerPort).Msg("snapgrab is running")
	fmt.Printf("Screenshot API: http://localhost:%d/api/v1/screenshot?width=800&height=600\n", cfg.ServerPort)
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigChan:
	}

	fmt.Println("\nShutting down...")
	return nil
}
