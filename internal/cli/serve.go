package cli

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/config"
	"github.com/lacquerai/blockrt/internal/events"
	"github.com/lacquerai/blockrt/internal/registry"
	"github.com/lacquerai/blockrt/internal/server"
)

var (
	servePort      int
	serveHost      string
	serveMetrics   bool
	serveCORS      bool
	serveReadTime  time.Duration
	serveWriteTime time.Duration
)

// serveCmd starts an HTTP/WebSocket front end over a running set of blocks.
var serveCmd = &cobra.Command{
	Use:   "serve [blocks.yaml]",
	Short: "Serve a block configuration over HTTP and WebSocket",
	Long: `Serve loads a persisted block configuration, spawns every block, and
exposes them over a REST API and a per-block WebSocket event stream,
alongside a Prometheus metrics endpoint.

Examples:
  blockrt serve blocks.yaml
  blockrt serve blocks.yaml --port 9090 --host 0.0.0.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveBlocks(args[0])
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8090, "server port")
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "server host")
	serveCmd.Flags().BoolVar(&serveMetrics, "metrics", true, "enable Prometheus metrics endpoint")
	serveCmd.Flags().BoolVar(&serveCORS, "cors", true, "enable CORS headers")
	serveCmd.Flags().DurationVar(&serveReadTime, "read-timeout", 15*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&serveWriteTime, "write-timeout", 15*time.Second, "HTTP write timeout")
}

func serveBlocks(path string) error {
	named, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	types := defaultTypeRegistry()
	promReg := prometheus.NewRegistry()
	metrics := registry.NewMetrics(promReg)
	reg := registry.New(types, log.Logger, metrics)
	reg.Events = events.NewBus()

	for _, n := range named {
		t, ok := types.Get(n.Type)
		if !ok {
			return fmt.Errorf("block %q: unknown type %q", n.Definition.Name, n.Type)
		}
		def, err := upgradeIfNeeded(t, n.Definition)
		if err != nil {
			return fmt.Errorf("block %q: %w", n.Definition.Name, err)
		}
		state := blockstate.NewState(def.Name, n.Type, def)
		state, err = t.Initialize(state)
		if err != nil {
			return fmt.Errorf("block %q: initialize: %w", n.Definition.Name, err)
		}
		if _, err := reg.Spawn(state); err != nil {
			return fmt.Errorf("block %q: %w", n.Definition.Name, err)
		}
	}

	srvConfig := &server.Config{
		Host:            serveHost,
		Port:            servePort,
		EnableMetrics:   serveMetrics,
		EnableCORS:      serveCORS,
		ReadTimeout:     serveReadTime,
		WriteTimeout:    serveWriteTime,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
	srv := server.New(srvConfig, reg, promReg)

	fmt.Printf("serving %d blocks at http://%s:%d\n", len(named), serveHost, servePort)
	return srv.StartWithGracefulShutdown()
}
