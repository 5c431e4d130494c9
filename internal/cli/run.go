package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lacquerai/blockrt/internal/blockstate"
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/config"
	"github.com/lacquerai/blockrt/internal/registry"
)

var saveState bool

// runCmd executes a block configuration until interrupted and, with
// --save-state, persists whatever state the blocks ended up in back to the
// same file.
var runCmd = &cobra.Command{
	Use:   "run [blocks.yaml]",
	Short: "Run a block configuration until interrupted",
	Long: `Run loads a persisted block configuration, spawns every block as a
live actor, and lets the timer scheduler and control-flow links drive
execution until interrupted (Ctrl-C).

Examples:
  blockrt run blocks.yaml
  blockrt run blocks.yaml --save-state`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			log.Info().Msg("received interrupt, shutting down")
			cancel()
		}()

		return runBlocks(ctx, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&saveState, "save-state", false, "write block definitions back to the config file on exit")
}

func runBlocks(ctx context.Context, path string) error {
	named, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	types := defaultTypeRegistry()
	metrics := registry.NewMetrics(prometheus.NewRegistry())
	reg := registry.New(types, log.Logger, metrics)

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

	fmt.Printf("running %d blocks, press Ctrl-C to stop\n", len(named))
	<-ctx.Done()

	if saveState {
		out := make([]config.Named, 0, len(named))
		for _, n := range named {
			a, ok := reg.Get(n.Definition.Name)
			if !ok {
				continue
			}
			out = append(out, config.Named{Type: n.Type, Definition: a.Snapshot().ToDefinition()})
		}
		config.Reconcile(out)
		if err := config.Save(path, out); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	return nil
}

// upgradeIfNeeded reconciles a persisted definition whose "version" config
// lags the registered type's current version.
func upgradeIfNeeded(t blocktype.Type, def *blockstate.Definition) (*blockstate.Definition, error) {
	v, ok := def.Config.Get(blockstate.AttrVersion)
	if !ok {
		return def, nil
	}
	persisted, ok := v.Value.AsString()
	if !ok {
		return def, nil
	}
	needs, err := blocktype.NeedsUpgrade(t, persisted)
	if err != nil {
		return nil, err
	}
	if !needs {
		return def, nil
	}
	return t.Upgrade(def)
}
