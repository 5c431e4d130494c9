package cli

import (
	"github.com/lacquerai/blockrt/internal/blocktype"
	"github.com/lacquerai/blockrt/internal/blocktypes/counter"
	"github.com/lacquerai/blockrt/internal/blocktypes/gpio"
)

// defaultTypeRegistry returns the startup-time registry of every block type
// this binary knows how to run.
func defaultTypeRegistry() *blocktype.Registry {
	r := blocktype.NewRegistry()
	r.Register(counter.New())
	r.Register(gpio.NewDigitalOutput(gpio.NewFakeDriver()))
	r.Register(gpio.NewDigitalInput(gpio.NewFakeDriver()))
	return r
}
