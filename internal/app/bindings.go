package app

import (
	"fmt"
	"sort"

	"github.com/gsarma/botkit/internal/bot"
	"github.com/gsarma/botkit/internal/deezer"
	"github.com/gsarma/botkit/internal/jobs"
)

// BotSpec builds the binding and job registry of one bot.
type BotSpec struct {
	Binding func() bot.Binding
	Jobs    func() *jobs.Registry
}

// Bindings maps bot names, as used in the config file, to their specs.
type Bindings map[string]BotSpec

// DefaultBindings returns every bot shipped with botkit.
func DefaultBindings() Bindings {
	return Bindings{
		"deezer": {
			Binding: func() bot.Binding { return deezer.New() },
			Jobs:    deezer.Jobs,
		},
	}
}

func (b Bindings) lookup(name string) (BotSpec, error) {
	spec, ok := b[name]
	if !ok {
		return BotSpec{}, fmt.Errorf("no binding for bot %q", name)
	}
	return spec, nil
}

// Names returns the known bot names, sorted.
func (b Bindings) Names() []string {
	names := make([]string, 0, len(b))
	for n := range b {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
