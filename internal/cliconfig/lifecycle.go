package cliconfig

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/bft-labs/modrun/pkg/lifecycle"
)

// LifecycleFile is the TOML form of a lifecycle:
//
//	initial = "discovered"
//	failed = "failed"
//
//	[[state]]
//	name = "loaded"
//	from = ["discovered"]
//	order = "ascending"
//	actions = ["log"]
type LifecycleFile struct {
	Initial string      `toml:"initial"`
	Failed  string      `toml:"failed"`
	States  []StateFile `toml:"state"`
}

// StateFile is one [[state]] table.
type StateFile struct {
	Name     string   `toml:"name"`
	From     []string `toml:"from"`
	Order    string   `toml:"order"`
	Terminal bool     `toml:"terminal"`
	Actions  []string `toml:"actions"`
}

// ActionBuilder creates state actions from their configured names.
type ActionBuilder interface {
	Build(state, spec string) (lifecycle.Action, error)
}

// DefaultLifecycle returns the built-in lifecycle:
//
//	discovered -> loaded -> enabled -> disabled -> unloaded
//	                 \_______________________________/
//
// Startup states are ascending; teardown states are descending and unloaded
// is terminal. Every state logs its entry.
func DefaultLifecycle() LifecycleFile {
	return LifecycleFile{
		Initial: "discovered",
		Failed:  "failed",
		States: []StateFile{
			{Name: "loaded", From: []string{"discovered"}, Order: "ascending", Actions: []string{"log"}},
			{Name: "enabled", From: []string{"loaded"}, Order: "ascending", Actions: []string{"log"}},
			{Name: "disabled", From: []string{"enabled"}, Order: "descending", Actions: []string{"log"}},
			{Name: "unloaded", From: []string{"disabled", "loaded"}, Order: "descending", Terminal: true, Actions: []string{"log"}},
			{Name: "failed", Order: "unordered", Actions: []string{"log"}},
		},
	}
}

// LoadLifecycle reads and parses a lifecycle TOML file.
func LoadLifecycle(path string) (LifecycleFile, error) {
	var lf LifecycleFile
	b, err := os.ReadFile(path)
	if err != nil {
		return lf, err
	}
	if err := toml.Unmarshal(b, &lf); err != nil {
		return lf, fmt.Errorf("parse lifecycle: %w", err)
	}
	return lf, nil
}

// Build turns the file into a lifecycle graph. The initial and failed states
// may be declared as [[state]] tables to give them actions; otherwise they are
// created bare.
func (lf LifecycleFile) Build(actions ActionBuilder) (*lifecycle.Graph, error) {
	states := make([]*lifecycle.State, 0, len(lf.States))
	byName := make(map[string]*lifecycle.State, len(lf.States))

	for _, sf := range lf.States {
		order, err := lifecycle.ParseOrder(sf.Order)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", sf.Name, err)
		}

		s := &lifecycle.State{
			Name:     sf.Name,
			From:     sf.From,
			Order:    order,
			Terminal: sf.Terminal,
		}
		for _, spec := range sf.Actions {
			a, err := actions.Build(sf.Name, spec)
			if err != nil {
				return nil, fmt.Errorf("state %q: %w", sf.Name, err)
			}
			s.Actions = append(s.Actions, a)
		}

		states = append(states, s)
		if _, dup := byName[sf.Name]; !dup {
			byName[sf.Name] = s
		}
	}

	pick := func(name string) *lifecycle.State {
		if s, ok := byName[name]; ok {
			return s
		}
		if name == "" {
			return nil
		}
		return &lifecycle.State{Name: name}
	}

	return lifecycle.NewGraph(lifecycle.Config{
		States:  states,
		Initial: pick(lf.Initial),
		Failed:  pick(lf.Failed),
	})
}
