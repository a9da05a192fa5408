package ingest

import (
	"fmt"
	"os"

	"github.com/erain9/matchbook/pkg/core"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of book commands
//
//	name: crossing
//	commands:
//	  - {action: submit, id: 1, trader: alice, side: SELL, price: "100", quantity: 2}
//	  - {action: cancel, id: 1}
type Scenario struct {
	Name     string        `yaml:"name"`
	Commands []ScenarioCmd `yaml:"commands"`
}

// ScenarioCmd is one YAML command entry
type ScenarioCmd struct {
	Action    string `yaml:"action"`
	ID        uint64 `yaml:"id"`
	Trader    string `yaml:"trader"`
	Side      string `yaml:"side"`
	Price     string `yaml:"price"`
	Quantity  uint32 `yaml:"quantity"`
	Timestamp int64  `yaml:"timestamp"`
}

// ParseScenario decodes a YAML scenario. Submits without an id get the
// next sequential id; missing timestamps default to the command position.
func ParseScenario(data []byte) ([]Command, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	cmds := make([]Command, 0, len(s.Commands))
	var nextID uint64 = 1

	for i, sc := range s.Commands {
		pos := i + 1

		action, err := ParseAction(sc.Action)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", pos, err)
		}

		if action == ActionCancel {
			if sc.ID == 0 {
				return nil, fmt.Errorf("command %d: cancel needs an id", pos)
			}
			cmds = append(cmds, Command{Action: ActionCancel, OrderID: sc.ID, Line: pos})
			continue
		}

		side, err := core.ParseSide(sc.Side)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", pos, err)
		}

		price, err := core.ParsePrice(sc.Price)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", pos, err)
		}

		id := sc.ID
		if id == 0 {
			id = nextID
		}
		if id >= nextID {
			nextID = id + 1
		}

		ts := sc.Timestamp
		if ts == 0 {
			ts = int64(pos)
		}

		order := core.NewLimitOrder(id, ts, sc.Trader, side, price, sc.Quantity)
		cmds = append(cmds, Command{Action: ActionSubmit, Order: order, OrderID: id, Line: pos})
	}

	return cmds, nil
}

// LoadScenario reads and parses a scenario file
func LoadScenario(path string) ([]Command, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	return ParseScenario(data)
}
