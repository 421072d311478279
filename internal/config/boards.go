package config

import (
	"fmt"
	"os"
	"strings"

	"departure-board/internal/departures"

	"gopkg.in/yaml.v3"
)

// Board is a station board computed and published periodically.
type Board struct {
	Name    string   `yaml:"name"`
	Station string   `yaml:"station"`
	Mode    string   `yaml:"mode"`  // "departures" (default) or "arrivals"
	Types   []string `yaml:"types"` // e.g., ["train", "tram"]; empty means all
	Via     bool     `yaml:"via"`
	// Passengers and Freight default to true.
	Passengers *bool `yaml:"passengers"`
	Freight    *bool `yaml:"freight"`
}

func (b Board) BoardMode() (departures.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(b.Mode)) {
	case "", "departures", "departure":
		return departures.ModeDeparture, nil
	case "arrivals", "arrival":
		return departures.ModeArrival, nil
	}
	return departures.ModeDeparture, fmt.Errorf("invalid mode %q", b.Mode)
}

func (b Board) VehicleTypes() (departures.VehicleTypeMask, error) {
	return departures.ParseVehicleTypes(b.Types)
}

func (b Board) IncludePassengers() bool { return b.Passengers == nil || *b.Passengers }

func (b Board) IncludeFreight() bool { return b.Freight == nil || *b.Freight }

type Boards struct {
	Boards []Board `yaml:"boards"`
}

func LoadBoards(path string) (*Boards, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading boards file: %w", err)
	}

	var bs Boards
	if err := yaml.Unmarshal(data, &bs); err != nil {
		return nil, fmt.Errorf("parsing boards file: %w", err)
	}

	if err := bs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid boards: %w", err)
	}

	return &bs, nil
}

// Validate checks every board and fills in missing names with the station.
func (bs *Boards) Validate() error {
	seen := make(map[string]bool, len(bs.Boards))
	for i := range bs.Boards {
		b := &bs.Boards[i]
		if b.Station == "" {
			return fmt.Errorf("boards[%d]: station is required", i)
		}
		mode, err := b.BoardMode()
		if err != nil {
			return fmt.Errorf("boards[%d]: %w", i, err)
		}
		if _, err := b.VehicleTypes(); err != nil {
			return fmt.Errorf("boards[%d]: %w", i, err)
		}
		if b.Name == "" {
			b.Name = b.Station + "-" + mode.String()
		}
		if seen[b.Name] {
			return fmt.Errorf("boards[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true
	}
	return nil
}
