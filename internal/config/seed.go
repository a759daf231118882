package config

import (
	"fmt"
	"os"

	"medi/connect/internal/emergency"
	"medi/connect/internal/ticketing"

	"gopkg.in/yaml.v3"
)

// Seed is the initial ambulance roster and film catalogue.
type Seed struct {
	Ambulances []SeedAmbulance  `yaml:"ambulances"`
	Films      []ticketing.Film `yaml:"films"`
}

type SeedAmbulance struct {
	ID           string  `yaml:"id"`
	CallSign     string  `yaml:"call_sign"`
	Driver       string  `yaml:"driver"`
	Paramedic    string  `yaml:"paramedic"`
	Availability string  `yaml:"availability"`
	Latitude     float64 `yaml:"latitude"`
	Longitude    float64 `yaml:"longitude"`
	Address      string  `yaml:"address"`
}

func (a SeedAmbulance) Resource() emergency.Resource {
	return emergency.Resource{
		ID:           a.ID,
		CallSign:     a.CallSign,
		Driver:       a.Driver,
		Paramedic:    a.Paramedic,
		Availability: emergency.Availability(a.Availability),
		Location: emergency.Location{
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
			Address:   a.Address,
		},
	}
}

// DefaultSeed is used when no seed file is configured.
func DefaultSeed() Seed {
	return Seed{
		Ambulances: []SeedAmbulance{
			{ID: "amb-001", CallSign: "A-101", Driver: "Mike Johnson", Paramedic: "Dr. Sarah Wilson",
				Latitude: 40.7128, Longitude: -74.0060, Address: "123 Main St, New York, NY"},
			{ID: "amb-002", CallSign: "A-102", Driver: "Tom Brown", Paramedic: "Dr. Lisa Chen",
				Latitude: 40.7589, Longitude: -73.9851, Address: "456 Park Ave, New York, NY"},
		},
	}
}

// LoadSeed reads a YAML seed file. An empty path returns DefaultSeed.
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("reading seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return seed, nil
}
