package common

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// ApplianceConfig maps an appliance type to its rated power draw.
type ApplianceConfig struct {
	Type    string  `yaml:"type"`
	PowerKW float64 `yaml:"power_kw"`
}

type appliancesFile struct {
	Appliances []ApplianceConfig `yaml:"appliances"`
}

// FuelConfig holds the emission factor for a fuel type. Kilogram inputs
// are the historical unit of the factor datasets; they are converted to
// grams here, at the edge, so nothing downstream ever sees kilograms.
type FuelConfig struct {
	Fuel            string  `yaml:"fuel"`
	FactorKgPerKWh  float64 `yaml:"factor_kg_per_kwh"`
	NonAttributable bool    `yaml:"non_attributable"` // Storage and similar net flows
}

type fuelsFile struct {
	Fuels []FuelConfig `yaml:"fuels"`
}

// LeagueConfig is one rung of the promotion ladder.
type LeagueConfig struct {
	Name       string  `yaml:"name"`
	ThresholdG float64 `yaml:"threshold_g"` // monthly grams needed to leave this league
}

type leaguesFile struct {
	Leagues []LeagueConfig `yaml:"leagues"`
}

// LoadApplianceTable reads the appliance-type → power-draw table.
func LoadApplianceTable(file string) (map[string]float64, error) {
	var parsed appliancesFile
	if err := loadYaml(file, &parsed); err != nil {
		return nil, err
	}

	table := make(map[string]float64, len(parsed.Appliances))
	for i, a := range parsed.Appliances {
		if a.Type == "" {
			return nil, fmt.Errorf("appliance at index %d missing type", i)
		}
		if a.PowerKW <= 0 {
			return nil, fmt.Errorf("appliance %q has non-positive power draw", a.Type)
		}
		table[a.Type] = a.PowerKW
	}
	return table, nil
}

// LoadEmissionFactors reads the per-fuel emission factor table and returns
// it in grams CO2e per kWh. Non-attributable fuels are omitted from the
// map entirely, which excludes them from the intensity mix.
func LoadEmissionFactors(file string) (map[string]float64, error) {
	var parsed fuelsFile
	if err := loadYaml(file, &parsed); err != nil {
		return nil, err
	}

	factors := make(map[string]float64, len(parsed.Fuels))
	for i, f := range parsed.Fuels {
		if f.Fuel == "" {
			return nil, fmt.Errorf("fuel at index %d missing name", i)
		}
		if f.NonAttributable {
			continue
		}
		if f.FactorKgPerKWh < 0 {
			return nil, fmt.Errorf("fuel %q has negative emission factor", f.Fuel)
		}
		factors[f.Fuel] = f.FactorKgPerKWh * 1000.0
	}
	if len(factors) == 0 {
		return nil, fmt.Errorf("no attributable fuels configured in %s", file)
	}
	return factors, nil
}

// LoadLeagueTable reads the league ladder in ascending order.
func LoadLeagueTable(file string) ([]LeagueConfig, error) {
	var parsed leaguesFile
	if err := loadYaml(file, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Leagues) == 0 {
		return nil, fmt.Errorf("no leagues configured in %s", file)
	}
	for i, l := range parsed.Leagues {
		if l.Name == "" {
			return nil, fmt.Errorf("league at index %d missing name", i)
		}
	}
	return parsed.Leagues, nil
}

func loadYaml(file string, out interface{}) error {
	var path string
	if filepath.IsAbs(file) {
		path = file
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, file)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read %s: %w", file, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unable to parse %s: %w", file, err)
	}
	return nil
}
