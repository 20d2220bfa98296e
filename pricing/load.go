package pricing

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// LoadTOML reads one provider's price list from a TOML file.
func LoadTOML(path string) (ProviderPricing, error) {
	var pp ProviderPricing
	if _, err := toml.DecodeFile(path, &pp); err != nil {
		return ProviderPricing{}, fmt.Errorf("failed to parse pricing file %s: %w", path, err)
	}
	if err := validate(pp); err != nil {
		return ProviderPricing{}, fmt.Errorf("invalid pricing file %s: %w", path, err)
	}
	return pp, nil
}

// LoadYAML reads one provider's price list from a YAML file.
func LoadYAML(path string) (ProviderPricing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProviderPricing{}, fmt.Errorf("failed to read pricing file %s: %w", path, err)
	}

	var pp ProviderPricing
	if err := yaml.Unmarshal(data, &pp); err != nil {
		return ProviderPricing{}, fmt.Errorf("failed to parse pricing file %s: %w", path, err)
	}
	if err := validate(pp); err != nil {
		return ProviderPricing{}, fmt.Errorf("invalid pricing file %s: %w", path, err)
	}
	return pp, nil
}

func validate(pp ProviderPricing) error {
	if pp.Provider == "" {
		return ErrNoProvider
	}
	if len(pp.Models) == 0 {
		return ErrNoModels
	}
	for _, mp := range pp.Models {
		if mp.Model == "" {
			return fmt.Errorf("model entry missing name")
		}
		if mp.InputPerMillion < 0 || mp.OutputPerMillion < 0 {
			return fmt.Errorf("model %s has negative pricing", mp.Model)
		}
	}
	return nil
}
