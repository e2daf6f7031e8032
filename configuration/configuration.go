package configuration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/caritasnetwork/Caritas/emulator"
	"github.com/caritasnetwork/Caritas/fileoperations"
	"github.com/caritasnetwork/Caritas/ledger"
	"github.com/caritasnetwork/Caritas/natsclient"
	"github.com/caritasnetwork/Caritas/orchestrator"
	"github.com/caritasnetwork/Caritas/registry"
)

// Configuration is the main configuration of the application that corresponds to the *.yaml file
// that holds the configuration.
type Configuration struct {
	Ledger       ledger.Config         `yaml:"ledger"`
	Orchestrator orchestrator.Config   `yaml:"orchestrator"`
	Registry     registry.Config       `yaml:"registry"`
	FileOperator fileoperations.Config `yaml:"file_operator"`
	Nats         natsclient.Config     `yaml:"nats"`
	Emulator     emulator.Config       `yaml:"emulator"`
}

// Read reads the configuration from the file and returns the Configuration with set fields according to the yaml setup.
func Read(path string) (Configuration, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, err
	}

	var main Configuration
	err = yaml.Unmarshal(buf, &main)
	if err != nil {
		return Configuration{}, fmt.Errorf("in file %q: %w", path, err)
	}

	return main, err
}
