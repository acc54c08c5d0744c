package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/genotype"
)

// OutputManager handles structured experiment output with CSV logging.
// A nil *OutputManager accepts every call and writes nothing.
type OutputManager struct {
	dir             string
	generationsFile *os.File
	rolloutsFile    *os.File

	// Track if headers have been written
	generationsHeaderWritten bool
	rolloutsHeaderWritten    bool
}

// NewOutputManager creates the output directory and its CSV files.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "generations.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating generations.csv: %w", err)
	}
	om.generationsFile = f

	f, err = os.Create(filepath.Join(dir, "rollouts.csv"))
	if err != nil {
		om.generationsFile.Close()
		return nil, fmt.Errorf("creating rollouts.csv: %w", err)
	}
	om.rolloutsFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteGeneration appends a record to generations.csv.
func (om *OutputManager) WriteGeneration(stats GenerationStats) error {
	if om == nil {
		return nil
	}
	if err := writeCSV(om.generationsFile, []GenerationStats{stats}, &om.generationsHeaderWritten); err != nil {
		return fmt.Errorf("writing generation: %w", err)
	}
	return nil
}

// WriteRollout appends a record to rollouts.csv.
func (om *OutputManager) WriteRollout(rec RolloutRecord) error {
	if om == nil {
		return nil
	}
	if err := writeCSV(om.rolloutsFile, []RolloutRecord{rec}, &om.rolloutsHeaderWritten); err != nil {
		return fmt.Errorf("writing rollout: %w", err)
	}
	return nil
}

// WriteBest saves the best genotype in the genotype text format.
func (om *OutputManager) WriteBest(g *genotype.Graph) error {
	if om == nil || g == nil {
		return nil
	}
	if err := genotype.SaveFile(filepath.Join(om.dir, "best.genotype"), g); err != nil {
		return fmt.Errorf("writing best.genotype: %w", err)
	}
	return nil
}

// writeCSV writes records with a header row on the first call only.
func writeCSV(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	for _, f := range []*os.File{om.generationsFile, om.rolloutsFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
