package soundbank

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	ErrBankNotFound = errors.New("soundbank not found")
	ErrInvalidBank  = errors.New("invalid soundbank")
)

// Instrument describes one instrument category: its track color and the
// sounds a user holding it may place on the timeline.
type Instrument struct {
	Name   string   `json:"name"`
	Color  string   `json:"color"`
	Sounds []string `json:"sounds"`
}

// Bank is a complete sound-library manifest.
type Bank struct {
	Name        string       `json:"name"`
	Instruments []Instrument `json:"instruments"`
}

// Manager loads and caches soundbank manifests from a directory.
type Manager struct {
	dir   string
	def   *Bank
	banks map[string]*Bank
	mu    sync.RWMutex
}

// NewManager creates a manager rooted at dir. An empty dir means only the
// built-in default bank is available. If dir contains default.json it
// overrides the built-in default.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{
		dir:   dir,
		def:   defaultBank(),
		banks: make(map[string]*Bank),
	}

	if dir == "" {
		return m, nil
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("soundbank directory: %w", err)
	}

	if bank, err := m.Load("default"); err == nil {
		m.def = bank
	}
	return m, nil
}

// Default returns the active default bank.
func (m *Manager) Default() *Bank {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.def
}

// Instruments returns the default bank's instrument names in manifest
// order. This is the allocator's pool.
func (m *Manager) Instruments() []string {
	bank := m.Default()
	names := make([]string, 0, len(bank.Instruments))
	for _, inst := range bank.Instruments {
		names = append(names, inst.Name)
	}
	return names
}

// HasSound reports whether the default bank allows soundName under the
// given instrument.
func (m *Manager) HasSound(instrument, soundName string) bool {
	for _, inst := range m.Default().Instruments {
		if inst.Name != instrument {
			continue
		}
		for _, s := range inst.Sounds {
			if s == soundName {
				return true
			}
		}
		return false
	}
	return false
}

// ColorFor returns the track color of an instrument, or empty if unknown.
func (m *Manager) ColorFor(instrument string) string {
	for _, inst := range m.Default().Instruments {
		if inst.Name == instrument {
			return inst.Color
		}
	}
	return ""
}

// Load reads, validates, and caches a manifest by name.
func (m *Manager) Load(name string) (*Bank, error) {
	m.mu.RLock()
	if bank, ok := m.banks[name]; ok {
		m.mu.RUnlock()
		return bank, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if bank, ok := m.banks[name]; ok {
		return bank, nil
	}

	filename := name
	if !strings.HasSuffix(filename, ".json") {
		filename += ".json"
	}

	data, err := os.ReadFile(filepath.Join(m.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to read soundbank: %w", err)
	}

	var bank Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}
	if err := ValidateBank(&bank); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}

	m.banks[name] = &bank
	return &bank, nil
}

// ValidateBank checks a manifest for structural problems: it must name at
// least one instrument, instrument names must be unique and non-empty, and
// every instrument needs at least one sound.
func ValidateBank(bank *Bank) error {
	if bank.Name == "" {
		return errors.New("bank name is required")
	}
	if len(bank.Instruments) == 0 {
		return errors.New("bank has no instruments")
	}

	seen := make(map[string]bool)
	for i, inst := range bank.Instruments {
		if inst.Name == "" {
			return fmt.Errorf("instrument %d has no name", i)
		}
		if seen[inst.Name] {
			return fmt.Errorf("duplicate instrument %q", inst.Name)
		}
		seen[inst.Name] = true

		if len(inst.Sounds) == 0 {
			return fmt.Errorf("instrument %q has no sounds", inst.Name)
		}
		if inst.Color != "" && !strings.HasPrefix(inst.Color, "#") {
			return fmt.Errorf("instrument %q color %q is not a hex value", inst.Name, inst.Color)
		}
	}
	return nil
}

// defaultBank is the compiled-in manifest used when no directory override
// exists.
func defaultBank() *Bank {
	return &Bank{
		Name: "default",
		Instruments: []Instrument{
			{
				Name:   "piano",
				Color:  "#4a90d9",
				Sounds: []string{"piano-c1", "piano-e1", "piano-g1", "piano-chord-maj", "piano-chord-min"},
			},
			{
				Name:   "guitar",
				Color:  "#d97d4a",
				Sounds: []string{"guitar-strum", "guitar-pick", "guitar-mute", "guitar-slide"},
			},
			{
				Name:   "bass",
				Color:  "#7a4ad9",
				Sounds: []string{"bass-pluck", "bass-slap", "bass-slide"},
			},
			{
				Name:   "drums",
				Color:  "#d94a6a",
				Sounds: []string{"kick", "snare", "hihat-closed", "hihat-open", "tom", "crash"},
			},
			{
				Name:   "synth",
				Color:  "#4ad98f",
				Sounds: []string{"synth-lead", "synth-pad", "synth-arp", "synth-pluck"},
			},
		},
	}
}
