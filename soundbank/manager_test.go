package soundbank

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBank(t *testing.T) {
	m, err := NewManager("")
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	bank := m.Default()
	if bank.Name != "default" {
		t.Errorf("expected default bank, got %q", bank.Name)
	}
	if len(bank.Instruments) == 0 {
		t.Fatal("default bank has no instruments")
	}

	pool := m.Instruments()
	if len(pool) != len(bank.Instruments) {
		t.Errorf("pool size %d != instrument count %d", len(pool), len(bank.Instruments))
	}
	if pool[0] != bank.Instruments[0].Name {
		t.Error("pool should preserve manifest order")
	}
}

func TestHasSound(t *testing.T) {
	m, _ := NewManager("")

	if !m.HasSound("drums", "kick") {
		t.Error("expected kick under drums")
	}
	if m.HasSound("piano", "kick") {
		t.Error("kick should not be a piano sound")
	}
	if m.HasSound("theremin", "kick") {
		t.Error("unknown instrument should have no sounds")
	}
}

func TestColorFor(t *testing.T) {
	m, _ := NewManager("")

	if c := m.ColorFor("piano"); c == "" {
		t.Error("expected a color for piano")
	}
	if c := m.ColorFor("theremin"); c != "" {
		t.Errorf("unknown instrument should have empty color, got %q", c)
	}
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	manifest := `{
		"name": "duo",
		"instruments": [
			{"name": "piano", "color": "#112233", "sounds": ["c1"]},
			{"name": "drums", "color": "#445566", "sounds": ["kick", "snare"]}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "duo.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	bank, err := m.Load("duo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(bank.Instruments) != 2 {
		t.Errorf("expected 2 instruments, got %d", len(bank.Instruments))
	}

	// Cache hit returns the same bank.
	again, err := m.Load("duo")
	if err != nil {
		t.Fatalf("cached Load failed: %v", err)
	}
	if again != bank {
		t.Error("expected cached bank instance")
	}

	if _, err := m.Load("missing"); err != ErrBankNotFound {
		t.Errorf("expected ErrBankNotFound, got %v", err)
	}
}

func TestDefaultOverrideFromDirectory(t *testing.T) {
	dir := t.TempDir()
	manifest := `{
		"name": "house",
		"instruments": [{"name": "synth", "color": "#abcdef", "sounds": ["pad"]}]
	}`
	if err := os.WriteFile(filepath.Join(dir, "default.json"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if m.Default().Name != "house" {
		t.Errorf("expected directory default to win, got %q", m.Default().Name)
	}
}

func TestValidateBank(t *testing.T) {
	tests := []struct {
		name    string
		bank    Bank
		wantErr bool
	}{
		{
			name: "valid",
			bank: Bank{Name: "ok", Instruments: []Instrument{{Name: "piano", Color: "#123456", Sounds: []string{"c1"}}}},
		},
		{
			name:    "no name",
			bank:    Bank{Instruments: []Instrument{{Name: "piano", Sounds: []string{"c1"}}}},
			wantErr: true,
		},
		{
			name:    "no instruments",
			bank:    Bank{Name: "empty"},
			wantErr: true,
		},
		{
			name: "duplicate instrument",
			bank: Bank{Name: "dup", Instruments: []Instrument{
				{Name: "piano", Sounds: []string{"c1"}},
				{Name: "piano", Sounds: []string{"c2"}},
			}},
			wantErr: true,
		},
		{
			name:    "instrument without sounds",
			bank:    Bank{Name: "mute", Instruments: []Instrument{{Name: "piano"}}},
			wantErr: true,
		},
		{
			name:    "bad color",
			bank:    Bank{Name: "col", Instruments: []Instrument{{Name: "piano", Color: "blue", Sounds: []string{"c1"}}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBank(&tt.bank)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBank() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
