package input

import (
	"reflect"
	"testing"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		combo   string
		want    []string
		wantErr bool
	}{
		{StopCombo, []string{"q", "ctrl", "shift"}, false},
		{"Ctrl + F9", []string{"f9", "ctrl"}, false},
		{"control+alt+r", []string{"r", "ctrl", "alt"}, false},
		{"win+s", []string{"s", "cmd"}, false},
		{"q", []string{"q"}, false},
		{"", nil, true},
		{"ctrl+shift", nil, true},
		{"ctrl++q", nil, true},
		{"a+b", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			got, err := ParseCombo(tt.combo)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCombo(%q) error = %v", tt.combo, err)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseCombo(%q) = %v, want %v", tt.combo, got, tt.want)
			}
		})
	}
}

func TestRegisterRejectsInvalidCombo(t *testing.T) {
	h := NewHotkeyManager()
	if err := h.Register("ctrl+", func() {}); err == nil {
		t.Error("Register() accepted an invalid combo")
	}
	if err := h.Register(StopCombo, func() {}); err != nil {
		t.Errorf("Register() error = %v", err)
	}
	// Stop without Start is a no-op.
	h.Stop()
}
