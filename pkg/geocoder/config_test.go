package geocoder

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestConfigSet(t *testing.T) {
	tests := []struct {
		key   string
		value any
		want  any
	}{
		{KeyBestOnly, "off", false},
		{KeyBestOnly, "Enable", true},
		{KeyBestOnly, 1, true},
		{KeyBestOnly, nil, false},
		{KeyAzaSkip, nil, nil},
		{KeyAzaSkip, "auto", nil},
		{KeyAzaSkip, true, true},
		{KeyAzaSkip, "disable", false},
		{KeyAzaSkip, float64(1), true},
		{KeyRequireCoordinates, "no", false},
		{KeyAutoRedirect, "yes", true},
		{KeyDebug, true, true},
		{KeyTargetArea, "13,26", []string{"13", "26"}},
		{KeyTargetArea, []string{"01101"}, []string{"01101"}},
		{KeyTargetArea, []any{"13104"}, []string{"13104"}},
		{KeyTargetArea, nil, []string{}},
		{KeyTargetArea, 13, []string{"13"}},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		if err := cfg.Set(tt.key, tt.value); err != nil {
			t.Errorf("Set(%s, %v) error = %v", tt.key, tt.value, err)
			continue
		}
		got, err := cfg.Get(tt.key)
		if err != nil {
			t.Errorf("Get(%s) error = %v", tt.key, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Set(%s, %v): got %v, want %v", tt.key, tt.value, got, tt.want)
		}
	}
}

func TestConfigSetErrors(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"no_such_key", true},
		{KeyBestOnly, "sometimes"},
		{KeyBestOnly, []string{"x"}},
		{KeyAzaSkip, "maybe"},
		{KeyAzaSkip, struct{}{}},
		{KeyTargetArea, []any{13}},
		{KeyTargetArea, struct{}{}},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		if err := cfg.Set(tt.key, tt.value); !errors.Is(err, ErrConfig) {
			t.Errorf("Set(%s, %v) error = %v, want ErrConfig", tt.key, tt.value, err)
		}
	}
	if _, err := DefaultConfig().Get("no_such_key"); !errors.Is(err, ErrConfig) {
		t.Errorf("Get(no_such_key) error = %v, want ErrConfig", err)
	}
}

func TestConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.Values()
	want := map[string]any{
		KeyBestOnly:           true,
		KeyAzaSkip:            nil,
		KeyRequireCoordinates: true,
		KeyTargetArea:         []string{},
		KeyAutoRedirect:       true,
		KeyDebug:              false,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Values() = %v, want %v", got, want)
	}
}

func TestConfigGetCopiesTargetArea(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Set(KeyTargetArea, []string{"13"}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := cfg.Get(KeyTargetArea)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	got.([]string)[0] = "26"
	if cfg.TargetArea[0] != "13" {
		t.Errorf("TargetArea = %v, mutated through Get()", cfg.TargetArea)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TargetArea = []string{"13", "13104", "011011"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	cfg.TargetArea = []string{"東京都"}
	if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
		t.Errorf("Validate() error = %v, want ErrConfig for a bare name", err)
	}
}

func TestConfigJSONRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AzaSkip = AzaSkipOn
	cfg.TargetArea = []string{"13"}

	b, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var back Config
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !reflect.DeepEqual(back, cfg) {
		t.Errorf("round trip = %+v, want %+v", back, cfg)
	}

	// aza_skip is nullable on the wire: null selects automatic mode
	// and booleans force it.
	var fromNull Config
	if err := json.Unmarshal([]byte(`{"aza_skip": null}`), &fromNull); err != nil {
		t.Fatalf("Unmarshal(null) error = %v", err)
	}
	if fromNull.AzaSkip != AzaSkipAuto {
		t.Errorf("aza_skip from null = %v, want auto", fromNull.AzaSkip)
	}
	var fromBool Config
	if err := json.Unmarshal([]byte(`{"aza_skip": false}`), &fromBool); err != nil {
		t.Fatalf("Unmarshal(false) error = %v", err)
	}
	if fromBool.AzaSkip != AzaSkipOff {
		t.Errorf("aza_skip from false = %v, want off", fromBool.AzaSkip)
	}
}

func TestAzaSkipString(t *testing.T) {
	tests := []struct {
		skip AzaSkip
		want string
	}{
		{AzaSkipAuto, "auto"},
		{AzaSkipOff, "off"},
		{AzaSkipOn, "on"},
	}
	for _, tt := range tests {
		if got := tt.skip.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.skip, got, tt.want)
		}
	}
}
