package geocoder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AzaSkip controls how the search treats aza names that the query
// spells but the dictionary does not hold as nodes.
type AzaSkip int8

const (
	// AzaSkipAuto skips an aza name only when the machiaza master
	// confirms that block numbering continues across it.
	AzaSkipAuto AzaSkip = iota
	// AzaSkipOff never skips.
	AzaSkipOff
	// AzaSkipOn skips any leading text up to the first number or
	// chiban head unless the master knows it as a real aza name.
	AzaSkipOn
)

func (s AzaSkip) String() string {
	switch s {
	case AzaSkipOff:
		return "off"
	case AzaSkipOn:
		return "on"
	default:
		return "auto"
	}
}

// MarshalJSON emits true, false or null so that the value round-trips
// with servers that treat the option as an optional boolean.
func (s AzaSkip) MarshalJSON() ([]byte, error) {
	switch s {
	case AzaSkipOff:
		return []byte("false"), nil
	case AzaSkipOn:
		return []byte("true"), nil
	default:
		return []byte("null"), nil
	}
}

func (s *AzaSkip) UnmarshalJSON(b []byte) error {
	var v any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&v); err != nil {
		return err
	}
	skip, err := coerceAzaSkip(v)
	if err != nil {
		return err
	}
	*s = skip
	return nil
}

// Config holds the tunable search parameters. The zero value is not
// useful; start from DefaultConfig.
type Config struct {
	// BestOnly keeps only the candidates with the longest match.
	// When false every prefix match is returned.
	BestOnly bool `json:"best_only"`
	// AzaSkip selects the aza name skipping mode.
	AzaSkip AzaSkip `json:"aza_skip"`
	// RequireCoordinates drops candidates without coordinates.
	RequireCoordinates bool `json:"require_coordinates"`
	// TargetArea restricts the search to the listed areas, each given
	// as a JIS prefecture or city code or as an element name.
	TargetArea []string `json:"target_area"`
	// AutoRedirect follows the ref annotation of retired addresses to
	// their current notation.
	AutoRedirect bool `json:"auto_redirect"`
	// Debug enables search tracing.
	Debug bool `json:"debug"`
}

// DefaultConfig returns the parameters every tree starts with.
func DefaultConfig() Config {
	return Config{
		BestOnly:           true,
		AzaSkip:            AzaSkipAuto,
		RequireCoordinates: true,
		AutoRedirect:       true,
	}
}

// Configuration keys accepted by Set and Get.
const (
	KeyBestOnly           = "best_only"
	KeyAzaSkip            = "aza_skip"
	KeyRequireCoordinates = "require_coordinates"
	KeyTargetArea         = "target_area"
	KeyAutoRedirect       = "auto_redirect"
	KeyDebug              = "debug"
)

// Set coerces value to the type of the named parameter and stores it.
// Booleans accept bools, numbers and the strings on, enable, true,
// yes, off, disable, false and no. The aza_skip parameter additionally
// accepts auto, none and the empty string. The target_area parameter
// accepts a single string with comma-separated elements, a string
// slice, or nil to clear.
func (c *Config) Set(key string, value any) error {
	switch key {
	case KeyBestOnly:
		v, err := coerceBool(key, value)
		if err != nil {
			return err
		}
		c.BestOnly = v
	case KeyAzaSkip:
		v, err := coerceAzaSkip(value)
		if err != nil {
			return err
		}
		c.AzaSkip = v
	case KeyRequireCoordinates:
		v, err := coerceBool(key, value)
		if err != nil {
			return err
		}
		c.RequireCoordinates = v
	case KeyTargetArea:
		v, err := coerceStringList(key, value)
		if err != nil {
			return err
		}
		c.TargetArea = v
	case KeyAutoRedirect:
		v, err := coerceBool(key, value)
		if err != nil {
			return err
		}
		c.AutoRedirect = v
	case KeyDebug:
		v, err := coerceBool(key, value)
		if err != nil {
			return err
		}
		c.Debug = v
	default:
		return fmt.Errorf("%w: the key %q does not exist", ErrConfig, key)
	}
	return nil
}

// Get returns the named parameter in its wire form: booleans as bool,
// aza_skip as true, false or nil, target_area as a string slice.
func (c Config) Get(key string) (any, error) {
	switch key {
	case KeyBestOnly:
		return c.BestOnly, nil
	case KeyAzaSkip:
		return c.AzaSkip.wire(), nil
	case KeyRequireCoordinates:
		return c.RequireCoordinates, nil
	case KeyTargetArea:
		return append([]string{}, c.TargetArea...), nil
	case KeyAutoRedirect:
		return c.AutoRedirect, nil
	case KeyDebug:
		return c.Debug, nil
	default:
		return nil, fmt.Errorf("%w: the key %q does not exist", ErrConfig, key)
	}
}

// Values returns all parameters keyed by their wire names.
func (c Config) Values() map[string]any {
	return map[string]any{
		KeyBestOnly:           c.BestOnly,
		KeyAzaSkip:            c.AzaSkip.wire(),
		KeyRequireCoordinates: c.RequireCoordinates,
		KeyTargetArea:         append([]string{}, c.TargetArea...),
		KeyAutoRedirect:       c.AutoRedirect,
		KeyDebug:              c.Debug,
	}
}

// Validate checks the parameters against the rules that hold without
// a dictionary: every target area must start with a two-digit code.
// A LocalTree additionally accepts element names present in its
// dictionary and validates them itself.
func (c Config) Validate() error {
	for _, area := range c.TargetArea {
		if !hasDigitPrefix(area, 2) {
			return fmt.Errorf(
				"%w: %q is not a valid value for %s", ErrConfig, area, KeyTargetArea)
		}
	}
	return nil
}

func (s AzaSkip) wire() any {
	switch s {
	case AzaSkipOff:
		return false
	case AzaSkipOn:
		return true
	default:
		return nil
	}
}

func coerceBool(key string, value any) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(v) {
		case "on", "enable", "true", "yes":
			return true, nil
		case "off", "disable", "false", "no", "auto", "none", "":
			return false, nil
		}
		return false, fmt.Errorf(
			"%w: the value %q for %q cannot be recognized as a boolean",
			ErrConfig, v, key)
	}
	return false, fmt.Errorf(
		"%w: the value for %q must be a boolean, not %T", ErrConfig, key, value)
}

func coerceAzaSkip(value any) (AzaSkip, error) {
	fromBool := func(b bool) AzaSkip {
		if b {
			return AzaSkipOn
		}
		return AzaSkipOff
	}
	switch v := value.(type) {
	case nil:
		return AzaSkipAuto, nil
	case AzaSkip:
		return v, nil
	case bool:
		return fromBool(v), nil
	case int:
		return fromBool(v != 0), nil
	case int64:
		return fromBool(v != 0), nil
	case float64:
		return fromBool(v != 0), nil
	case string:
		switch strings.ToLower(v) {
		case "on", "enable", "true", "yes":
			return AzaSkipOn, nil
		case "off", "disable", "false", "no":
			return AzaSkipOff, nil
		case "auto", "none", "":
			return AzaSkipAuto, nil
		}
		return AzaSkipAuto, fmt.Errorf(
			"%w: the value %q for %q cannot be recognized as a skip mode",
			ErrConfig, v, KeyAzaSkip)
	}
	return AzaSkipAuto, fmt.Errorf(
		"%w: the value for %q must be a boolean or nil, not %T",
		ErrConfig, KeyAzaSkip, value)
}

func coerceStringList(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []string:
		return append([]string{}, v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf(
					"%w: elements of %q must be strings, not %T", ErrConfig, key, e)
			}
			out = append(out, s)
		}
		return out, nil
	case bool:
		return []string{strconv.FormatBool(v)}, nil
	case int:
		return []string{strconv.Itoa(v)}, nil
	case int64:
		return []string{strconv.FormatInt(v, 10)}, nil
	case float64:
		return []string{strconv.FormatFloat(v, 'f', -1, 64)}, nil
	}
	return nil, fmt.Errorf(
		"%w: the value for %q must be a list, not %T", ErrConfig, key, value)
}

// hasDigitPrefix reports whether s starts with at least n ASCII
// digits.
func hasDigitPrefix(s string, n int) bool {
	if len(s) < n {
		return false
	}
	for i := 0; i < n; i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
