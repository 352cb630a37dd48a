package configutil

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Decode validates input against schema and decodes it into out.
func Decode(path string, input map[string]any, schema Schema, out any) error {
	if err := ValidateSettings(path, input, schema); err != nil {
		return err
	}
	if err := DecodeSettings(input, out); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// DecodeSettings decodes a settings map into a tagged struct. Durations may be
// given as strings ("5s") and lists as comma separated strings.
func DecodeSettings(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func RequireString(value, path string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", path)
	}
	return nil
}

// BoolValue returns fallback when value was not set.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

// IntValue returns fallback when value was not set.
func IntValue(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}
