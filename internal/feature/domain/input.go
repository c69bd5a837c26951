package domain

import (
	"strings"
	"unicode"
)

// Input is the caller-facing shape of a feature value. Exactly the pointer
// matching Kind may be set.
type Input struct {
	Key   string       `json:"key" yaml:"key"`
	Name  string       `json:"name" yaml:"name"`
	Kind  Kind         `json:"kind" yaml:"kind"`
	Bool  *bool        `json:"bool,omitempty" yaml:"bool,omitempty"`
	Limit *int64       `json:"limit,omitempty" yaml:"limit,omitempty"`
	Text  *string      `json:"text,omitempty" yaml:"text,omitempty"`
	Reset ResetCadence `json:"reset,omitempty" yaml:"reset,omitempty"`
}

// Build validates the input and returns the value part of a definition.
// Identity columns (ids, tier, module, revision) are left to the caller.
func (in Input) Build() (FeatureDefinition, error) {
	key := strings.TrimSpace(in.Key)
	if !validKey(key) {
		return FeatureDefinition{}, ErrInvalidKey
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = key
	}

	def := FeatureDefinition{
		Key:          key,
		Name:         name,
		Kind:         Kind(strings.ToLower(strings.TrimSpace(string(in.Kind)))),
		ResetCadence: ResetNever,
	}

	switch def.Kind {
	case KindBoolean:
		if in.Limit != nil || in.Text != nil {
			return FeatureDefinition{}, ErrInvalidValue
		}
		def.BoolValue = in.Bool != nil && *in.Bool
	case KindLimit:
		if in.Bool != nil || in.Text != nil {
			return FeatureDefinition{}, ErrInvalidValue
		}
		if in.Limit != nil {
			if *in.Limit < 0 {
				return FeatureDefinition{}, ErrInvalidLimit
			}
			limit := *in.Limit
			def.LimitValue = &limit
		}
		if in.Reset != "" {
			def.ResetCadence = in.Reset
		}
		if !def.ResetCadence.Valid() {
			return FeatureDefinition{}, ErrInvalidCadence
		}
		return def, nil
	case KindText:
		if in.Bool != nil || in.Limit != nil {
			return FeatureDefinition{}, ErrInvalidValue
		}
		if in.Text != nil {
			def.TextValue = *in.Text
		}
	default:
		return FeatureDefinition{}, ErrInvalidKind
	}

	if in.Reset != "" && in.Reset != ResetNever {
		return FeatureDefinition{}, ErrInvalidCadence
	}
	return def, nil
}

func validKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
