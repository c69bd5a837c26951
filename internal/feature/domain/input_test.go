package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func ptr[T any](v T) *T { return &v }

func TestInputBuild(t *testing.T) {
	cases := []struct {
		name    string
		in      Input
		wantErr error
		check   func(t *testing.T, def FeatureDefinition)
	}{
		{
			name: "boolean",
			in:   Input{Key: "reports", Kind: KindBoolean, Bool: ptr(true)},
			check: func(t *testing.T, def FeatureDefinition) {
				assert.True(t, def.BoolValue)
				assert.Nil(t, def.LimitValue)
				assert.Empty(t, def.TextValue)
				assert.Equal(t, ResetNever, def.ResetCadence)
				assert.Equal(t, "reports", def.Name)
			},
		},
		{
			name: "boolean defaults to false",
			in:   Input{Key: "reports", Name: "Reports", Kind: KindBoolean},
			check: func(t *testing.T, def FeatureDefinition) {
				assert.False(t, def.BoolValue)
				assert.False(t, def.Grants())
			},
		},
		{
			name: "unlimited limit",
			in:   Input{Key: "projects", Kind: KindLimit},
			check: func(t *testing.T, def FeatureDefinition) {
				assert.Nil(t, def.LimitValue)
				assert.True(t, def.Unlimited())
				assert.True(t, def.Grants())
			},
		},
		{
			name: "monthly limit",
			in:   Input{Key: "invoices", Kind: KindLimit, Limit: ptr(int64(20)), Reset: ResetCalendarMonth},
			check: func(t *testing.T, def FeatureDefinition) {
				require.NotNil(t, def.LimitValue)
				assert.Equal(t, int64(20), *def.LimitValue)
				assert.Equal(t, ResetCalendarMonth, def.ResetCadence)
			},
		},
		{
			name: "zero limit is disabled but present",
			in:   Input{Key: "employees", Kind: KindLimit, Limit: ptr(int64(0))},
			check: func(t *testing.T, def FeatureDefinition) {
				require.NotNil(t, def.LimitValue)
				assert.False(t, def.Grants())
			},
		},
		{
			name: "text",
			in:   Input{Key: "support", Kind: KindText, Text: ptr("email")},
			check: func(t *testing.T, def FeatureDefinition) {
				assert.Equal(t, "email", def.TextValue)
				assert.True(t, def.Grants())
			},
		},
		{name: "negative limit", in: Input{Key: "employees", Kind: KindLimit, Limit: ptr(int64(-1))}, wantErr: ErrInvalidLimit},
		{name: "unknown kind", in: Input{Key: "x", Kind: "number"}, wantErr: ErrInvalidKind},
		{name: "empty key", in: Input{Key: "  ", Kind: KindBoolean}, wantErr: ErrInvalidKey},
		{name: "key with spaces", in: Input{Key: "max users", Kind: KindBoolean}, wantErr: ErrInvalidKey},
		{name: "boolean with limit slot", in: Input{Key: "x", Kind: KindBoolean, Limit: ptr(int64(1))}, wantErr: ErrInvalidValue},
		{name: "limit with text slot", in: Input{Key: "x", Kind: KindLimit, Text: ptr("a")}, wantErr: ErrInvalidValue},
		{name: "text with bool slot", in: Input{Key: "x", Kind: KindText, Bool: ptr(true)}, wantErr: ErrInvalidValue},
		{name: "unknown cadence", in: Input{Key: "x", Kind: KindLimit, Reset: "weekly"}, wantErr: ErrInvalidCadence},
		{name: "cadence on boolean", in: Input{Key: "x", Kind: KindBoolean, Reset: ResetCalendarMonth}, wantErr: ErrInvalidCadence},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def, err := tc.in.Build()
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.in.Kind, def.Kind)
			tc.check(t, def)
		})
	}
}

func TestInput_JSONAndYAMLShareSlotNames(t *testing.T) {
	docs := []struct {
		json string
		yaml string
	}{
		{json: `{"key":"reports","kind":"boolean","bool":true}`, yaml: "{key: reports, kind: boolean, bool: true}"},
		{json: `{"key":"employees","kind":"limit","limit":5,"reset":"calendar_month"}`, yaml: "{key: employees, kind: limit, limit: 5, reset: calendar_month}"},
		{json: `{"key":"support","kind":"text","text":"email"}`, yaml: "{key: support, kind: text, text: email}"},
	}

	for _, doc := range docs {
		var fromJSON, fromYAML Input
		require.NoError(t, json.Unmarshal([]byte(doc.json), &fromJSON))
		require.NoError(t, yaml.Unmarshal([]byte(doc.yaml), &fromYAML))
		assert.Equal(t, fromJSON, fromYAML, doc.json)
	}
}
