package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gosimple/slug"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	featuredomain "github.com/smallbiznis/entitlement/internal/feature/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	"gopkg.in/yaml.v3"
)

// Document is the versioned catalog file: modules, their tiers and each
// tier's feature set.
type Document struct {
	Version string       `yaml:"version"`
	Modules []ModuleSpec `yaml:"modules"`
}

// ModuleSpec is one module entry of a catalog document.
type ModuleSpec struct {
	ID                   string     `yaml:"id"`
	Name                 string     `yaml:"name"`
	Category             string     `yaml:"category"`
	AccountTypes         []string   `yaml:"account_types"`
	RequiresSubscription bool       `yaml:"requires_subscription"`
	Tiers                []TierSpec `yaml:"tiers"`
}

type TierSpec struct {
	Key               string                `yaml:"key"`
	Name              string                `yaml:"name"`
	Description       string                `yaml:"description"`
	MonthlyPriceCents int64                 `yaml:"monthly_price_cents"`
	AnnualPriceCents  int64                 `yaml:"annual_price_cents"`
	Currency          string                `yaml:"currency"`
	MaxAccounts       *int64                `yaml:"max_accounts"`
	MaxUsers          *int64                `yaml:"max_users"`
	Default           bool                  `yaml:"default"`
	Popular           bool                  `yaml:"popular"`
	SortOrder         int                   `yaml:"sort_order"`
	Metadata          map[string]any        `yaml:"metadata"`
	Features          []featuredomain.Input `yaml:"features"`
}

var (
	ErrEmptyDocument = errors.New("catalog_empty")
	ErrInvalid       = errors.New("catalog_invalid")
)

// Load reads and strictly decodes the catalog at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a catalog document. Unknown fields are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, err
	}
	return &doc, nil
}

// ModuleID returns the declared id, or the slug of the name when absent.
func (m ModuleSpec) ModuleID() string {
	if id := strings.TrimSpace(m.ID); id != "" {
		return id
	}
	return slug.Make(strings.TrimSpace(m.Name))
}

// Validate checks the document on its own, without a store. Every problem
// found is reported.
func (d *Document) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if strings.TrimSpace(d.Version) == "" {
		fail("version is required")
	}
	if len(d.Modules) == 0 {
		fail("no modules")
	}

	modules := make(map[string]struct{}, len(d.Modules))
	for i, m := range d.Modules {
		id := m.ModuleID()
		if id == "" || !slug.IsSlug(id) {
			fail("modules[%d]: invalid id %q", i, id)
			continue
		}
		if _, dup := modules[id]; dup {
			fail("module %q: duplicate id", id)
		}
		modules[id] = struct{}{}

		if strings.TrimSpace(m.Name) == "" {
			fail("module %q: name is required", id)
		}
		if !moduledomain.Category(strings.ToLower(strings.TrimSpace(m.Category))).Valid() {
			fail("module %q: unknown category %q", id, m.Category)
		}
		if len(m.AccountTypes) == 0 {
			fail("module %q: no account types", id)
		}
		for _, t := range m.AccountTypes {
			if accountdomain.AccountType(t).Normalize() == "" {
				fail("module %q: empty account type", id)
			}
		}

		errs = append(errs, validateTiers(id, m.Tiers)...)
	}
	return errors.Join(errs...)
}

func validateTiers(moduleID string, tiers []TierSpec) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: module %q: "+format, append([]any{ErrInvalid, moduleID}, args...)...))
	}

	defaults := 0
	keys := make(map[string]struct{}, len(tiers))
	for i, t := range tiers {
		key := strings.TrimSpace(t.Key)
		if key == "" {
			fail("tiers[%d]: key is required", i)
			continue
		}
		if _, dup := keys[key]; dup {
			fail("tier %q: duplicate key", key)
		}
		keys[key] = struct{}{}

		if strings.TrimSpace(t.Name) == "" {
			fail("tier %q: name is required", key)
		}
		if t.MonthlyPriceCents < 0 || t.AnnualPriceCents < 0 {
			fail("tier %q: negative price", key)
		}
		if (t.MaxAccounts != nil && *t.MaxAccounts < 0) || (t.MaxUsers != nil && *t.MaxUsers < 0) {
			fail("tier %q: negative cap", key)
		}
		if t.Default {
			defaults++
		}

		features := make(map[string]struct{}, len(t.Features))
		for _, in := range t.Features {
			def, err := in.Build()
			if err != nil {
				fail("tier %q: feature %q: %v", key, in.Key, err)
				continue
			}
			if _, dup := features[def.Key]; dup {
				fail("tier %q: feature %q: duplicate key", key, def.Key)
			}
			features[def.Key] = struct{}{}
		}
	}

	if defaults != 1 {
		fail("%d default tiers, want exactly one", defaults)
	}
	return errs
}
