package catalog

import (
	"context"
	"fmt"
	"strings"

	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	moduledomain "github.com/smallbiznis/entitlement/internal/module/domain"
	tierdomain "github.com/smallbiznis/entitlement/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	Tiers tierdomain.Service
}

// Importer writes a catalog document into the module registry and tier
// catalog.
type Importer struct {
	log   *zap.Logger
	tiers tierdomain.Service
}

// Summary counts what an import wrote.
type Summary struct {
	Version  string
	Modules  int
	Tiers    int
	Features int
}

func NewImporter(p Params) *Importer {
	return &Importer{
		log:   p.Log.Named("catalog.importer"),
		tiers: p.Tiers,
	}
}

// Import validates doc and writes it module by module. Each module, its
// tiers and their feature sets commit together or not at all, so a failed
// import never leaves a module without exactly one default tier. Modules
// written before a failure stay written; re-running converges.
func (i *Importer) Import(ctx context.Context, doc *Document) (Summary, error) {
	summary := Summary{Version: doc.Version}
	if err := doc.Validate(); err != nil {
		return summary, err
	}

	for _, m := range doc.Modules {
		result, err := i.tiers.SyncModule(ctx, syncRequest(m))
		if err != nil {
			return summary, fmt.Errorf("module %q: %w", m.ModuleID(), err)
		}
		summary.Modules++
		summary.Tiers += result.Tiers
		summary.Features += result.Features
	}

	if err := i.tiers.ValidateCatalog(ctx); err != nil {
		return summary, err
	}

	i.log.Info("catalog imported",
		zap.String("version", summary.Version),
		zap.Int("modules", summary.Modules),
		zap.Int("tiers", summary.Tiers),
		zap.Int("features", summary.Features),
	)
	return summary, nil
}

func syncRequest(m ModuleSpec) tierdomain.SyncModuleRequest {
	accountTypes := make([]accountdomain.AccountType, 0, len(m.AccountTypes))
	for _, t := range m.AccountTypes {
		accountTypes = append(accountTypes, accountdomain.AccountType(t))
	}

	req := tierdomain.SyncModuleRequest{
		Module: moduledomain.DefineRequest{
			ID:                   m.ModuleID(),
			Name:                 m.Name,
			Category:             moduledomain.Category(strings.ToLower(strings.TrimSpace(m.Category))),
			AccountTypes:         accountTypes,
			RequiresSubscription: m.RequiresSubscription,
		},
		Tiers: make([]tierdomain.CatalogTier, 0, len(m.Tiers)),
	}
	for _, t := range m.Tiers {
		req.Tiers = append(req.Tiers, tierdomain.CatalogTier{
			Tier: tierdomain.DefineRequest{
				Key:               t.Key,
				Name:              t.Name,
				Description:       t.Description,
				MonthlyPriceCents: t.MonthlyPriceCents,
				AnnualPriceCents:  t.AnnualPriceCents,
				Currency:          t.Currency,
				MaxAccounts:       t.MaxAccounts,
				MaxUsers:          t.MaxUsers,
				IsDefault:         t.Default,
				IsPopular:         t.Popular,
				SortOrder:         t.SortOrder,
				Metadata:          t.Metadata,
			},
			Features: t.Features,
		})
	}
	return req
}

// ImportFile loads the document at path and imports it.
func (i *Importer) ImportFile(ctx context.Context, path string) (Summary, error) {
	doc, err := Load(path)
	if err != nil {
		return Summary{}, err
	}
	return i.Import(ctx, doc)
}
