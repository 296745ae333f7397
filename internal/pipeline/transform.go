package pipeline

import "github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"

// siteOutput is everything derived from one archive before it is written.
type siteOutput struct {
	daily    domain.SiteTable
	monthly  domain.SiteTable
	forcing  [][]string
	warnings []timestampWarning
}

type timestampWarning struct {
	cadence domain.Cadence
	err     error
}

// reshapeSite normalizes both tables of an archive and renders the forcing
// rows. Column checks happen here so that a failing site never leaves a
// partial contribution in the aggregates.
func reshapeSite(site domain.Site, tables domain.ArchiveTables, schema domain.Schema) (siteOutput, error) {
	daily, dailyWarn := domain.NewSiteTable(site, domain.Daily, tables.Daily)
	monthly, monthlyWarn := domain.NewSiteTable(site, domain.Monthly, tables.Monthly)

	if err := daily.Require(schema.Benchmark); err != nil {
		return siteOutput{}, err
	}
	if err := monthly.Require(schema.Benchmark); err != nil {
		return siteOutput{}, err
	}

	forcing, err := domain.ForcingRows(daily, schema.Forcing)
	if err != nil {
		return siteOutput{}, err
	}

	out := siteOutput{daily: daily, monthly: monthly, forcing: forcing}
	for _, err := range dailyWarn {
		out.warnings = append(out.warnings, timestampWarning{cadence: domain.Daily, err: err})
	}
	for _, err := range monthlyWarn {
		out.warnings = append(out.warnings, timestampWarning{cadence: domain.Monthly, err: err})
	}
	return out, nil
}
