// Package domain models Fluxnet FULLSET observation tables and the forcing
// and benchmark tables derived from them.
//
// # Data Source
//
// Each monitored site is distributed as one zip archive, e.g.
//
//	FLX_AB-1_FLUXNET2015_FULLSET_2001-2014_1-3.zip
//
// The second underscore-delimited token of the name is the site identifier.
// The archive holds one CSV per temporal resolution; this package uses the
// daily ("_FULLSET_DD_") and monthly ("_FULLSET_MM_") members. Static site
// metadata (coordinates, IGBP land cover) comes from a separate site list.
//
// # Timestamp Conventions
//
//	Daily:   TIMESTAMP = YYYYMMDD, e.g. 20010101
//	Monthly: TIMESTAMP = YYYYMM,   e.g. 200101
//
// Daily rows gain Year, Month, Day, MonthDay ("MMDD") and DOY. DOY is
// zero-based because the vegetation model indexes days from 0, so 1 January
// is DOY 0. Monthly rows gain Year and Month only. Other shapes are reported
// as [MalformedTimestampError] and the row keeps empty calendar fields.
//
// # Column Roles
//
// Forcing columns (temperature, radiation, precipitation) drive the model and
// go to per-site forcing files. Benchmark columns (NEE, GPP, LE) are observed
// fluxes used to evaluate model output and go to the aggregate tables.
//
// # Missing Values
//
// Empty and NA-style cells parse as NaN and are written back as empty
// cells. Fluxnet's own -9999 gap marker is an ordinary number here.
package domain
