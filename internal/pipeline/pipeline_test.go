package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/geo"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/observability"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/pipeline"
)

// --- mocks ---

type mockSites map[string]domain.Site

func (m mockSites) Lookup(id string) (domain.Site, bool) {
	s, ok := m[id]
	return s, ok
}

type mockReader struct {
	tables map[string]domain.ArchiveTables // keyed by base name
	errs   map[string]error
	clock  *clockwork.FakeClock
	reads  []string
}

func (m *mockReader) ReadArchive(path string) (domain.ArchiveTables, error) {
	base := filepath.Base(path)
	m.reads = append(m.reads, base)
	if m.clock != nil {
		m.clock.Advance(2 * time.Second)
	}
	if err, ok := m.errs[base]; ok {
		return domain.ArchiveTables{}, err
	}
	return m.tables[base], nil
}

type table struct {
	header []string
	rows   [][]string
}

type mockSink struct {
	forcing    map[string][][]string
	tables     map[string]table
	forcingErr error
}

func newMockSink() *mockSink {
	return &mockSink{forcing: map[string][][]string{}, tables: map[string]table{}}
}

func (m *mockSink) WriteForcing(siteID string, rows [][]string) (string, error) {
	if m.forcingErr != nil {
		return "", m.forcingErr
	}
	m.forcing[siteID] = rows
	return siteID + ".csv", nil
}

func (m *mockSink) WriteTable(name string, header []string, rows [][]string) (string, error) {
	m.tables[name] = table{header: header, rows: rows}
	return name, nil
}

// --- helpers ---

var testSchema = domain.Schema{
	Forcing:   []string{"TA_ERA", "SW_IN_ERA", "P_ERA"},
	Benchmark: []string{"NEE_VUT_REF", "GPP_NT_VUT_REF", "LE_F_MDS"},
}

var testRename = map[string]string{
	"TA_ERA": "Temp", "SW_IN_ERA": "Rad", "P_ERA": "Prec",
	"NEE_VUT_REF": "NEE", "GPP_NT_VUT_REF": "GPP", "LE_F_MDS": "LE",
	"DOY": "Day",
}

func archiveName(site string) string {
	return "FLX_" + site + "_FLUXNET2015_FULLSET_2001-2014_1-3.zip"
}

// inputDir creates empty placeholder archives; mockReader supplies content.
func inputDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o600))
	}
	return dir
}

func rawTable(timestamps ...string) domain.RawTable {
	t := domain.RawTable{Columns: testSchema.Measurements()}
	for i, ts := range timestamps {
		base := float64(i)
		t.Timestamps = append(t.Timestamps, ts)
		t.Values = append(t.Values, []float64{base + 5, base + 100, 0, 1, 2, 3})
	}
	return t
}

func options(dir string) pipeline.Options {
	return pipeline.Options{
		InputDir:      dir,
		Schema:        testSchema,
		Rename:        testRename,
		DailyOutput:   "daily.csv",
		MonthlyOutput: "monthly.csv",
	}
}

func site(id string, lon, lat float64) domain.Site {
	return domain.Site{ID: id, Position: geo.New(lon, lat, id), IGBP: "ENF"}
}

// --- tests ---

func TestReshaper_Run_HappyPath(t *testing.T) {
	dir := inputDir(t, archiveName("CD-2"), archiveName("AB-1"), "README.txt")
	reader := &mockReader{tables: map[string]domain.ArchiveTables{
		archiveName("AB-1"): {Daily: rawTable("20010101", "20010102"), Monthly: rawTable("200101")},
		archiveName("CD-2"): {Daily: rawTable("20020101"), Monthly: rawTable("200201", "200202")},
	}}
	sink := newMockSink()
	metrics := observability.NewMetricsForTesting()
	sites := mockSites{"AB-1": site("AB-1", 10.5, 59.9), "CD-2": site("CD-2", -3, 40)}

	r := pipeline.New(sites, reader, sink, options(dir), slog.Default(), metrics, clockwork.NewFakeClock())
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	// sorted processing order, README skipped
	assert.Equal(t, []string{archiveName("AB-1"), archiveName("CD-2")}, reader.reads)

	assert.Equal(t, 2, summary.Sites)
	assert.Equal(t, 3, summary.DailyRows)
	assert.Equal(t, 3, summary.MonthlyRows)
	assert.NotEmpty(t, summary.RunID)

	assert.Equal(t, [][]string{
		{"2001", "0101", "5.000", "100.000", "0.000"},
		{"2001", "0102", "6.000", "101.000", "0.000"},
	}, sink.forcing["AB-1"])

	daily := sink.tables["daily.csv"]
	assert.Equal(t, []string{"Lon", "Lat", "Year", "Day", "IGBP", "NEE", "GPP", "LE"}, daily.header)
	require.Len(t, daily.rows, 3)
	assert.Equal(t, []string{"10.5", "59.9", "2001", "0", "ENF", "1.0", "2.0", "3.0"}, daily.rows[0])
	assert.Equal(t, []string{"-3.0", "40.0", "2002", "0", "ENF", "1.0", "2.0", "3.0"}, daily.rows[2])

	monthly := sink.tables["monthly.csv"]
	assert.Equal(t, []string{"Lon", "Lat", "Year", "Month", "IGBP", "NEE", "GPP", "LE"}, monthly.header)
	assert.Equal(t, "02", monthly.rows[2][3])

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ArchivesProcessed))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ForcingFiles))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RowsAggregated.WithLabelValues("daily")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.RunInProgress))
}

func TestReshaper_Run_AggregateRowCountIsSumOfSites(t *testing.T) {
	ids := []string{"AA-1", "BB-2", "CC-3"}
	sizes := []int{4, 1, 7}

	names := make([]string, len(ids))
	tables := map[string]domain.ArchiveTables{}
	sites := mockSites{}
	want := 0
	for i, id := range ids {
		names[i] = archiveName(id)
		ts := make([]string, sizes[i])
		for j := range ts {
			ts[j] = time.Date(2001, 1, 1+j, 0, 0, 0, 0, time.UTC).Format("20060102")
		}
		tables[names[i]] = domain.ArchiveTables{Daily: rawTable(ts...), Monthly: rawTable("200101")}
		sites[id] = site(id, float64(i), float64(i))
		want += sizes[i]
	}

	sink := newMockSink()
	r := pipeline.New(sites, &mockReader{tables: tables}, sink, options(inputDir(t, names...)),
		slog.Default(), observability.NewMetricsForTesting(), nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, want, summary.DailyRows)
	assert.Len(t, sink.tables["daily.csv"].rows, want)
	assert.Len(t, sink.tables["monthly.csv"].rows, len(ids))
}

func TestReshaper_Run_MissingMetadataAborts(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"), archiveName("ZZ-9"))
	reader := &mockReader{tables: map[string]domain.ArchiveTables{
		archiveName("AB-1"): {Daily: rawTable("20010101"), Monthly: rawTable("200101")},
	}}
	sink := newMockSink()
	metrics := observability.NewMetricsForTesting()

	r := pipeline.New(mockSites{"AB-1": site("AB-1", 1, 2)}, reader, sink, options(dir), slog.Default(), metrics, nil)
	_, err := r.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingMetadata))
	var se *domain.SiteError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "ZZ-9", se.Site)

	// earlier forcing file stays, no aggregates written
	assert.Contains(t, sink.forcing, "AB-1")
	assert.Empty(t, sink.tables)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SiteErrors.WithLabelValues("missing_metadata")))
}

func TestReshaper_Run_ContinueOnError(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"), archiveName("CD-2"), archiveName("EF-3"), "broken.zip")
	reader := &mockReader{
		tables: map[string]domain.ArchiveTables{
			archiveName("AB-1"): {Daily: rawTable("20010101"), Monthly: rawTable("200101")},
			archiveName("EF-3"): {Daily: rawTable("20030101"), Monthly: rawTable("200301")},
		},
		errs: map[string]error{
			archiveName("CD-2"): errors.Join(errors.New("monthly table"), domain.ErrMissingTable),
		},
	}
	sink := newMockSink()
	opts := options(dir)
	opts.ContinueOnError = true
	sites := mockSites{"AB-1": site("AB-1", 1, 1), "CD-2": site("CD-2", 2, 2), "EF-3": site("EF-3", 3, 3)}

	r := pipeline.New(sites, reader, sink, opts, slog.Default(), observability.NewMetricsForTesting(), nil)
	summary, err := r.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingTable))
	assert.True(t, errors.Is(err, domain.ErrInvalidArchiveName))
	assert.Equal(t, 2, summary.Sites)
	assert.Equal(t, 2, summary.SkippedSites)
	assert.Equal(t, 2, summary.DailyRows)
	assert.Len(t, sink.tables, 2)
	assert.NotContains(t, sink.forcing, "CD-2")
}

func TestReshaper_Run_FatalReadErrorStops(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"), archiveName("CD-2"))
	reader := &mockReader{errs: map[string]error{archiveName("AB-1"): errors.New("zip: not a valid zip file")}}
	opts := options(dir)
	opts.ContinueOnError = true

	r := pipeline.New(mockSites{"AB-1": site("AB-1", 1, 1), "CD-2": site("CD-2", 2, 2)}, reader, newMockSink(),
		opts, slog.Default(), observability.NewMetricsForTesting(), nil)
	_, err := r.Run(context.Background())

	require.Error(t, err)
	assert.False(t, domain.IsSiteError(err))
	assert.Equal(t, []string{archiveName("AB-1")}, reader.reads)
}

func TestReshaper_Run_ForcingWriteErrorIsFatal(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"))
	reader := &mockReader{tables: map[string]domain.ArchiveTables{
		archiveName("AB-1"): {Daily: rawTable("20010101"), Monthly: rawTable("200101")},
	}}
	sink := newMockSink()
	sink.forcingErr = errors.New("disk full")
	opts := options(dir)
	opts.ContinueOnError = true

	r := pipeline.New(mockSites{"AB-1": site("AB-1", 1, 1)}, reader, sink, opts, slog.Default(), observability.NewMetricsForTesting(), nil)
	_, err := r.Run(context.Background())
	require.EqualError(t, err, "disk full")
	assert.Empty(t, sink.tables)
}

func TestReshaper_Run_MalformedTimestampsAreWarnings(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"))
	reader := &mockReader{tables: map[string]domain.ArchiveTables{
		archiveName("AB-1"): {Daily: rawTable("20010101", "2001013"), Monthly: rawTable("2001")},
	}}
	sink := newMockSink()
	metrics := observability.NewMetricsForTesting()

	r := pipeline.New(mockSites{"AB-1": site("AB-1", 1, 1)}, reader, sink, options(dir), slog.Default(), metrics, nil)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.MalformedRows)
	assert.Equal(t, 2, summary.DailyRows)
	assert.Equal(t, []string{"", "", "6.000", "101.000", "0.000"}, sink.forcing["AB-1"][1])
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MalformedRows.WithLabelValues("daily")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.MalformedRows.WithLabelValues("monthly")))
}

func TestReshaper_Run_MissingBenchmarkLeavesAggregatesUntouched(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"), archiveName("CD-2"))
	short := domain.RawTable{Columns: []string{"TA_ERA"}, Timestamps: []string{"200101"}, Values: [][]float64{{1}}}
	reader := &mockReader{tables: map[string]domain.ArchiveTables{
		archiveName("AB-1"): {Daily: rawTable("20010101"), Monthly: short},
		archiveName("CD-2"): {Daily: rawTable("20020101"), Monthly: rawTable("200201")},
	}}
	sink := newMockSink()
	opts := options(dir)
	opts.ContinueOnError = true

	r := pipeline.New(mockSites{"AB-1": site("AB-1", 1, 1), "CD-2": site("CD-2", 2, 2)}, reader, sink, opts,
		slog.Default(), observability.NewMetricsForTesting(), nil)
	summary, err := r.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingColumn))
	assert.Equal(t, 1, summary.DailyRows)
	assert.Equal(t, "2.0", sink.tables["daily.csv"].rows[0][0])
}

func TestReshaper_Run_Cancelled(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"))
	reader := &mockReader{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := pipeline.New(mockSites{}, reader, newMockSink(), options(dir), slog.Default(), observability.NewMetricsForTesting(), nil)
	_, err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.reads)
}

func TestReshaper_Run_Duration(t *testing.T) {
	dir := inputDir(t, archiveName("AB-1"), archiveName("CD-2"))
	clock := clockwork.NewFakeClock()
	reader := &mockReader{
		clock: clock,
		tables: map[string]domain.ArchiveTables{
			archiveName("AB-1"): {Daily: rawTable("20010101"), Monthly: rawTable("200101")},
			archiveName("CD-2"): {Daily: rawTable("20020101"), Monthly: rawTable("200201")},
		},
	}

	r := pipeline.New(mockSites{"AB-1": site("AB-1", 1, 1), "CD-2": site("CD-2", 2, 2)}, reader, newMockSink(),
		options(dir), slog.Default(), observability.NewMetricsForTesting(), clock)
	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4*time.Second, summary.Duration)
}

func TestReshaper_Run_MissingInputDir(t *testing.T) {
	r := pipeline.New(mockSites{}, &mockReader{}, newMockSink(), options(filepath.Join(t.TempDir(), "nope")),
		slog.Default(), observability.NewMetricsForTesting(), nil)
	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list input directory")
}

func TestListArchives(t *testing.T) {
	dir := inputDir(t, "b.zip", "a.ZIP", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.zip"), 0o755))

	got, err := pipeline.ListArchives(dir, slog.Default())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.ZIP"), filepath.Join(dir, "b.zip")}, got)
}
