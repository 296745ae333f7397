package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fluxnet-forcing-etl/internal/config"
	"github.com/couchcryptid/fluxnet-forcing-etl/internal/domain"
)

var testSchema = domain.Schema{Forcing: []string{"TA_ERA"}, Benchmark: []string{"NEE_VUT_REF"}}

func TestWriteTable_Daily(t *testing.T) {
	var buf bytes.Buffer
	n, err := writeTable(&buf, testSchema, templates[0], 2004, 2004, rand.New(rand.NewPCG(1, 1)), false)
	require.NoError(t, err)
	assert.Equal(t, 366, n)

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 367)
	assert.Equal(t, []string{"TIMESTAMP", "TA_ERA", "NEE_VUT_REF", noise}, recs[0])
	assert.Equal(t, "20040101", recs[1][0])
	assert.Equal(t, "20041231", recs[366][0])

	for _, rec := range recs[1:] {
		_, err := domain.NormalizeTimestamp(rec[0])
		require.NoError(t, err)
	}
}

func TestWriteTable_Monthly(t *testing.T) {
	var buf bytes.Buffer
	n, err := writeTable(&buf, testSchema, templates[3], 2001, 2002, rand.New(rand.NewPCG(1, 1)), true)
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "200101", recs[1][0])
	assert.Equal(t, "200212", recs[24][0])
}

func TestWriteTable_Reproducible(t *testing.T) {
	var a, b bytes.Buffer
	_, err := writeTable(&a, testSchema, templates[1], 2001, 2001, rand.New(rand.NewPCG(7, 7)), true)
	require.NoError(t, err)
	_, err = writeTable(&b, testSchema, templates[1], 2001, 2001, rand.New(rand.NewPCG(7, 7)), true)
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())
}

func TestWriteArchive(t *testing.T) {
	t.Setenv("BASE_DIR", t.TempDir())
	cfg, err := config.Load()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "FLX_FI-Hyy_FLUXNET2015_FULLSET_2001-2001_1-3.zip")
	counts, err := writeArchive(path, siteMembers(templates[0], testSchema, cfg, 2001, 2001, rand.New(rand.NewPCG(1, 1))))
	require.NoError(t, err)
	assert.Equal(t, []int{365, 12}, counts)

	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 2)
	assert.Equal(t, "FLX_FI-Hyy_FLUXNET2015_FULLSET_DD_2001-2001_1-3.csv", zr.File[0].Name)
	assert.Equal(t, "FLX_FI-Hyy_FLUXNET2015_FULLSET_MM_2001-2001_1-3.csv", zr.File[1].Name)
}

func TestWriteArchive_RemovesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	members := []member{
		{name: "ok.csv", write: func(w io.Writer) (int, error) {
			_, err := io.WriteString(w, "TIMESTAMP\n")
			return 1, err
		}},
		{name: "bad.csv", write: func(io.Writer) (int, error) { return 0, errors.New("disk full") }},
	}

	_, err := writeArchive(path, members)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "member bad.csv: disk full")

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
