package dataset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffuser_donation_active_status, blood_group ,frequency_in_days,gender\n" +
		"Active,O+,30,F\n" +
		"inactive,NA,,nan\n" +
		"inactive,B+\n" +
		"Active,O+,1,F,extra\n" +
		"Active,\" AB- \",45.5,None\n"

	ds, err := ReadCSV(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"user_donation_active_status", "blood_group", "frequency_in_days", "gender"}, ds.Columns)
	require.Len(t, ds.Records, 4)
	assert.Equal(t, 1, ds.Skipped, "only the row with too many fields is skipped")

	assert.Equal(t, "O+", ds.Records[0]["blood_group"])
	assert.Equal(t, "30", ds.Records[0]["frequency_in_days"])

	second := ds.Records[1]
	assert.Len(t, second, 4, "every header column is a key")
	assert.Nil(t, second["blood_group"])
	assert.Nil(t, second["frequency_in_days"])
	assert.Nil(t, second["gender"])

	short := ds.Records[2]
	assert.Len(t, short, 4, "short rows are padded")
	assert.Equal(t, "B+", short["blood_group"])
	assert.Nil(t, short["frequency_in_days"])
	assert.Nil(t, short["gender"])

	assert.Equal(t, " AB- ", ds.Records[3]["blood_group"], "cell text is kept verbatim")
}

func TestReadCSV_Empty(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoHeader)

	ds, err := ReadCSV(context.Background(), strings.NewReader("status,gender\n"))
	require.NoError(t, err)
	assert.Empty(t, ds.Records)
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "donors.csv")
	require.NoError(t, os.WriteFile(path, []byte("status,gender\nactive,M\n"), 0600))

	ds, err := LoadCSV(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.Equal(t, "active", ds.Records[0]["status"])

	_, err = LoadCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
