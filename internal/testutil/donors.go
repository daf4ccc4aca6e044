package testutil

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/manohar-125/ThalAI-App/internal/dataset"
	"github.com/manohar-125/ThalAI-App/internal/model"
)

// Reference is the day synthetic donation dates are aged against.
var Reference = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// DonorBuilder constructs synthetic donor exports that a forest separates
// easily: active donors give often and recently, inactive donors rarely.
type DonorBuilder struct {
	omit        map[string]bool
	n           int
	missingEach int
}

// NewDonorBuilder starts a builder for n records, alternating active and
// inactive starting with active.
func NewDonorBuilder(n int) *DonorBuilder {
	return &DonorBuilder{n: n, omit: map[string]bool{}}
}

// WithoutColumn leaves a column out of the export.
func (b *DonorBuilder) WithoutColumn(names ...string) *DonorBuilder {
	for _, name := range names {
		b.omit[name] = true
	}
	return b
}

// WithMissingGender blanks the gender of every k-th record.
func (b *DonorBuilder) WithMissingGender(k int) *DonorBuilder {
	b.missingEach = k
	return b
}

// Build returns the dataset.
func (b *DonorBuilder) Build() *dataset.Dataset {
	all := []string{
		model.ColumnUserDonationActiveState,
		model.FeatureFrequencyInDays,
		model.FeatureDonatedEarlier,
		model.ColumnLastBridgeDonationDate,
		model.FeatureBloodGroup,
		model.FeatureGender,
	}
	ds := &dataset.Dataset{}
	for _, c := range all {
		if !b.omit[c] {
			ds.Columns = append(ds.Columns, c)
		}
	}

	for i := 0; i < b.n; i++ {
		rec := model.RawRecord{
			model.ColumnUserDonationActiveState: "Active",
			model.FeatureFrequencyInDays:        fmt.Sprintf("%d", 30+i%10),
			model.FeatureDonatedEarlier:         "True",
			model.ColumnLastBridgeDonationDate:  Reference.AddDate(0, 0, -(10 + i%20)).Format("2006-01-02"),
			model.FeatureBloodGroup:             "O+",
			model.FeatureGender:                 "F",
		}
		if i%2 == 1 {
			rec[model.ColumnUserDonationActiveState] = "inactive"
			rec[model.FeatureFrequencyInDays] = fmt.Sprintf("%d", 300+i%40)
			rec[model.FeatureDonatedEarlier] = "False"
			rec[model.ColumnLastBridgeDonationDate] = Reference.AddDate(-1, 0, -(i % 30)).Format("2006-01-02")
			rec[model.FeatureBloodGroup] = "B+"
			rec[model.FeatureGender] = "M"
		}
		if b.missingEach > 0 && i%b.missingEach == 0 {
			rec[model.FeatureGender] = nil
		}
		for c := range b.omit {
			delete(rec, c)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds
}

// WriteCSV writes ds to dir/donors.csv and returns the path. Missing values
// are written as empty cells.
func WriteCSV(t *testing.T, dir string, ds *dataset.Dataset) string {
	t.Helper()

	path := filepath.Join(dir, "donors.csv")
	f, err := os.Create(path) //nolint:gosec // test temp dir
	if err != nil {
		t.Fatalf("failed to create csv: %v", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(ds.Columns); err != nil {
		t.Fatalf("failed to write header: %v", err)
	}
	row := make([]string, len(ds.Columns))
	for _, rec := range ds.Records {
		for i, c := range ds.Columns {
			row[i] = ""
			if v := rec[c]; v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		if err := w.Write(row); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("failed to flush csv: %v", err)
	}
	return path
}
