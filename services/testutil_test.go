package services

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"immo_scrooper/models"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("load fixture %s: %v", name, err)
	}
	return string(data)
}

// record builds a candidate record from plain values. float64 values become
// numeric candidates, strings text candidates.
func record(url string, values map[models.Field]any) *models.CandidateRecord {
	rec := models.NewCandidateRecord(url, "willhaben")
	for f, v := range values {
		switch val := v.(type) {
		case float64:
			n := val
			rec.Set(f, models.Candidate{Text: strconv.FormatFloat(val, 'f', -1, 64), Number: &n, Strategy: models.StrategyEmbedded})
		case int:
			n := float64(val)
			rec.Set(f, models.Candidate{Text: strconv.Itoa(val), Number: &n, Strategy: models.StrategyEmbedded})
		case string:
			rec.Set(f, models.Candidate{Text: val, Strategy: models.StrategyEmbedded})
		}
	}
	return rec
}

func ptr[T any](v T) *T { return &v }
