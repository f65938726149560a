package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const retailHeader = "InvoiceNo,StockCode,Description,Quantity,InvoiceDate,UnitPrice,CustomerID,Country\n"

func writeTempCSV(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "retail.csv")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewLoader(t.TempDir(), logger)
}

func TestLoader_Load(t *testing.T) {
	csv := retailHeader +
		"536365,85123A,WHITE HANGING HEART,6,2010-12-01,2.55,17850,United Kingdom\n" +
		"536365,71053,  METAL LANTERN  ,4,2010-12-01,3.39,17850,United Kingdom\n" +
		"536366,22633,HAND WARMER,2,2010-12-01,1.85,17850,France\n"

	set, err := newTestLoader(t).Load(context.Background(), writeTempCSV(t, []byte(csv)))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(set.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(set.Records))
	}

	// Descriptions are trimmed.
	if got := set.Records[1].Description; got != "METAL LANTERN" {
		t.Errorf("description not trimmed: %q", got)
	}

	if got := set.Records[0].Quantity; got != 6 {
		t.Errorf("quantity = %d, want 6", got)
	}

	wantCountries := []string{"France", "United Kingdom"}
	if diff := cmp.Diff(wantCountries, set.Countries); diff != "" {
		t.Errorf("countries mismatch (-want +got):\n%s", diff)
	}

	if set.ItemCount != 3 {
		t.Errorf("ItemCount = %d, want 3", set.ItemCount)
	}
}

func TestLoader_Load_Cleaning(t *testing.T) {
	tests := []struct {
		name string
		row  string
		keep bool
	}{
		{"valid", "536365,1,MUG,1,2010-12-01,1.00,1,France", true},
		{"cancellation", "C536365,1,MUG,1,2010-12-01,1.00,1,France", false},
		{"empty invoice", ",1,MUG,1,2010-12-01,1.00,1,France", false},
		{"empty description", "536365,1,,1,2010-12-01,1.00,1,France", false},
		{"whitespace description", "536365,1,   ,1,2010-12-01,1.00,1,France", false},
		{"bad quantity", "536365,1,MUG,lots,2010-12-01,1.00,1,France", false},
		{"negative quantity", "536365,1,MUG,-2,2010-12-01,1.00,1,France", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csv := retailHeader + tt.row + "\n"
			set, err := newTestLoader(t).Load(context.Background(), writeTempCSV(t, []byte(csv)))
			if err != nil {
				t.Fatalf("Load() failed: %v", err)
			}
			if kept := len(set.Records) == 1; kept != tt.keep {
				t.Errorf("row kept = %v, want %v", kept, tt.keep)
			}
		})
	}
}

func TestLoader_Load_ExtendedLatin(t *testing.T) {
	// 0xC8/0xDB: È and Û in ISO-8859-1, invalid bytes as UTF-8.
	row := append([]byte("536365,1,CR"), 0xC8)
	row = append(row, []byte("ME BR\xDBL")...)
	row = append(row, []byte("E,1,2010-12-01,1.00,1,France\n")...)
	csv := append([]byte(retailHeader), row...)

	set, err := newTestLoader(t).Load(context.Background(), writeTempCSV(t, csv))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(set.Records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(set.Records))
	}
	if got := set.Records[0].Description; got != "CRÈME BRÛLE" {
		t.Errorf("description = %q, want decoded extended Latin", got)
	}
}

func TestLoader_Load_SourceAbsent(t *testing.T) {
	_, err := newTestLoader(t).Load(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}

func TestLoader_Load_MissingColumns(t *testing.T) {
	csv := "InvoiceNo,Description\n536365,MUG\n"
	_, err := newTestLoader(t).Load(context.Background(), writeTempCSV(t, []byte(csv)))
	if err == nil {
		t.Error("expected error for source missing required columns")
	}
}

func TestLoader_Load_HeaderOnly(t *testing.T) {
	set, err := newTestLoader(t).Load(context.Background(), writeTempCSV(t, []byte(retailHeader)))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(set.Records) != 0 {
		t.Errorf("expected empty record set, got %d records", len(set.Records))
	}
}

func TestLoader_Load_CacheRoundTrip(t *testing.T) {
	csv := retailHeader + "536365,1,MUG,1,2010-12-01,1.00,1,France\n"
	path := writeTempCSV(t, []byte(csv))

	loader := newTestLoader(t)
	first, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("first Load() failed: %v", err)
	}

	if _, err := os.Stat(loader.cacheFilename(path)); err != nil {
		t.Fatalf("expected cache file after load: %v", err)
	}

	second, err := loader.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("second Load() failed: %v", err)
	}
	if diff := cmp.Diff(first.Records, second.Records); diff != "" {
		t.Errorf("cached records differ (-first +second):\n%s", diff)
	}
}

func TestLoader_Load_ContextCancelled(t *testing.T) {
	csv := retailHeader + "536365,1,MUG,1,2010-12-01,1.00,1,France\n"
	path := writeTempCSV(t, []byte(csv))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newTestLoader(t).Load(ctx, path); err == nil {
		t.Error("expected error for cancelled context")
	}
}
