package services

import (
	"context"
	"encoding/csv"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"basket-dashboard/internal/models"
)

const (
	batchSize    = 10000
	maxWorkers   = 10
	cacheVersion = "v1"

	// Invoice numbers carrying this prefix denote cancelled orders in
	// the retail log convention and are excluded from mining.
	cancellationPrefix = "C"
)

// ErrSourceNotFound signals that the transaction log is absent. Callers
// treat it as a recoverable condition, not a fatal error.
var ErrSourceNotFound = errors.New("transaction source not found")

// Loader reads the ISO-8859-1 encoded transaction log, cleans it and
// produces an immutable record set. Cleaned sets are cached on disk,
// keyed by source path, and reused until the source file changes.
type Loader struct {
	cacheDir string
	logger   *slog.Logger
}

func NewLoader(cacheDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{cacheDir: cacheDir, logger: logger}
}

// Load returns the cleaned record set for filename, or ErrSourceNotFound
// when the file does not exist.
func (l *Loader) Load(ctx context.Context, filename string) (*models.RecordSet, error) {
	info, err := os.Stat(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, filename)
		}
		return nil, fmt.Errorf("stat source: %w", err)
	}

	if cached, err := l.loadFromCache(filename); err == nil && info.ModTime().Before(cached.LoadedAt) {
		l.logger.Info("loaded record set from cache", "records", len(cached.Records))
		return cached, nil
	}

	start := time.Now()
	l.logger.Info("processing transaction log", "filename", filename)

	records, dropped, err := l.parse(ctx, filename)
	if err != nil {
		return nil, fmt.Errorf("parse transaction log: %w", err)
	}

	set := buildRecordSet(records)

	if err := l.saveToCache(filename, set); err != nil {
		l.logger.Warn("failed to save record set cache", "error", err)
	}

	l.logger.Info("transaction log processed",
		"records", len(set.Records),
		"dropped", dropped,
		"countries", len(set.Countries),
		"items", set.ItemCount,
		"duration", time.Since(start))

	return set, nil
}

// parse streams the CSV and cleans rows in parallel batches. Each
// worker writes its result at the row's batch index, so the cleaned
// order matches the file order regardless of scheduling.
func (l *Loader) parse(ctx context.Context, filename string) ([]models.Record, int, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	// The retail log ships as extended Latin (ISO-8859-1), which would
	// mangle item descriptions if read as UTF-8.
	reader := csv.NewReader(transform.NewReader(file, charmap.ISO8859_1.NewDecoder()))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, 0, err
	}

	var records []models.Record
	dropped := 0

	batch := make([][]string, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		kept, miss, err := cleanBatch(ctx, batch, cols)
		if err != nil {
			return err
		}
		records = append(records, kept...)
		dropped += miss
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read row: %w", err)
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, 0, err
	}

	return records, dropped, nil
}

type columnIndexes struct {
	invoice     int
	description int
	quantity    int
	country     int
}

func resolveColumns(header []string) (columnIndexes, error) {
	cols := columnIndexes{invoice: -1, description: -1, quantity: -1, country: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "invoiceno", "invoice_no", "invoiceid", "invoice_id":
			cols.invoice = i
		case "description", "itemdescription", "item_description":
			cols.description = i
		case "quantity":
			cols.quantity = i
		case "country":
			cols.country = i
		}
	}
	if cols.invoice < 0 || cols.description < 0 || cols.quantity < 0 || cols.country < 0 {
		return cols, fmt.Errorf("source header missing required columns, got: %s", strings.Join(header, ","))
	}
	return cols, nil
}

func cleanBatch(ctx context.Context, batch [][]string, cols columnIndexes) ([]models.Record, int, error) {
	type slot struct {
		record models.Record
		valid  bool
	}
	slots := make([]slot, len(batch))

	var wg errgroup.Group
	wg.SetLimit(maxWorkers)

	for i, row := range batch {
		wg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			record, ok := cleanRow(row, cols)
			slots[i] = slot{record: record, valid: ok}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, 0, err
	}

	kept := make([]models.Record, 0, len(batch))
	dropped := 0
	for _, s := range slots {
		if s.valid {
			kept = append(kept, s.record)
		} else {
			dropped++
		}
	}
	return kept, dropped, nil
}

// cleanRow applies the cleaning rules: invoice and description must be
// non-empty after trimming, cancellations are excluded, quantity must
// coerce to int32.
func cleanRow(row []string, cols columnIndexes) (models.Record, bool) {
	max := cols.invoice
	for _, c := range []int{cols.description, cols.quantity, cols.country} {
		if c > max {
			max = c
		}
	}
	if len(row) <= max {
		return models.Record{}, false
	}

	invoice := strings.TrimSpace(row[cols.invoice])
	description := strings.TrimSpace(row[cols.description])
	if invoice == "" || description == "" {
		return models.Record{}, false
	}
	if strings.HasPrefix(invoice, cancellationPrefix) {
		return models.Record{}, false
	}

	quantity, err := strconv.ParseInt(strings.TrimSpace(row[cols.quantity]), 10, 32)
	if err != nil {
		return models.Record{}, false
	}

	return models.Record{
		InvoiceID:   invoice,
		Description: description,
		Quantity:    int32(quantity),
		Country:     strings.TrimSpace(row[cols.country]),
	}, true
}

// buildRecordSet interns country strings into a category set and
// tallies the distinct item vocabulary.
func buildRecordSet(records []models.Record) *models.RecordSet {
	categories := make(map[string]string)
	items := make(map[string]struct{})

	for i := range records {
		country := records[i].Country
		if interned, ok := categories[country]; ok {
			records[i].Country = interned
		} else {
			categories[country] = country
		}
		items[records[i].Description] = struct{}{}
	}

	countries := make([]string, 0, len(categories))
	for c := range categories {
		countries = append(countries, c)
	}
	sort.Strings(countries)

	return &models.RecordSet{
		Records:   records,
		Countries: countries,
		ItemCount: len(items),
		LoadedAt:  time.Now(),
	}
}

func (l *Loader) cacheFilename(csvPath string) string {
	return fmt.Sprintf("%s/%s_%s.gob", l.cacheDir, strings.ReplaceAll(csvPath, "/", "_"), cacheVersion)
}

func (l *Loader) saveToCache(csvPath string, set *models.RecordSet) error {
	if err := os.MkdirAll(l.cacheDir, 0755); err != nil {
		return err
	}

	file, err := os.Create(l.cacheFilename(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(set)
}

func (l *Loader) loadFromCache(csvPath string) (*models.RecordSet, error) {
	file, err := os.Open(l.cacheFilename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var set models.RecordSet
	if err := gob.NewDecoder(file).Decode(&set); err != nil {
		return nil, err
	}
	return &set, nil
}
