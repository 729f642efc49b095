package sink

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mfukuda/dealsheet/models"
)

// CSVSink writes records to a local CSV file with the fixed header row.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates the output file and writes the header row.
func NewCSVSink(filename string) (*CSVSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create csv file: %w", err)
	}

	writer := csv.NewWriter(f)
	if err := writer.Write(Header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		f.Close()
		return nil, fmt.Errorf("flush csv header: %w", err)
	}

	return &CSVSink{file: f, writer: writer}, nil
}

// Write appends all records in collection order.
func (cs *CSVSink) Write(_ context.Context, records []models.ProductRecord) error {
	for _, rec := range records {
		if err := cs.writer.Write(Row(rec)); err != nil {
			return ErrWrite{Err: fmt.Errorf("write csv record: %w", err)}
		}
	}
	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return ErrWrite{Err: fmt.Errorf("flush csv records: %w", err)}
	}
	return nil
}

// Close flushes and closes the file handle.
func (cs *CSVSink) Close() error {
	cs.writer.Flush()
	if err := cs.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cs.file.Close()
}

// Validate ensures the file has content besides the header.
func (cs *CSVSink) Validate() error {
	info, err := cs.file.Stat()
	if err != nil {
		return fmt.Errorf("stat csv file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("csv file is empty")
	}
	return nil
}

// JSONSink writes newline-delimited JSON records, including the scrape
// timestamp the spreadsheet columns omit.
type JSONSink struct {
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder
}

// NewJSONSink initialises the JSON output file.
func NewJSONSink(filename string) (*JSONSink, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create json file: %w", err)
	}

	buffer := bufio.NewWriter(f)
	return &JSONSink{
		file:    f,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}, nil
}

// Write appends records in JSONL format.
func (js *JSONSink) Write(_ context.Context, records []models.ProductRecord) error {
	for _, rec := range records {
		if err := js.encoder.Encode(rec); err != nil {
			return ErrWrite{Err: fmt.Errorf("encode json record: %w", err)}
		}
	}
	if err := js.writer.Flush(); err != nil {
		return ErrWrite{Err: fmt.Errorf("flush json writer: %w", err)}
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (js *JSONSink) Close() error {
	if err := js.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return js.file.Close()
}

// Validate ensures the JSON file has data.
func (js *JSONSink) Validate() error {
	info, err := js.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json file: %w", err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("json file is empty")
	}
	return nil
}

// DualSink delivers to both CSV and JSON outputs.
type DualSink struct {
	csv  *CSVSink
	json *JSONSink
}

// NewDualSink creates both output files.
func NewDualSink(csvFilename, jsonFilename string) (*DualSink, error) {
	csvSink, err := NewCSVSink(csvFilename)
	if err != nil {
		return nil, fmt.Errorf("create csv sink: %w", err)
	}

	jsonSink, err := NewJSONSink(jsonFilename)
	if err != nil {
		csvSink.Close()
		return nil, fmt.Errorf("create json sink: %w", err)
	}

	return &DualSink{csv: csvSink, json: jsonSink}, nil
}

// Write delivers the records to both outputs.
func (ds *DualSink) Write(ctx context.Context, records []models.ProductRecord) error {
	if err := ds.csv.Write(ctx, records); err != nil {
		return fmt.Errorf("csv write failed: %w", err)
	}
	if err := ds.json.Write(ctx, records); err != nil {
		return fmt.Errorf("json write failed: %w", err)
	}
	return nil
}

// Close closes both outputs.
func (ds *DualSink) Close() error {
	var errs []error
	if err := ds.csv.Close(); err != nil {
		errs = append(errs, fmt.Errorf("csv close failed: %w", err))
	}
	if err := ds.json.Close(); err != nil {
		errs = append(errs, fmt.Errorf("json close failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors: %v", errs)
	}
	return nil
}

// Validate validates both output files.
func (ds *DualSink) Validate() error {
	var errs []error
	if err := ds.csv.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("csv validation failed: %w", err))
	}
	if err := ds.json.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("json validation failed: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation errors: %v", errs)
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
