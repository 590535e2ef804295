package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/dashgen/backend/pkg/logger"
)

// Loader resolves an opaque file reference into a Dataset. Implementations
// own the on-disk format; the analysis pipeline only sees the column-oriented
// result.
type Loader interface {
	Load(ctx context.Context, fileRef string) (*Dataset, error)
}

// CSVLoader reads CSV and TSV files from local disk. The delimiter is
// sniffed from the header line when not set explicitly.
type CSVLoader struct {
	Delimiter rune
	MaxRows   int
}

func NewCSVLoader(maxRows int) *CSVLoader {
	return &CSVLoader{MaxRows: maxRows}
}

func (l *CSVLoader) Load(ctx context.Context, fileRef string) (*Dataset, error) {
	f, err := os.Open(fileRef)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	delim := l.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(fileRef)
	}

	r := csv.NewReader(f)
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(nil), nil
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]Column, len(header))
	for i, name := range header {
		columns[i] = Column{Name: strings.TrimSpace(name)}
	}

	rows := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("Skipping malformed row", zap.Int("row", rows+1), zap.Error(err))
			continue
		}

		for i := range columns {
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			columns[i].Cells = append(columns[i].Cells, cell)
		}
		rows++

		if l.MaxRows > 0 && rows >= l.MaxRows {
			logger.Warn("Row cap reached, truncating dataset",
				zap.String("file", fileRef),
				zap.Int("max_rows", l.MaxRows),
			)
			break
		}
	}

	logger.Info("Dataset loaded",
		zap.String("file", fileRef),
		zap.Int("columns", len(columns)),
		zap.Int("rows", rows),
	)

	return New(columns), nil
}

func sniffDelimiter(path string) rune {
	f, err := os.Open(path)
	if err != nil {
		return ','
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return ','
	}
	line := scanner.Text()

	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []rune{';', '\t'} {
		if n := strings.Count(line, string(cand)); n > bestCount {
			best, bestCount = cand, n
		}
	}
	return best
}
