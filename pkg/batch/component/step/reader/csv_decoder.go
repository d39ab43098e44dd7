package reader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	port "github.com/tigerroll/recipient-import/pkg/batch/core/application/port"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/exception"
	"github.com/tigerroll/recipient-import/pkg/batch/support/util/logger"
)

// FormatCSV is the format name of comma separated sources.
const FormatCSV = "csv"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVDecoder decodes comma separated text with a header row.
type CSVDecoder struct {
	comma rune // comma is the field delimiter.
}

// NewCSVDecoder creates a CSVDecoder using ',' as the delimiter.
func NewCSVDecoder() *CSVDecoder {
	return &CSVDecoder{comma: ','}
}

// Format returns FormatCSV.
func (d *CSVDecoder) Format() string { return FormatCSV }

// Decode reads the header row and returns a stream over the remaining rows.
// An empty body yields an empty stream.
func (d *CSVDecoder) Decode(body []byte) (port.RecordStream, error) {
	body = bytes.TrimPrefix(body, utf8BOM)

	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = d.comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = false

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return &csvStream{}, nil
	}
	if err != nil {
		return nil, exception.NewUnsupportedFormatError(moduleName, "failed to read csv header", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	logger.Debugf("CSVDecoder: header has %d columns: %v", len(header), header)

	return &csvStream{reader: r, header: header}, nil
}

// csvStream yields one record per row. It is not restartable.
type csvStream struct {
	reader *csv.Reader
	header []string
	line   int
	done   bool
}

func (s *csvStream) Header() []string {
	return append([]string(nil), s.header...)
}

func (s *csvStream) Next() (map[string]string, error) {
	if s.done || s.reader == nil {
		return nil, port.ErrNoMoreRecords
	}
	for {
		row, err := s.reader.Read()
		if errors.Is(err, io.EOF) {
			s.done = true
			return nil, port.ErrNoMoreRecords
		}
		s.line++
		if err != nil {
			s.done = true
			return nil, exception.NewUnsupportedFormatError(moduleName, fmt.Sprintf("malformed csv at record %d", s.line), err)
		}
		if isBlank(row) {
			continue
		}
		record := make(map[string]string, len(s.header))
		for i, col := range s.header {
			if col == "" {
				continue
			}
			if i < len(row) {
				record[col] = row[i]
			} else {
				record[col] = ""
			}
		}
		return record, nil
	}
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

var _ port.RecordDecoder = (*CSVDecoder)(nil)
