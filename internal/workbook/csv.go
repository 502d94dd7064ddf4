package workbook

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/quotesmith/internal/common"
)

type csvSource struct {
	file   *os.File
	reader *csv.Reader
	last   int
}

func openCSV(path string) (*csvSource, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrIO, err)
	}

	br := bufio.NewReader(f)
	if bom, peekErr := br.Peek(3); peekErr == nil && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	return &csvSource{file: f, reader: reader}, nil
}

// next reads one record. Its number is the line the record starts on, since
// encoding/csv skips empty lines.
func (s *csvSource) next() ([]string, int, bool, error) {
	record, err := s.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, s.last, false, nil
	}
	if err != nil {
		return nil, s.last, false, err
	}
	s.last, _ = s.reader.FieldPos(0)
	return record, s.last, true, nil
}

func (s *csvSource) close() error {
	return s.file.Close()
}
