package connector

import (
	"errors"
	"io"

	"github.com/openstandia/connector-csv/csvconn/config"
	"github.com/openstandia/connector-csv/csvconn/csvfile"
)

// rowSource yields data rows, skipping the header row and empty records,
// and groups consecutive rows by unique value when group-by is enabled.
type rowSource struct {
	reader    RecordReader
	cfg       config.ObjectClassConfig
	mapper    *Mapper
	seenFirst bool
	pending   *csvfile.Record
}

func newRowSource(reader RecordReader, cfg config.ObjectClassConfig, mapper *Mapper) *rowSource {
	return &rowSource{reader: reader, cfg: cfg, mapper: mapper}
}

// next returns the next data record or io.EOF
func (s *rowSource) next() (*csvfile.Record, error) {
	if s.pending != nil {
		rec := s.pending
		s.pending = nil
		return rec, nil
	}

	for {
		rec, err := s.reader.Read()
		if err != nil {
			return nil, err
		}
		if isRecordEmpty(rec, s.cfg) {
			continue
		}
		if !s.seenFirst {
			s.seenFirst = true
			if s.cfg.HeaderExists {
				continue
			}
		}
		return rec, nil
	}
}

// nextGroup returns the rows making up the next object
func (s *rowSource) nextGroup() ([]*csvfile.Record, error) {
	first, err := s.next()
	if err != nil {
		return nil, err
	}
	if !s.cfg.GroupByEnabled {
		return []*csvfile.Record{first}, nil
	}

	group := []*csvfile.Record{first}
	key := s.mapper.UniqueValue(first)
	for {
		rec, err := s.next()
		if errors.Is(err, io.EOF) {
			return group, nil
		}
		if err != nil {
			return nil, err
		}
		if s.mapper.UniqueValue(rec) != key {
			s.pending = rec
			return group, nil
		}
		group = append(group, rec)
	}
}
