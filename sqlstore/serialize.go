package sqlstore

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/goquartz/quartz/calendar"
	"github.com/goquartz/quartz/quartz"
)

// Serializer converts job data maps and calendars to and from their
// persisted representation. With UseProperties set, job data maps are
// stored as key=value text and all values must be strings; otherwise an
// opaque gob encoding is used. The mode is store-wide and must be
// consistent across cluster peers.
type Serializer struct {
	UseProperties bool
}

// EncodeJobDataMap serializes the job data map. A nil or empty map
// yields nil, persisted as a NULL blob.
func (s *Serializer) EncodeJobDataMap(data quartz.JobDataMap) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if s.UseProperties {
		if err := data.CheckStringOnly(); err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		for _, key := range data.Keys() {
			value, _ := data.GetString(key)
			if strings.ContainsAny(key, "=\n") || strings.Contains(value, "\n") {
				return nil, fmt.Errorf("%w: key or value contains a reserved character",
					quartz.ErrIllegalArgument)
			}
			fmt.Fprintf(&buf, "%s=%s\n", key, value)
		}
		return buf.Bytes(), nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(map[string]any(data)); err != nil {
		return nil, fmt.Errorf("encode job data map: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJobDataMap deserializes the job data map. A nil or empty blob
// yields an empty map.
func (s *Serializer) DecodeJobDataMap(blob []byte) (quartz.JobDataMap, error) {
	data := quartz.NewJobDataMap()
	if len(blob) == 0 {
		return data, nil
	}
	if s.UseProperties {
		scanner := bufio.NewScanner(bytes.NewReader(blob))
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			key, value, found := strings.Cut(line, "=")
			if !found {
				return nil, fmt.Errorf("%w: malformed job data properties line %q",
					quartz.ErrStoreFatal, line)
			}
			data[key] = value
		}
		return data, scanner.Err()
	}
	raw := make(map[string]any)
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode job data map: %s", quartz.ErrStoreFatal, err)
	}
	return raw, nil
}

// EncodeCalendar serializes the calendar with its whole base chain.
func (s *Serializer) EncodeCalendar(cal calendar.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&cal); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCalendar deserializes a calendar blob. Unknown calendar types
// surface as a store-fatal error.
func (s *Serializer) DecodeCalendar(blob []byte) (calendar.Calendar, error) {
	var cal calendar.Calendar
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&cal); err != nil {
		return nil, fmt.Errorf("%w: decode calendar: %s", quartz.ErrStoreFatal, err)
	}
	return cal, nil
}
