package meter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field names shared by the JSON payloads and the stream entries.
const (
	FieldSiteID      = "siteId"
	FieldDateTime    = "dateTime"
	FieldWhUsed      = "whUsed"
	FieldWhGenerated = "whGenerated"
	FieldTempC       = "tempC"
)

// MeterReading is one report from a site's meter. WhUsed and WhGenerated are
// watt-hours for the minute the reading covers. DateTime is unix seconds.
// Measurements are nil when the reading did not carry them. Extra carries any
// additional fields submitted with the reading.
type MeterReading struct {
	SiteID      int64
	DateTime    int64
	WhUsed      *float64
	WhGenerated *float64
	TempC       *float64
	Extra       map[string]string
}

// Float returns a pointer to v, for building readings in code.
func Float(v float64) *float64 {
	return &v
}

// Capacity is the surplus generated over consumption for this reading. ok is
// false unless both WhGenerated and WhUsed are present.
func (r MeterReading) Capacity() (capacity float64, ok bool) {
	if r.WhGenerated == nil || r.WhUsed == nil {
		return 0, false
	}
	return *r.WhGenerated - *r.WhUsed, true
}

// Validate checks the fields required to place the reading in a feed and a
// daily rollup.
func (r MeterReading) Validate() error {
	if r.SiteID <= 0 {
		return errors.New("siteId must be positive")
	}
	if r.DateTime <= 0 {
		return errors.New("dateTime must be a positive unix timestamp")
	}
	return nil
}

// UnmarshalJSON accepts dateTime as unix seconds, a numeric string or an
// RFC3339 string. Unknown fields are kept in Extra.
func (r *MeterReading) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode meter reading: %w", err)
	}

	var out MeterReading
	for name, value := range raw {
		var err error
		switch name {
		case FieldSiteID:
			out.SiteID, err = parseInt(value)
		case FieldDateTime:
			out.DateTime, err = parseTimestamp(value)
		case FieldWhUsed:
			out.WhUsed, err = parseOptionalFloat(value)
		case FieldWhGenerated:
			out.WhGenerated, err = parseOptionalFloat(value)
		case FieldTempC:
			out.TempC, err = parseOptionalFloat(value)
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]string)
			}
			out.Extra[name] = rawString(value)
		}
		if err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
	}
	*r = out
	return nil
}

// MarshalJSON emits the known fields followed by the extras. Absent
// measurements are left out.
func (r MeterReading) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	out[FieldSiteID] = r.SiteID
	out[FieldDateTime] = r.DateTime
	if r.WhUsed != nil {
		out[FieldWhUsed] = *r.WhUsed
	}
	if r.WhGenerated != nil {
		out[FieldWhGenerated] = *r.WhGenerated
	}
	if r.TempC != nil {
		out[FieldTempC] = *r.TempC
	}
	return json.Marshal(out)
}

// FeedEntry is a reading read back from a feed stream. Numeric fields are nil
// when the stored entry did not carry them.
type FeedEntry struct {
	ID          string
	SiteID      *int64
	DateTime    *int64
	WhUsed      *float64
	WhGenerated *float64
	TempC       *float64
	Extra       map[string]string
}

// MarshalJSON omits absent fields instead of defaulting them.
func (e FeedEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Extra)+6)
	for k, v := range e.Extra {
		out[k] = v
	}
	out["id"] = e.ID
	if e.SiteID != nil {
		out[FieldSiteID] = *e.SiteID
	}
	if e.DateTime != nil {
		out[FieldDateTime] = *e.DateTime
	}
	if e.WhUsed != nil {
		out[FieldWhUsed] = *e.WhUsed
	}
	if e.WhGenerated != nil {
		out[FieldWhGenerated] = *e.WhGenerated
	}
	if e.TempC != nil {
		out[FieldTempC] = *e.TempC
	}
	return json.Marshal(out)
}

// ReadingsRequest is the ingestion payload accepted over HTTP and Kafka.
type ReadingsRequest struct {
	Readings []MeterReading `json:"readings"`
}

func parseInt(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.Int64()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	}
	return 0, errors.New("expected integer")
}

func parseFloat(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.Float64()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return 0, errors.New("expected number")
}

// parseOptionalFloat treats a JSON null as an absent measurement.
func parseOptionalFloat(raw json.RawMessage) (*float64, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}
	v, err := parseFloat(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseTimestamp(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if secs, err := n.Int64(); err == nil {
			return secs, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.New("expected unix seconds or RFC3339 string")
	}
	s = strings.TrimSpace(s)
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return secs, nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return 0, fmt.Errorf("unsupported timestamp %q", s)
	}
	return ts.Unix(), nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}
