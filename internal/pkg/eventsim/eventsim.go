// Package eventsim generates synthetic invocation events with pair list sub-records,
// optionally KPL aggregated, for load testing and local runs of the preprocessor.
package eventsim

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
	"github.com/zpiroux/ksprep/entity"
	"github.com/zpiroux/ksprep/internal/pkg/kpl"
)

const TimestampLayoutIsoMillis = "2006-01-02T15:04:05.000Z07:00"

// Spec describes the shape of the generated events.
//
// Each record carries between MinSubRecords and MaxSubRecords sub-records. Records with
// more than one sub-record are KPL aggregated. Each sub-record has one pair list per
// entry in PairFields, with between MinPairs and MaxPairs pairs whose keys are drawn
// from Keys. MalformedRatio (0-1) is the share of sub-records given a pair list that
// cannot be normalized.
type Spec struct {
	Records        int          `json:"records"`
	MinSubRecords  int          `json:"minSubRecords"`
	MaxSubRecords  int          `json:"maxSubRecords"`
	PairFields     []string     `json:"pairFields"`
	MinPairs       int          `json:"minPairs"`
	MaxPairs       int          `json:"maxPairs"`
	Keys           SetOfStrings `json:"keys"`
	MalformedRatio float64      `json:"malformedRatio"`
	PartitionKey   string       `json:"partitionKey"`
	Seed           int64        `json:"seed"`
}

func (s Spec) validate() error {
	if s.Records < 0 {
		return errors.New("records cannot be negative")
	}
	if s.MinSubRecords < 1 || s.MaxSubRecords < s.MinSubRecords {
		return fmt.Errorf("invalid sub-record range [%d, %d]", s.MinSubRecords, s.MaxSubRecords)
	}
	if s.MinPairs < 0 || s.MaxPairs < s.MinPairs {
		return fmt.Errorf("invalid pair range [%d, %d]", s.MinPairs, s.MaxPairs)
	}
	if s.MalformedRatio < 0 || s.MalformedRatio > 1 {
		return fmt.Errorf("malformedRatio must be within [0, 1], got %v", s.MalformedRatio)
	}
	return nil
}

// Simulator creates events according to its Spec. It is not safe for concurrent use.
type Simulator struct {
	spec      Spec
	rnd       *rand.Rand
	keyRanges []frequencyRange
}

func New(spec Spec) (*Simulator, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if len(spec.PairFields) == 0 {
		spec.PairFields = entity.DefaultNormalizeFields
	}
	if spec.Keys.Amount == 0 {
		spec.Keys.Amount = 10
	}
	if spec.Keys.Prefix == "" {
		spec.Keys.Prefix = "key"
	}
	if spec.PartitionKey == "" {
		spec.PartitionKey = "eventsim"
	}
	seed := spec.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{spec: spec, rnd: rand.New(rand.NewSource(seed))}
	s.keyRanges = createFrequencyRanges(s.generateValues(spec.Keys))
	if len(s.keyRanges) == 0 {
		return nil, errors.New("all generated keys were excluded")
	}
	return s, nil
}

// Event returns a new invocation event with Spec.Records records.
func (s *Simulator) Event() (entity.Event, error) {
	event := entity.Event{
		InvocationId: uuid.NewString(),
		Records:      make([]entity.InputRecord, 0, s.spec.Records),
	}
	for i := 0; i < s.spec.Records; i++ {
		record, err := s.Record()
		if err != nil {
			return event, err
		}
		event.Records = append(event.Records, record)
	}
	return event, nil
}

// Record returns a single input record holding one or more sub-records.
func (s *Simulator) Record() (entity.InputRecord, error) {
	n := s.randInt(s.spec.MinSubRecords, s.spec.MaxSubRecords)

	var payload []byte
	if n == 1 {
		payload = s.SubRecord()
	} else {
		userRecords := make([]kpl.UserRecord, n)
		for i := range userRecords {
			userRecords[i] = kpl.UserRecord{PartitionKey: s.spec.PartitionKey, Data: s.SubRecord()}
		}
		var err error
		if payload, err = kpl.Aggregate(userRecords); err != nil {
			return entity.InputRecord{}, err
		}
	}

	return entity.InputRecord{
		RecordId: uuid.NewString(),
		Data:     base64.StdEncoding.EncodeToString(payload),
	}, nil
}

// SubRecord returns a JSON object with an event ID, a timestamp and one pair list
// per configured pair field.
func (s *Simulator) SubRecord() []byte {
	subRecord := []byte("{}")
	subRecord, _ = sjson.SetBytes(subRecord, "eventId", uuid.NewString())
	subRecord, _ = sjson.SetBytes(subRecord, "ts", time.Now().UTC().Format(TimestampLayoutIsoMillis))

	malformed := s.rnd.Float64() < s.spec.MalformedRatio
	for i, field := range s.spec.PairFields {
		path := escapePath(field)
		if malformed && i == 0 {
			subRecord, _ = sjson.SetRawBytes(subRecord, path, []byte(`[{"key":`+fmt.Sprint(s.rnd.Intn(100))+`,"value":true}]`))
			continue
		}
		subRecord, _ = sjson.SetRawBytes(subRecord, path, []byte("[]"))
		pairs := s.randInt(s.spec.MinPairs, s.spec.MaxPairs)
		for p := 0; p < pairs; p++ {
			subRecord, _ = sjson.SetBytes(subRecord, path+".-1", map[string]any{
				"key":   s.pickKey(),
				"value": s.randValue(),
			})
		}
	}
	return subRecord
}

func (s *Simulator) randValue() any {
	switch s.rnd.Intn(3) {
	case 0:
		return s.rnd.Intn(1000)
	case 1:
		return float64(s.rnd.Intn(100000)) / 100
	default:
		return fmt.Sprintf("%d.%d.%d.%d", s.rnd.Intn(256), s.rnd.Intn(256), s.rnd.Intn(256), s.rnd.Intn(256))
	}
}

func (s *Simulator) pickKey() string {
	n := s.rnd.Intn(s.keyRanges[0].Max)
	for _, r := range s.keyRanges {
		if n >= r.Start && n < r.End {
			return r.Value
		}
	}
	return s.keyRanges[len(s.keyRanges)-1].Value
}

func (s *Simulator) randInt(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.rnd.Intn(max-min+1)
}

func escapePath(field string) string {
	var b []byte
	for i := 0; i < len(field); i++ {
		switch field[i] {
		case '.', '*', '?', '|', '#', '@', '\\', ':':
			b = append(b, '\\')
		}
		b = append(b, field[i])
	}
	return string(b)
}
