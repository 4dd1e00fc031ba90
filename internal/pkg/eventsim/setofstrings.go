package eventsim

import (
	"fmt"
	"slices"
)

// SetOfStrings specifies a generated set of string values on the form <Prefix><n>, with
// n from 1 to Amount.
//
// If FrequencyMin and FrequencyMax are omitted or invalid, all values have equal weight
// when randomly chosen. Otherwise each value gets a random weight within the range, making
// some values occur more often than others.
//
// Values that should never be generated are listed in ExcludeValues.
type SetOfStrings struct {
	Amount        int      `json:"amount"`
	Prefix        string   `json:"prefix"`
	FrequencyMin  int      `json:"frequencyMin"`
	FrequencyMax  int      `json:"frequencyMax"`
	ExcludeValues []string `json:"excludeValues"`
}

type PredefinedValue struct {
	Value           string `json:"value"`
	FrequencyFactor int    `json:"frequencyFactor"`
}

func (s *Simulator) generateValues(spec SetOfStrings) (values []PredefinedValue) {
	for i := 0; i < spec.Amount; i++ {
		value := fmt.Sprintf("%s%d", spec.Prefix, i+1)
		if slices.Contains(spec.ExcludeValues, value) {
			continue
		}
		values = append(values, PredefinedValue{Value: value, FrequencyFactor: s.freqFactor(spec)})
	}
	return
}

func (s *Simulator) freqFactor(spec SetOfStrings) int {
	factor := 1
	switch {
	case spec.FrequencyMax < 1:
	case spec.FrequencyMin < 1:
	case spec.FrequencyMax <= spec.FrequencyMin:
	default:
		factor = s.randInt(spec.FrequencyMin, spec.FrequencyMax)
	}
	return factor
}

// frequencyRange maps a value to the half-open slot [Start, End) out of Max.
type frequencyRange struct {
	Start int
	End   int
	Max   int
	Value string
}

func createFrequencyRanges(values []PredefinedValue) []frequencyRange {
	var sum int
	for i := range values {
		if values[i].FrequencyFactor <= 0 {
			values[i].FrequencyFactor = 1
		}
		sum += values[i].FrequencyFactor
	}

	var (
		index  int
		ranges []frequencyRange
	)
	for _, value := range values {
		r := frequencyRange{
			Start: index,
			End:   index + value.FrequencyFactor,
			Max:   sum,
			Value: value.Value,
		}
		index = r.End
		ranges = append(ranges, r)
	}
	return ranges
}
