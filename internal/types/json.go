package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

type correlationRecord struct {
	PIDA string `json:"pid_a"`
	PIDB string `json:"pid_b"`
	CorrelationEntry
}

// MarshalJSON encodes the cache as a list of records sorted by pair so that
// identical caches always produce identical bytes.
func (c CorrelationCache) MarshalJSON() ([]byte, error) {
	records := make([]correlationRecord, 0, len(c))
	for key, entry := range c {
		records = append(records, correlationRecord{PIDA: key.A, PIDB: key.B, CorrelationEntry: entry})
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].PIDA != records[j].PIDA {
			return records[i].PIDA < records[j].PIDA
		}
		return records[i].PIDB < records[j].PIDB
	})
	return json.Marshal(records)
}

// UnmarshalJSON decodes a list of records. Team labels are swapped along with
// the pair when the record is not already in normalized order.
func (c *CorrelationCache) UnmarshalJSON(data []byte) error {
	var records []correlationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to decode correlation cache: %w", err)
	}

	cache := make(CorrelationCache, len(records))
	for _, r := range records {
		if r.PIDA == "" || r.PIDB == "" {
			return fmt.Errorf("correlation record missing pid: %q/%q", r.PIDA, r.PIDB)
		}
		entry := r.CorrelationEntry
		key := NewPairKey(r.PIDA, r.PIDB)
		if key.A != r.PIDA {
			entry.TeamAAtCalc, entry.TeamBAtCalc = entry.TeamBAtCalc, entry.TeamAAtCalc
		}
		cache[key] = entry
	}
	*c = cache
	return nil
}
