package storage

import (
	"sort"
	"sync"

	"github.com/dennisdiepolder/callbridge/internal/types"
)

// MemoryStore keeps call records in process memory, keyed like the DynamoDB table
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]types.CallRecord // DateKey -> CallID -> record
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]map[string]types.CallRecord),
	}
}

func (s *MemoryStore) SaveCallRecord(record types.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, ok := s.records[record.DateKey]
	if !ok {
		day = make(map[string]types.CallRecord)
		s.records[record.DateKey] = day
	}
	day[record.CallID] = record
	return nil
}

func (s *MemoryStore) GetCallRecords(dateKey string) ([]types.CallRecord, error) {
	return s.query(dateKey, func(types.CallRecord) bool { return true }), nil
}

func (s *MemoryStore) GetAgentCallsByDate(agentID, date string) ([]types.CallRecord, error) {
	return s.query(date, func(r types.CallRecord) bool { return r.AgentID == agentID }), nil
}

func (s *MemoryStore) GetSupplierCallsByDate(supplierID, date string) ([]types.CallRecord, error) {
	return s.query(date, func(r types.CallRecord) bool { return r.SupplierID == supplierID }), nil
}

func (s *MemoryStore) TruncateAll() error {
	s.mu.Lock()
	s.records = make(map[string]map[string]types.CallRecord)
	s.mu.Unlock()
	return nil
}

// query returns matching records for one day, sorted by CallID like a DynamoDB range key
func (s *MemoryStore) query(dateKey string, match func(types.CallRecord) bool) []types.CallRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.CallRecord
	for _, r := range s.records[dateKey] {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CallID < out[j].CallID })
	return out
}
