package storage

import (
	"context"
	"os"
	"testing"

	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

func TestLoadDynamoConfig(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		wantMode DynamoMode
	}{
		{"default", "", DynamoModeNone},
		{"local", "local", DynamoModeLocal},
		{"aws", "aws", DynamoModeAWS},
		{"memory", "memory", DynamoModeMemory},
		{"unknown falls back to none", "postgres", DynamoModeNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.mode != "" {
				os.Setenv("DYNAMO_MODE", tt.mode)
			}

			cfg := LoadDynamoConfig()
			if cfg.Mode != tt.wantMode {
				t.Errorf("expected mode %s, got %s", tt.wantMode, cfg.Mode)
			}
			if cfg.CallRecordsTable != "callbridge-call-records" {
				t.Errorf("unexpected table name %s", cfg.CallRecordsTable)
			}
		})
	}
}

func TestNewStoreSelectsImplementation(t *testing.T) {
	os.Clearenv()
	store, err := NewStore(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*NoopStore); !ok {
		t.Errorf("expected NoopStore, got %T", store)
	}

	os.Setenv("DYNAMO_MODE", "memory")
	store, err = NewStore(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Errorf("expected MemoryStore, got %T", store)
	}
}

func TestMemoryStoreQueries(t *testing.T) {
	s := NewMemoryStore()

	records := []types.CallRecord{
		{DateKey: "2026-03-01", CallID: "c2", AgentID: "a1", SupplierID: "s1"},
		{DateKey: "2026-03-01", CallID: "c1", AgentID: "a2", SupplierID: "s1"},
		{DateKey: "2026-03-01", CallID: "c3", AgentID: "a1", SupplierID: "s2"},
		{DateKey: "2026-03-02", CallID: "c4", AgentID: "a1", SupplierID: "s1"},
	}
	for _, r := range records {
		if err := s.SaveCallRecord(r); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	day, _ := s.GetCallRecords("2026-03-01")
	if len(day) != 3 || day[0].CallID != "c1" {
		t.Errorf("expected 3 records sorted by call id, got %+v", day)
	}

	agent, _ := s.GetAgentCallsByDate("a1", "2026-03-01")
	if len(agent) != 2 {
		t.Errorf("expected 2 calls for a1, got %d", len(agent))
	}

	supplier, _ := s.GetSupplierCallsByDate("s1", "2026-03-01")
	if len(supplier) != 2 {
		t.Errorf("expected 2 calls for s1, got %d", len(supplier))
	}

	// same key overwrites
	s.SaveCallRecord(types.CallRecord{DateKey: "2026-03-02", CallID: "c4", AgentID: "a9"})
	next, _ := s.GetCallRecords("2026-03-02")
	if len(next) != 1 || next[0].AgentID != "a9" {
		t.Errorf("expected overwritten record, got %+v", next)
	}

	if err := s.TruncateAll(); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	if day, _ := s.GetCallRecords("2026-03-01"); len(day) != 0 {
		t.Errorf("expected empty store after truncate, got %d", len(day))
	}
}

func TestNoopStore(t *testing.T) {
	var s Store = NewNoopStore()
	if err := s.SaveCallRecord(types.CallRecord{CallID: "x"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if records, err := s.GetCallRecords("2026-03-01"); err != nil || records != nil {
		t.Errorf("expected nil result, got %v, %v", records, err)
	}
}
