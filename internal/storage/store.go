package storage

import (
	"context"

	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

// Store defines the storage interface
type Store interface {
	SaveCallRecord(record types.CallRecord) error
	GetCallRecords(dateKey string) ([]types.CallRecord, error)
	GetAgentCallsByDate(agentID, date string) ([]types.CallRecord, error)
	GetSupplierCallsByDate(supplierID, date string) ([]types.CallRecord, error)
	TruncateAll() error
}

// NoopStore is a no-op implementation when DynamoDB is disabled
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (s *NoopStore) SaveCallRecord(_ types.CallRecord) error                        { return nil }
func (s *NoopStore) GetCallRecords(_ string) ([]types.CallRecord, error)            { return nil, nil }
func (s *NoopStore) GetAgentCallsByDate(_, _ string) ([]types.CallRecord, error)    { return nil, nil }
func (s *NoopStore) GetSupplierCallsByDate(_, _ string) ([]types.CallRecord, error) { return nil, nil }
func (s *NoopStore) TruncateAll() error                                             { return nil }

// NewStore creates the appropriate store based on configuration
func NewStore(ctx context.Context, logger zerolog.Logger) (Store, error) {
	cfg := LoadDynamoConfig()
	logger = logger.With().Str("component", "storage").Logger()

	switch cfg.Mode {
	case DynamoModeLocal, DynamoModeAWS:
		return NewDynamoDBStore(ctx, cfg, logger)
	case DynamoModeMemory:
		logger.Info().Msg("call records kept in memory (DYNAMO_MODE=memory)")
		return NewMemoryStore(), nil
	default:
		logger.Info().Msg("DynamoDB disabled (DYNAMO_MODE=none)")
		return NewNoopStore(), nil
	}
}
