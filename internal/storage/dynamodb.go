package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/dennisdiepolder/callbridge/internal/types"
	"github.com/rs/zerolog"
)

// opTimeout bounds every single DynamoDB call made by the store
const opTimeout = 10 * time.Second

// batchWriteLimit is DynamoDB's maximum number of requests per BatchWriteItem
const batchWriteLimit = 25

// DynamoDBStore implements Store using AWS DynamoDB
type DynamoDBStore struct {
	client *dynamodb.Client
	config DynamoConfig
	logger zerolog.Logger
}

// NewDynamoDBStore creates a new DynamoDB store
func NewDynamoDBStore(ctx context.Context, cfg DynamoConfig, logger zerolog.Logger) (*DynamoDBStore, error) {
	var client *dynamodb.Client

	if cfg.Mode == DynamoModeLocal {
		// Static credentials against DynamoDB Local; LoadDefaultConfig would
		// probe IMDS and stall outside AWS.
		client = dynamodb.New(dynamodb.Options{
			Region:       cfg.Region,
			BaseEndpoint: aws.String(cfg.Endpoint),
			Credentials:  credentials.NewStaticCredentialsProvider("local", "local", ""),
		})
	} else {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = dynamodb.NewFromConfig(awsCfg)
	}

	if cfg.Mode == DynamoModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Str("table", cfg.CallRecordsTable).
		Msg("DynamoDB store initialized")

	return &DynamoDBStore{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// SaveCallRecord writes one finished call. Records are keyed by day and call
// ID, so saving the same call twice overwrites it.
func (s *DynamoDBStore) SaveCallRecord(record types.CallRecord) error {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.CallRecordsTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save call record %s: %w", record.CallID, err)
	}
	return nil
}

// GetCallRecords returns every call of one day
func (s *DynamoDBStore) GetCallRecords(dateKey string) ([]types.CallRecord, error) {
	keyCond := expression.Key("DateKey").Equal(expression.Value(dateKey))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	return s.queryAll(&dynamodb.QueryInput{
		TableName:                 aws.String(s.config.CallRecordsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// GetAgentCallsByDate returns the calls one agent handled on one day
func (s *DynamoDBStore) GetAgentCallsByDate(agentID, date string) ([]types.CallRecord, error) {
	return s.queryDayWhere(date, "AgentID", agentID)
}

// GetSupplierCallsByDate returns the requests one supplier made on one day
func (s *DynamoDBStore) GetSupplierCallsByDate(supplierID, date string) ([]types.CallRecord, error) {
	return s.queryDayWhere(date, "SupplierID", supplierID)
}

// queryDayWhere queries one day's partition, filtered on a non-key attribute
func (s *DynamoDBStore) queryDayWhere(date, attr, value string) ([]types.CallRecord, error) {
	keyCond := expression.Key("DateKey").Equal(expression.Value(date))
	filter := expression.Name(attr).Equal(expression.Value(value))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	return s.queryAll(&dynamodb.QueryInput{
		TableName:                 aws.String(s.config.CallRecordsTable),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// queryAll follows the query across result pages
func (s *DynamoDBStore) queryAll(input *dynamodb.QueryInput) ([]types.CallRecord, error) {
	records := make([]types.CallRecord, 0)
	paginator := dynamodb.NewQueryPaginator(s.client, input)

	for paginator.HasMorePages() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		page, err := paginator.NextPage(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("failed to query call records: %w", err)
		}

		var batch []types.CallRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("failed to unmarshal call records: %w", err)
		}
		records = append(records, batch...)
	}
	return records, nil
}

// TruncateAll deletes all call records (scan + batch delete)
func (s *DynamoDBStore) TruncateAll() error {
	for _, table := range tablesFor(s.config) {
		if err := s.truncateTable(table); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table.name, err)
		}
	}
	return nil
}

func (s *DynamoDBStore) truncateTable(table tableKeys) error {
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:            aws.String(table.name),
		ProjectionExpression: aws.String("#pk, #sk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": table.pk,
			"#sk": table.sk,
		},
		Limit: aws.Int32(500),
	})

	deleted := 0
	for paginator.HasMorePages() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		page, err := paginator.NextPage(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		for start := 0; start < len(page.Items); start += batchWriteLimit {
			end := min(start+batchWriteLimit, len(page.Items))

			requests := make([]dbtypes.WriteRequest, 0, end-start)
			for _, item := range page.Items[start:end] {
				requests = append(requests, dbtypes.WriteRequest{
					DeleteRequest: &dbtypes.DeleteRequest{
						Key: map[string]dbtypes.AttributeValue{
							table.pk: item[table.pk],
							table.sk: item[table.sk],
						},
					},
				})
			}

			if err := s.batchDelete(table.name, requests); err != nil {
				return err
			}
			deleted += len(requests)
		}
	}

	s.logger.Info().Str("table", table.name).Int("deleted", deleted).Msg("table truncated")
	return nil
}

// batchDelete writes one batch, resubmitting unprocessed items
func (s *DynamoDBStore) batchDelete(tableName string, requests []dbtypes.WriteRequest) error {
	pending := map[string][]dbtypes.WriteRequest{tableName: requests}

	for attempt := 0; len(pending[tableName]) > 0; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		if attempt == 5 {
			return fmt.Errorf("batch delete: %d items left unprocessed", len(pending[tableName]))
		}

		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		cancel()
		if err != nil {
			return fmt.Errorf("batch delete: %w", err)
		}
		pending = out.UnprocessedItems
	}
	return nil
}
