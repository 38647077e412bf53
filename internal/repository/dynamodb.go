package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/helpgrid/fieldtrack/backend/internal/geo"
	"github.com/helpgrid/fieldtrack/backend/internal/tracking"
	"github.com/helpgrid/fieldtrack/backend/internal/types"
)

// DynamoDB implements tracking.Repository on AWS DynamoDB.
//
// Table layout:
//
//	agents:    pk TenantID, sk AgentID
//	history:   pk AgentKey (TenantID#AgentID), sk Timestamp (RFC3339Nano)
//	geofences: pk TenantID, sk GeofenceID
//
// Retries live here, not in the tracking core: transient DynamoDB failures
// are retried with bounded exponential backoff before an error is surfaced.
type DynamoDB struct {
	client *dynamodb.Client
	config Config
	logger zerolog.Logger
}

const maxRetryElapsed = 5 * time.Second

// NewDynamoDB creates a new DynamoDB-backed repository
func NewDynamoDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DynamoDB, error) {
	var client *dynamodb.Client

	if cfg.Mode == ModeLocal {
		// For local mode, build the client directly without LoadDefaultConfig.
		// LoadDefaultConfig probes the EC2 IMDS endpoint which hangs on EC2
		// instances when static credentials are intended.
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

	repo := &DynamoDB{
		client: client,
		config: cfg,
		logger: logger.With().Str("component", "dynamodb").Logger(),
	}

	if cfg.Mode == ModeLocal {
		if err := CreateTablesIfNotExist(ctx, client, cfg, logger); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("mode", string(cfg.Mode)).
		Str("region", cfg.Region).
		Msg("DynamoDB repository initialized")

	return repo, nil
}

// agentRecord is the persisted shape of an agent row
type agentRecord struct {
	TenantID string `dynamodbav:"TenantID"`
	AgentID  string `dynamodbav:"AgentID"`
	types.FieldAgent
}

// historyRecord is one immutable position log row
type historyRecord struct {
	AgentKey  string    `dynamodbav:"AgentKey"`
	Timestamp string    `dynamodbav:"Timestamp"`
	Lat       float64   `dynamodbav:"Lat"`
	Lng       float64   `dynamodbav:"Lng"`
	Accuracy  *float64  `dynamodbav:"Accuracy,omitempty"`
	AgentID   string    `dynamodbav:"AgentID"`
	At        time.Time `dynamodbav:"At"`
}

// geofenceRecord is a circular geofence definition row
type geofenceRecord struct {
	TenantID     string  `dynamodbav:"TenantID"`
	GeofenceID   string  `dynamodbav:"GeofenceID"`
	CenterLat    float64 `dynamodbav:"CenterLat"`
	CenterLng    float64 `dynamodbav:"CenterLng"`
	RadiusMeters float64 `dynamodbav:"RadiusMeters"`
}

func agentKey(tenantID, agentID string) string {
	return tenantID + "#" + agentID
}

// retry runs op with bounded exponential backoff, giving up on context
// cancellation or after maxRetryElapsed.
func (d *DynamoDB) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxRetryElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func (d *DynamoDB) FindAgentByID(ctx context.Context, tenantID, agentID string) (*types.FieldAgent, error) {
	var out *dynamodb.GetItemOutput
	err := d.retry(ctx, func() error {
		var err error
		out, err = d.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(d.config.AgentsTable),
			Key: map[string]dbtypes.AttributeValue{
				"TenantID": &dbtypes.AttributeValueMemberS{Value: tenantID},
				"AgentID":  &dbtypes.AttributeValueMemberS{Value: agentID},
			},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if out.Item == nil {
		return nil, tracking.ErrAgentNotFound
	}

	var record agentRecord
	if err := attributevalue.UnmarshalMap(out.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agent: %w", err)
	}
	agent := record.FieldAgent
	agent.ID = record.AgentID
	return &agent, nil
}

// PutAgent stores or replaces an agent row (provisioning path)
func (d *DynamoDB) PutAgent(ctx context.Context, tenantID string, agent types.FieldAgent) error {
	item, err := attributevalue.MarshalMap(agentRecord{
		TenantID:   tenantID,
		AgentID:    agent.ID,
		FieldAgent: agent,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal agent: %w", err)
	}

	return d.retry(ctx, func() error {
		_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(d.config.AgentsTable),
			Item:      item,
		})
		return err
	})
}

func (d *DynamoDB) UpdateAgentPosition(ctx context.Context, tenantID, agentID string, position types.AgentPosition, device types.DeviceInfo) error {
	posAttr, err := attributevalue.Marshal(position)
	if err != nil {
		return fmt.Errorf("failed to marshal position: %w", err)
	}
	devAttr, err := attributevalue.Marshal(device)
	if err != nil {
		return fmt.Errorf("failed to marshal device: %w", err)
	}

	update := expression.Set(expression.Name("Position"), expression.Value(posAttr)).
		Set(expression.Name("Device"), expression.Value(devAttr))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	return d.retry(ctx, func() error {
		_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(d.config.AgentsTable),
			Key: map[string]dbtypes.AttributeValue{
				"TenantID": &dbtypes.AttributeValueMemberS{Value: tenantID},
				"AgentID":  &dbtypes.AttributeValueMemberS{Value: agentID},
			},
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
}

func (d *DynamoDB) UpdateAgentStatus(ctx context.Context, tenantID, agentID string, status types.AgentStatus, statusSince time.Time) error {
	update := expression.Set(expression.Name("Status"), expression.Value(string(status))).
		Set(expression.Name("StatusSince"), expression.Value(statusSince.UTC().Format(time.RFC3339Nano)))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build expression: %w", err)
	}

	return d.retry(ctx, func() error {
		_, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: aws.String(d.config.AgentsTable),
			Key: map[string]dbtypes.AttributeValue{
				"TenantID": &dbtypes.AttributeValueMemberS{Value: tenantID},
				"AgentID":  &dbtypes.AttributeValueMemberS{Value: agentID},
			},
			UpdateExpression:          expr.Update(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
}

func (d *DynamoDB) AppendPositionHistory(ctx context.Context, tenantID, agentID string, point geo.Point, timestamp time.Time) error {
	item, err := attributevalue.MarshalMap(historyRecord{
		AgentKey:  agentKey(tenantID, agentID),
		Timestamp: timestamp.UTC().Format(time.RFC3339Nano),
		Lat:       point.Lat,
		Lng:       point.Lng,
		Accuracy:  point.AccuracyMeters,
		AgentID:   agentID,
		At:        timestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	// history rows are append-only: reject overwrites of an existing key
	return d.retry(ctx, func() error {
		_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(d.config.HistoryTable),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(AgentKey)"),
		})
		var cce *dbtypes.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			// same (agent, timestamp) already logged; nothing to do
			return nil
		}
		return err
	})
}

func (d *DynamoDB) CheckGeofences(ctx context.Context, tenantID, agentID string) ([]string, error) {
	agent, err := d.FindAgentByID(ctx, tenantID, agentID)
	if err != nil {
		return nil, err
	}
	if agent.Position == nil {
		return nil, nil
	}

	keyCond := expression.Key("TenantID").Equal(expression.Value(tenantID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var out *dynamodb.QueryOutput
	err = d.retry(ctx, func() error {
		var err error
		out, err = d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.config.GeofencesTable),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query geofences: %w", err)
	}

	var records []geofenceRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geofences: %w", err)
	}

	var inside []string
	for _, fence := range records {
		center := geo.Point{Lat: fence.CenterLat, Lng: fence.CenterLng}
		if geo.Distance(agent.Position.Point, center) <= fence.RadiusMeters {
			inside = append(inside, fence.GeofenceID)
		}
	}
	return inside, nil
}

func (d *DynamoDB) GetPositionHistory(ctx context.Context, tenantID, agentID string, from, to time.Time) ([]types.PositionHistoryEntry, error) {
	keyCond := expression.Key("AgentKey").Equal(expression.Value(agentKey(tenantID, agentID))).
		And(expression.Key("Timestamp").Between(
			expression.Value(from.UTC().Format(time.RFC3339Nano)),
			expression.Value(to.UTC().Format(time.RFC3339Nano)),
		))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var out *dynamodb.QueryOutput
	err = d.retry(ctx, func() error {
		var err error
		out, err = d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.config.HistoryTable),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(true), // oldest first
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query position history: %w", err)
	}

	var records []historyRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal position history: %w", err)
	}

	entries := make([]types.PositionHistoryEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, types.PositionHistoryEntry{
			AgentID:   r.AgentID,
			Point:     geo.Point{Lat: r.Lat, Lng: r.Lng, AccuracyMeters: r.Accuracy},
			Timestamp: r.At,
		})
	}
	return entries, nil
}

func (d *DynamoDB) ListAgents(ctx context.Context, tenantID string) ([]types.FieldAgent, error) {
	keyCond := expression.Key("TenantID").Equal(expression.Value(tenantID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	var out *dynamodb.QueryOutput
	err = d.retry(ctx, func() error {
		var err error
		out, err = d.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(d.config.AgentsTable),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}

	var records []agentRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agents: %w", err)
	}

	agents := make([]types.FieldAgent, 0, len(records))
	for _, r := range records {
		agent := r.FieldAgent
		agent.ID = r.AgentID
		agents = append(agents, agent)
	}
	return agents, nil
}

// New creates the repository for the configured mode
func New(ctx context.Context, logger zerolog.Logger) (tracking.Repository, error) {
	cfg := LoadConfig()

	switch cfg.Mode {
	case ModeLocal, ModeAWS:
		return NewDynamoDB(ctx, cfg, logger)
	default:
		logger.Info().Msg("using in-memory repository (REPO_MODE=memory)")
		return NewMemory(), nil
	}
}
