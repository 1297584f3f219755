// Package dynamostore keeps records in DynamoDB tables. Secondary lookups go
// through global secondary indexes named after store.Index.
package dynamostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/labstack/gommon/log"

	"uk.co.dudmesh.todo/internal/store"
)

// API is the subset of the DynamoDB client the store uses.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type Options struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Tables          store.Tables
}

type dynamoStore struct {
	client API
	tables store.Tables
}

func New(ctx context.Context, opts Options) (*dynamoStore, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return NewWithClient(client, opts.Tables), nil
}

func NewWithClient(client API, tables store.Tables) *dynamoStore {
	if tables == nil {
		tables = store.DefaultTables()
	}
	return &dynamoStore{client, tables}
}

func (s *dynamoStore) Close() error {
	return nil
}

func keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		store.KeyAttribute: &types.AttributeValueMemberS{Value: key},
	}
}

func projectionOf(projection []string) (expression.ProjectionBuilder, bool) {
	if len(projection) == 0 {
		return expression.ProjectionBuilder{}, false
	}
	names := make([]expression.NameBuilder, len(projection))
	for i, name := range projection {
		names[i] = expression.Name(name)
	}
	return expression.NamesList(names[0], names[1:]...), true
}

func (s *dynamoStore) FetchOne(ctx context.Context, c store.Collection, key string, projection []string, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}

	params := &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       keyOf(key),
	}
	if proj, ok := projectionOf(projection); ok {
		expr, err := expression.NewBuilder().WithProjection(proj).Build()
		if err != nil {
			return fmt.Errorf("building projection: %w", err)
		}
		params.ProjectionExpression = expr.Projection()
		params.ExpressionAttributeNames = expr.Names()
	}
	log.Debugf("fetch parameters: table=%s key=%s projection=%v", table, key, projection)

	res, err := s.client.GetItem(ctx, params)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", c, err)
	}
	if len(res.Item) == 0 {
		return store.ErrNotFound
	}

	if err := attributevalue.UnmarshalMap(res.Item, out); err != nil {
		return fmt.Errorf("unmarshalling %s: %w", c, err)
	}
	return nil
}

func (s *dynamoStore) FetchMany(ctx context.Context, c store.Collection, q store.Query, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}

	builder := expression.NewBuilder()
	hasExpr := false
	if proj, ok := projectionOf(q.Projection); ok {
		builder = builder.WithProjection(proj)
		hasExpr = true
	}

	var items []map[string]types.AttributeValue
	if q.IsScan() {
		items, err = s.scan(ctx, table, builder, hasExpr)
	} else {
		idx, lookupErr := store.LookupIndex(c, q.Index.Name)
		if lookupErr != nil {
			return lookupErr
		}
		builder = builder.WithKeyCondition(expression.Key(idx.Attribute).Equal(expression.Value(q.Value)))
		items, err = s.query(ctx, table, idx.Name, builder)
	}
	if err != nil {
		return fmt.Errorf("fetching %s: %w", c, err)
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("unmarshalling %s: %w", c, err)
	}
	return nil
}

func (s *dynamoStore) scan(ctx context.Context, table string, builder expression.Builder, hasExpr bool) ([]map[string]types.AttributeValue, error) {
	params := &dynamodb.ScanInput{TableName: aws.String(table)}
	if hasExpr {
		expr, err := builder.Build()
		if err != nil {
			return nil, fmt.Errorf("building projection: %w", err)
		}
		params.ProjectionExpression = expr.Projection()
		params.ExpressionAttributeNames = expr.Names()
	}
	log.Debugf("scan parameters: table=%s", table)

	items := []map[string]types.AttributeValue{}
	pages := dynamodb.NewScanPaginator(s.client, params)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (s *dynamoStore) query(ctx context.Context, table, index string, builder expression.Builder) ([]map[string]types.AttributeValue, error) {
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building key condition: %w", err)
	}
	params := &dynamodb.QueryInput{
		TableName:                 aws.String(table),
		IndexName:                 aws.String(index),
		KeyConditionExpression:    expr.KeyCondition(),
		ProjectionExpression:      expr.Projection(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	log.Debugf("query parameters: table=%s index=%s", table, index)

	items := []map[string]types.AttributeValue{}
	pages := dynamodb.NewQueryPaginator(s.client, params)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (s *dynamoStore) Upsert(ctx context.Context, c store.Collection, record any) error {
	params, err := s.putInput(c, record)
	if err != nil {
		return err
	}
	log.Debugf("put parameters: table=%s", aws.ToString(params.TableName))

	if _, err := s.client.PutItem(ctx, params); err != nil {
		return fmt.Errorf("putting %s: %w", c, err)
	}
	return nil
}

func (s *dynamoStore) Create(ctx context.Context, c store.Collection, record any) error {
	params, err := s.putInput(c, record)
	if err != nil {
		return err
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(store.KeyAttribute))).
		Build()
	if err != nil {
		return fmt.Errorf("building condition: %w", err)
	}
	params.ConditionExpression = expr.Condition()
	params.ExpressionAttributeNames = expr.Names()
	log.Debugf("put parameters: table=%s condition=%s", aws.ToString(params.TableName), aws.ToString(params.ConditionExpression))

	if _, err := s.client.PutItem(ctx, params); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return store.ErrConflict
		}
		return fmt.Errorf("creating %s: %w", c, err)
	}
	return nil
}

func (s *dynamoStore) putInput(c store.Collection, record any) (*dynamodb.PutItemInput, error) {
	table, err := s.tables.Name(c)
	if err != nil {
		return nil, err
	}
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", c, err)
	}
	return &dynamodb.PutItemInput{
		TableName: aws.String(table),
		Item:      item,
	}, nil
}

func (s *dynamoStore) PartialUpdate(ctx context.Context, c store.Collection, key string, set store.Assignments, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return s.FetchOne(ctx, c, key, nil, out)
	}

	var update expression.UpdateBuilder
	for _, name := range set.Names() {
		if value := set[name]; value == nil {
			// index key attributes may not hold empty strings, so clearing removes
			update = update.Remove(expression.Name(name))
		} else {
			update = update.Set(expression.Name(name), expression.Value(value))
		}
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(store.KeyAttribute))).
		Build()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}

	params := &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       keyOf(key),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	}
	log.Debugf("update parameters: table=%s key=%s update=%s", table, key, aws.ToString(params.UpdateExpression))

	res, err := s.client.UpdateItem(ctx, params)
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return store.ErrNotFound
		}
		return fmt.Errorf("updating %s: %w", c, err)
	}

	if err := attributevalue.UnmarshalMap(res.Attributes, out); err != nil {
		return fmt.Errorf("unmarshalling %s: %w", c, err)
	}
	return nil
}

func (s *dynamoStore) Delete(ctx context.Context, c store.Collection, key string) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	log.Debugf("delete parameters: table=%s key=%s", table, key)

	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(table),
		Key:       keyOf(key),
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", c, err)
	}
	return nil
}
