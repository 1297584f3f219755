package server

import (
	"context"
	"fmt"

	"uk.co.dudmesh.todo/internal/boot"
	"uk.co.dudmesh.todo/internal/store"
	"uk.co.dudmesh.todo/internal/store/dynamostore"
	"uk.co.dudmesh.todo/internal/store/redisstore"
	"uk.co.dudmesh.todo/internal/store/sqlstore"
)

// OpenStore connects to the backend named by the configured driver.
func OpenStore(ctx context.Context, config *boot.Config) (store.Store, error) {
	switch config.Store.Driver {
	case boot.StoreSQLite, boot.StorePostgres:
		driver := sqlstore.DriverSQLite
		if config.Store.Driver == boot.StorePostgres {
			driver = sqlstore.DriverPostgres
		}
		s, err := sqlstore.New(ctx, driver, config.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case boot.StoreDynamoDB:
		s, err := dynamostore.New(ctx, dynamostore.Options{
			Region:          config.AWS.Region,
			Endpoint:        config.AWS.Endpoint,
			AccessKeyID:     config.AWS.AccessKeyID,
			SecretAccessKey: config.AWS.SecretAccessKey,
			Tables:          config.Tables(),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case boot.StoreRedis:
		s, err := redisstore.New(ctx, config.Store.RedisURL, config.Tables())
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported store driver: %q", config.Store.Driver)
}
