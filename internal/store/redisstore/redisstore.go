// Package redisstore keeps each record in a hash named "<table>:<id>".
// Collection membership and secondary indexes are kept in sets:
//
//	<table>                     ids of every record
//	<table>:<attribute>:<value> ids of records whose attribute equals value
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"uk.co.dudmesh.todo/internal/store"
)

type redisStore struct {
	client *redis.Client
	tables store.Tables
}

func New(ctx context.Context, url string, tables store.Tables) (*redisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewWithClient(client, tables), nil
}

func NewWithClient(client *redis.Client, tables store.Tables) *redisStore {
	if tables == nil {
		tables = store.DefaultTables()
	}
	return &redisStore{client, tables}
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func recordKey(table, id string) string {
	return table + ":" + id
}

func indexKey(table string, idx store.Index, value string) string {
	return table + ":" + idx.Attribute + ":" + value
}

func (s *redisStore) FetchOne(ctx context.Context, c store.Collection, key string, projection []string, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	log.Debugf("fetch parameters: key=%s projection=%v", recordKey(table, key), projection)

	cmds, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		readRecord(ctx, pipe, recordKey(table, key), projection)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("fetching %s: %w", c, err)
	}

	found, err := scanRecord(cmds[0], out)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", c, err)
	}
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (s *redisStore) FetchMany(ctx context.Context, c store.Collection, q store.Query, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}

	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.Elem().Kind() != reflect.Slice {
		return store.ErrInvalidDestination
	}
	slice := dst.Elem()
	elemType := slice.Type().Elem()

	setKey := table
	if !q.IsScan() {
		idx, err := store.LookupIndex(c, q.Index.Name)
		if err != nil {
			return err
		}
		setKey = indexKey(table, idx, q.Value)
	}
	log.Debugf("fetch parameters: set=%s projection=%v", setKey, q.Projection)

	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return fmt.Errorf("fetching %s: %w", c, err)
	}

	cmds, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			readRecord(ctx, pipe, recordKey(table, id), q.Projection)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("fetching %s: %w", c, err)
	}

	result := reflect.MakeSlice(slice.Type(), 0, len(cmds))
	for _, cmd := range cmds {
		elem := reflect.New(elemType)
		found, err := scanRecord(cmd, elem.Interface())
		if err != nil {
			return fmt.Errorf("fetching %s: %w", c, err)
		}
		if found {
			result = reflect.Append(result, elem.Elem())
		}
	}
	slice.Set(result)
	return nil
}

func (s *redisStore) Upsert(ctx context.Context, c store.Collection, record any) error {
	return s.put(ctx, c, record, false)
}

func (s *redisStore) Create(ctx context.Context, c store.Collection, record any) error {
	return s.put(ctx, c, record, true)
}

func (s *redisStore) put(ctx context.Context, c store.Collection, record any, ifAbsent bool) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	fields, err := fieldsOf(record)
	if err != nil {
		return err
	}
	id, _ := fields[store.KeyAttribute].(string)
	if id == "" {
		return fmt.Errorf("putting %s: missing %s", c, store.KeyAttribute)
	}
	key := recordKey(table, id)
	log.Debugf("put parameters: key=%s", key)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		if ifAbsent {
			n, err := tx.Exists(ctx, key).Result()
			if err != nil {
				return err
			}
			if n > 0 {
				return store.ErrConflict
			}
		}

		previous, err := s.indexedValues(ctx, tx, c, key)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.HSet(ctx, key, flatten(fields)...)
			pipe.SAdd(ctx, table, id)
			s.reindex(ctx, pipe, c, table, id, previous, fields)
			return nil
		})
		return err
	}, key)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		return fmt.Errorf("putting %s: %w", c, err)
	}
	return nil
}

func (s *redisStore) PartialUpdate(ctx context.Context, c store.Collection, key string, set store.Assignments, out any) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	if len(set) == 0 {
		return s.FetchOne(ctx, c, key, nil, out)
	}
	rkey := recordKey(table, key)
	log.Debugf("update parameters: key=%s fields=%v", rkey, set.Names())

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, rkey).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrNotFound
		}

		previous, err := s.indexedValues(ctx, tx, c, rkey)
		if err != nil {
			return err
		}
		next := map[string]any{}
		for name, value := range previous {
			next[name] = value
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, name := range set.Names() {
				value := set[name]
				if value == nil {
					pipe.HDel(ctx, rkey, name)
					next[name] = ""
					continue
				}
				value = normalise(reflect.ValueOf(value))
				pipe.HSet(ctx, rkey, name, value)
				next[name] = value
			}
			s.reindex(ctx, pipe, c, table, key, previous, next)
			return nil
		})
		return err
	}, rkey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return err
		}
		return fmt.Errorf("updating %s: %w", c, err)
	}

	return s.FetchOne(ctx, c, key, nil, out)
}

func (s *redisStore) Delete(ctx context.Context, c store.Collection, key string) error {
	table, err := s.tables.Name(c)
	if err != nil {
		return err
	}
	rkey := recordKey(table, key)
	log.Debugf("delete parameters: key=%s", rkey)

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		previous, err := s.indexedValues(ctx, tx, c, rkey)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, rkey)
			pipe.SRem(ctx, table, key)
			s.reindex(ctx, pipe, c, table, key, previous, nil)
			return nil
		})
		return err
	}, rkey)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", c, err)
	}
	return nil
}

// indexedValues reads the current values of the collection's indexed
// attributes.
func (s *redisStore) indexedValues(ctx context.Context, tx *redis.Tx, c store.Collection, key string) (map[string]any, error) {
	indexes := store.Indexes[c]
	values := map[string]any{}
	if len(indexes) == 0 {
		return values, nil
	}

	names := make([]string, len(indexes))
	for i, idx := range indexes {
		names[i] = idx.Attribute
	}
	current, err := tx.HMGet(ctx, key, names...).Result()
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		if v, ok := current[i].(string); ok {
			values[name] = v
		}
	}
	return values, nil
}

func (s *redisStore) reindex(ctx context.Context, pipe redis.Pipeliner, c store.Collection, table, id string, previous, next map[string]any) {
	for _, idx := range store.Indexes[c] {
		before := fmt.Sprint(valueOr(previous, idx.Attribute))
		after := fmt.Sprint(valueOr(next, idx.Attribute))
		if before == after {
			continue
		}
		if before != "" {
			pipe.SRem(ctx, indexKey(table, idx, before), id)
		}
		if after != "" {
			pipe.SAdd(ctx, indexKey(table, idx, after), id)
		}
	}
}

func valueOr(values map[string]any, name string) any {
	if v, ok := values[name]; ok && v != nil {
		return v
	}
	return ""
}

func readRecord(ctx context.Context, pipe redis.Pipeliner, key string, projection []string) {
	if len(projection) == 0 {
		pipe.HGetAll(ctx, key)
		return
	}
	pipe.HMGet(ctx, key, projection...)
}

func scanRecord(cmd redis.Cmder, out any) (bool, error) {
	switch cmd := cmd.(type) {
	case *redis.MapStringStringCmd:
		values, err := cmd.Result()
		if err != nil {
			return false, err
		}
		if len(values) == 0 {
			return false, nil
		}
		return true, cmd.Scan(out)
	case *redis.SliceCmd:
		values, err := cmd.Result()
		if err != nil {
			return false, err
		}
		found := false
		for _, v := range values {
			if v != nil {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
		return true, cmd.Scan(out)
	}
	return false, fmt.Errorf("unexpected command %s", cmd.Name())
}

// fieldsOf flattens the redis tagged fields of a record struct.
func fieldsOf(record any) (map[string]any, error) {
	v := reflect.Indirect(reflect.ValueOf(record))
	if v.Kind() != reflect.Struct {
		return nil, store.ErrInvalidDestination
	}
	t := v.Type()
	fields := make(map[string]any, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("redis"), ",")
		if name == "" || name == "-" {
			continue
		}
		fields[name] = normalise(v.Field(i))
	}
	return fields, nil
}

// normalise converts named types onto the primitives go-redis can write.
func normalise(v reflect.Value) any {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint()
	case reflect.Float32, reflect.Float64:
		return v.Float()
	}
	return fmt.Sprint(v.Interface())
}

func flatten(fields map[string]any) []any {
	args := make([]any, 0, len(fields)*2)
	for name, value := range fields {
		args = append(args, name, value)
	}
	return args
}
