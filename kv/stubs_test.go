package kv_test

import (
	"context"
	"errors"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// stubRedisClient is an in-memory stand-in for the redis.Client subset the
// store uses.
type stubRedisClient struct {
	mu    sync.Mutex
	store map[string]string

	pingErr error
	getErr  error
	incrErr error
	scanErr error
	delErr  error
}

func newStubRedisClient() *stubRedisClient {
	return &stubRedisClient{store: make(map[string]string)}
}

func (c *stubRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if c.pingErr != nil {
		cmd.SetErr(c.pingErr)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func (c *stubRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewStringCmd(ctx)
	if c.getErr != nil {
		cmd.SetErr(c.getErr)
		return cmd
	}
	v, ok := c.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (c *stubRedisClient) Set(ctx context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		c.store[key] = string(v)
	case string:
		c.store[key] = v
	}
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (c *stubRedisClient) IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if c.incrErr != nil {
		cmd.SetErr(c.incrErr)
		return cmd
	}
	current := int64(0)
	if raw, ok := c.store[key]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			cmd.SetErr(errors.New("ERR value is not an integer or out of range"))
			return cmd
		}
		current = n
	}
	next := current + value
	c.store[key] = strconv.FormatInt(next, 10)
	cmd.SetVal(next)
	return cmd
}

func (c *stubRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	if c.delErr != nil {
		cmd.SetErr(c.delErr)
		return cmd
	}
	var n int64
	for _, key := range keys {
		if _, ok := c.store[key]; ok {
			delete(c.store, key)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

// Scan returns every match in a single page.
func (c *stubRedisClient) Scan(ctx context.Context, _ uint64, match string, _ int64) *redis.ScanCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmd := redis.NewScanCmd(ctx, nil)
	if c.scanErr != nil {
		cmd.SetErr(c.scanErr)
		return cmd
	}
	var keys []string
	for key := range c.store {
		if ok, _ := path.Match(match, key); ok {
			keys = append(keys, key)
		}
	}
	cmd.SetVal(keys, 0)
	return cmd
}

type stubNATSKeyValue struct {
	mu      sync.Mutex
	rev     uint64
	entries map[string]*stubNATSKeyValueEntry

	getErr  error
	putErr  error
	listErr error
	// conflicts makes the next N Update calls fail with ErrKeyExists.
	conflicts int
}

func newStubNATSKeyValue() *stubNATSKeyValue {
	return &stubNATSKeyValue{entries: make(map[string]*stubNATSKeyValueEntry)}
}

func (s *stubNATSKeyValue) Get(key string) (nats.KeyValueEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	entry, ok := s.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}
	if entry.op != nats.KeyValuePut {
		return nil, nats.ErrKeyDeleted
	}
	cp := *entry
	cp.value = append([]byte(nil), entry.value...)
	return &cp, nil
}

func (s *stubNATSKeyValue) Put(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return 0, s.putErr
	}
	return s.putLocked(key, value), nil
}

func (s *stubNATSKeyValue) putLocked(key string, value []byte) uint64 {
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{
		key:      key,
		value:    append([]byte(nil), value...),
		revision: s.rev,
		created:  time.Now(),
		op:       nats.KeyValuePut,
	}
	return s.rev
}

func (s *stubNATSKeyValue) Create(key string, value []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[key]; ok && existing.op == nats.KeyValuePut {
		return 0, nats.ErrKeyExists
	}
	return s.putLocked(key, value), nil
}

func (s *stubNATSKeyValue) Update(key string, value []byte, last uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conflicts > 0 {
		s.conflicts--
		return 0, nats.ErrKeyExists
	}
	existing, ok := s.entries[key]
	if !ok || existing.op != nats.KeyValuePut {
		return 0, nats.ErrKeyNotFound
	}
	if existing.revision != last {
		return 0, nats.ErrKeyExists
	}
	return s.putLocked(key, value), nil
}

func (s *stubNATSKeyValue) Delete(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rev++
	s.entries[key] = &stubNATSKeyValueEntry{key: key, revision: s.rev, created: time.Now(), op: nats.KeyValueDelete}
	return nil
}

func (s *stubNATSKeyValue) Purge(key string, _ ...nats.DeleteOpt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func (s *stubNATSKeyValue) ListKeys(_ ...nats.WatchOpt) (nats.KeyLister, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var keys []string
	for key, entry := range s.entries {
		if entry.op == nats.KeyValuePut {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil, nats.ErrNoKeysFound
	}
	return newStubNATSKeyLister(keys), nil
}

type stubNATSKeyValueEntry struct {
	key      string
	value    []byte
	revision uint64
	created  time.Time
	op       nats.KeyValueOp
}

func (e *stubNATSKeyValueEntry) Bucket() string             { return "test" }
func (e *stubNATSKeyValueEntry) Key() string                { return e.key }
func (e *stubNATSKeyValueEntry) Value() []byte              { return append([]byte(nil), e.value...) }
func (e *stubNATSKeyValueEntry) Revision() uint64           { return e.revision }
func (e *stubNATSKeyValueEntry) Created() time.Time         { return e.created }
func (e *stubNATSKeyValueEntry) Delta() uint64              { return 0 }
func (e *stubNATSKeyValueEntry) Operation() nats.KeyValueOp { return e.op }

type stubNATSKeyLister struct {
	keysCh chan string
	errCh  chan error
}

func newStubNATSKeyLister(keys []string) *stubNATSKeyLister {
	keysCh := make(chan string, len(keys))
	errCh := make(chan error)
	for _, key := range keys {
		keysCh <- key
	}
	close(keysCh)
	close(errCh)
	return &stubNATSKeyLister{keysCh: keysCh, errCh: errCh}
}

func (l *stubNATSKeyLister) Keys() <-chan string { return l.keysCh }
func (l *stubNATSKeyLister) Error() <-chan error { return l.errCh }
func (l *stubNATSKeyLister) Stop() error         { return nil }

// dynStub models a single-table DynamoDB with just enough expression support
// for the store.
type dynStub struct {
	mu      sync.Mutex
	items   map[string]map[string]types.AttributeValue
	created bool
	getErr  error
}

func newDynStub() *dynStub { return &dynStub{items: map[string]map[string]types.AttributeValue{}} }

func dynKey(key map[string]types.AttributeValue) string {
	return key["k"].(*types.AttributeValueMemberS).Value
}

func (d *dynStub) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.getErr != nil {
		return nil, d.getErr
	}
	item, ok := d.items[dynKey(in.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (d *dynStub) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items[dynKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem understands only "SET #n = if_not_exists(#n, :base) + :d REMOVE #v".
func (d *dynStub) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := dynKey(in.Key)
	counterAttr := in.ExpressionAttributeNames["#n"]
	valueAttr := in.ExpressionAttributeNames["#v"]
	base, _ := strconv.ParseInt(in.ExpressionAttributeValues[":base"].(*types.AttributeValueMemberN).Value, 10, 64)
	delta, _ := strconv.ParseInt(in.ExpressionAttributeValues[":d"].(*types.AttributeValueMemberN).Value, 10, 64)

	item, ok := d.items[key]
	if !ok {
		item = map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: key}}
	}
	current := base
	if n, ok := item[counterAttr].(*types.AttributeValueMemberN); ok {
		current, _ = strconv.ParseInt(n.Value, 10, 64)
	}
	next := &types.AttributeValueMemberN{Value: strconv.FormatInt(current+delta, 10)}
	item[counterAttr] = next
	delete(item, valueAttr)
	d.items[key] = item
	return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{counterAttr: next}}, nil
}

func (d *dynStub) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.items, dynKey(in.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (d *dynStub) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, writes := range in.RequestItems {
		if len(writes) > 25 {
			return nil, errors.New("ValidationException: too many items in batch")
		}
		for _, wr := range writes {
			if dr := wr.DeleteRequest; dr != nil {
				delete(d.items, dynKey(dr.Key))
			}
		}
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

// Scan honors a begins_with filter on :p and pages two items at a time.
func (d *dynStub) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.items))
	for k := range d.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := dynKey(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last) + 1
	}
	prefix := ""
	if p, ok := in.ExpressionAttributeValues[":p"].(*types.AttributeValueMemberS); ok {
		prefix = p.Value
	}
	const pageSize = 2
	end := min(start+pageSize, len(keys))
	out := &dynamodb.ScanOutput{}
	for _, k := range keys[start:end] {
		if strings.HasPrefix(k, prefix) {
			out.Items = append(out.Items, map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: k}})
		}
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"k": &types.AttributeValueMemberS{Value: keys[end-1]}}
	}
	return out, nil
}

func (d *dynStub) CreateTable(context.Context, *dynamodb.CreateTableInput, ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.created = true
	return &dynamodb.CreateTableOutput{}, nil
}

func (d *dynStub) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.created {
		return nil, &types.ResourceNotFoundException{}
	}
	return &dynamodb.DescribeTableOutput{}, nil
}
