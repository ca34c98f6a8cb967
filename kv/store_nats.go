package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Create(key string, value []byte) (uint64, error)
	Update(key string, value []byte, last uint64) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
	ListKeys(opts ...nats.WatchOpt) (nats.KeyLister, error)
}

const natsIncrementAttempts = 16

var errNATSKeyValueMissing = errors.New("nats kv bucket unavailable")

type natsStore struct {
	kv     NATSKeyValue
	prefix string
}

func newNATSStore(kv NATSKeyValue, prefix string) Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &natsStore{kv: kv, prefix: prefix}
}

// dialNATSKeyValue connects to url and binds (or creates) bucket.
func dialNATSKeyValue(url, bucket string) (nats.KeyValue, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bind nats bucket %q: %w", bucket, err)
	}
	return kv, nil
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Ready(context.Context) error {
	if s.kv == nil {
		return errNATSKeyValueMissing
	}
	return nil
}

func (s *natsStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if s.kv == nil {
		return nil, false, errNATSKeyValueMissing
	}
	entry, err := s.kv.Get(s.scopedKey(key))
	if isNATSMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if isNATSTombstone(entry) {
		return nil, false, nil
	}
	return cloneBytes(entry.Value()), true, nil
}

func (s *natsStore) Set(_ context.Context, key string, value []byte) error {
	if s.kv == nil {
		return errNATSKeyValueMissing
	}
	_, err := s.kv.Put(s.scopedKey(key), cloneBytes(value))
	return err
}

// Increment retries optimistic revision updates until one wins.
func (s *natsStore) Increment(_ context.Context, key string, delta int64) (int64, error) {
	if s.kv == nil {
		return 0, errNATSKeyValueMissing
	}
	scoped := s.scopedKey(key)
	for attempt := 0; attempt < natsIncrementAttempts; attempt++ {
		var (
			current  int64
			revision uint64
		)
		entry, err := s.kv.Get(scoped)
		if err != nil && !isNATSMiss(err) {
			return 0, err
		}
		if err == nil && !isNATSTombstone(entry) {
			revision = entry.Revision()
			if raw := entry.Value(); len(raw) > 0 {
				parsed, parseErr := strconv.ParseInt(string(raw), 10, 64)
				if parseErr != nil {
					return 0, fmt.Errorf("kv key %q does not contain a numeric value", key)
				}
				current = parsed
			}
		}

		next := current + delta
		body := []byte(strconv.FormatInt(next, 10))
		if revision == 0 {
			_, err = s.kv.Create(scoped, body)
		} else {
			_, err = s.kv.Update(scoped, body, revision)
		}
		if err == nil {
			return next, nil
		}
		if errors.Is(err, nats.ErrKeyExists) || isNATSMiss(err) {
			continue
		}
		return 0, err
	}
	return 0, errors.New("nats increment exceeded retry limit")
}

func (s *natsStore) Delete(_ context.Context, key string) error {
	if s.kv == nil {
		return errNATSKeyValueMissing
	}
	err := s.kv.Delete(s.scopedKey(key))
	if isNATSMiss(err) {
		return nil
	}
	return err
}

func (s *natsStore) DeleteMany(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *natsStore) Keys(_ context.Context, prefix string) ([]string, error) {
	scoped, err := s.listScoped()
	if err != nil {
		return nil, err
	}
	scope := s.scopePrefix()
	var keys []string
	for _, raw := range scoped {
		key, err := decodeNATSKeyPart(strings.TrimPrefix(raw, scope))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *natsStore) Flush(context.Context) error {
	scoped, err := s.listScoped()
	if err != nil {
		return err
	}
	for _, key := range scoped {
		if err := s.kv.Purge(key); err != nil && !isNATSMiss(err) {
			return err
		}
	}
	return nil
}

func (s *natsStore) listScoped() ([]string, error) {
	if s.kv == nil {
		return nil, errNATSKeyValueMissing
	}
	lister, err := s.kv.ListKeys(nats.IgnoreDeletes())
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = lister.Stop() }()

	scope := s.scopePrefix()
	var out []string
	for key := range lister.Keys() {
		if strings.HasPrefix(key, scope) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *natsStore) scopedKey(key string) string {
	return s.scopePrefix() + encodeNATSKeyPart(key)
}

func (s *natsStore) scopePrefix() string {
	return "p." + encodeNATSKeyPart(s.prefix) + ".k."
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}

func isNATSTombstone(entry nats.KeyValueEntry) bool {
	op := entry.Operation()
	return op == nats.KeyValueDelete || op == nats.KeyValuePurge
}

// NATS subjects only allow a narrow character set, so key parts are base64url.
func encodeNATSKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}

func decodeNATSKeyPart(part string) (string, error) {
	if part == "_" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(part)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
