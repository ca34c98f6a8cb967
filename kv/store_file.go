package kv

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

const fileRecordExt = ".kv"

var fileRecordMagic = []byte("KVF1")

// fileStore keeps one file per key. The file name is a hash of the key, so the
// key itself is stored in the record header to make prefix listing possible.
type fileStore struct {
	dir string
	mu  sync.Mutex
	err error
}

func newFileStore(dir string) Store {
	if dir == "" {
		dir = defaultFileDir()
	}
	s := &fileStore{dir: dir}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.err = fmt.Errorf("create kv dir: %w", err)
	}
	return s
}

func (s *fileStore) Driver() Driver { return DriverFile }

func (s *fileStore) Ready(context.Context) error {
	if s.err != nil {
		return s.err
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("kv dir %q is not a directory", s.dir)
	}
	return nil
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	storedKey, value, err := decodeFileRecord(data)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, err
	}
	if storedKey != key {
		return nil, false, nil
	}
	return value, true, nil
}

func (s *fileStore) Set(_ context.Context, key string, value []byte) error {
	tmp, err := createTempFile(s.dir, "kv-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(encodeFileRecord(key, value)); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := renameFile(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *fileStore) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := int64(0)
	if body, ok, err := s.Get(ctx, key); err != nil {
		return 0, err
	} else if ok {
		n, err := strconv.ParseInt(string(body), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("kv key %q does not contain a numeric value", key)
		}
		current = n
	}
	next := current + delta
	if err := s.Set(ctx, key, []byte(strconv.FormatInt(next, 10))); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) DeleteMany(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *fileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileRecordExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		key, _, err := decodeFileRecord(data)
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

func (s *fileStore) Flush(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), fileRecordExt) {
			_ = os.Remove(filepath.Join(s.dir, entry.Name()))
		}
	}
	return nil
}

func (s *fileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+fileRecordExt)
}

// Record layout: magic(4) | key length(4, big endian) | key | value.
func encodeFileRecord(key string, value []byte) []byte {
	buf := make([]byte, 0, 8+len(key)+len(value))
	buf = append(buf, fileRecordMagic...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(key)))
	buf = append(buf, key...)
	return append(buf, value...)
}

func decodeFileRecord(data []byte) (string, []byte, error) {
	if len(data) < 8 || !bytes.Equal(data[:4], fileRecordMagic) {
		return "", nil, errors.New("kv: malformed file record")
	}
	n := int(binary.BigEndian.Uint32(data[4:8]))
	if len(data) < 8+n {
		return "", nil, errors.New("kv: truncated file record")
	}
	return string(data[8 : 8+n]), cloneBytes(data[8+n:]), nil
}
