// Package cache 提供内存和磁盘双层缓存，按查询意图选择 TTL 策略
//
// 磁盘缓存分两种格式：
//   - JSON：可读性好，存放字典类数据
//   - gob：二进制格式，存放带类型的 Go 值（如 K 线序列）
//
// 文件修改时间是唯一的新鲜度依据，TTL 由调用方在读取时给出。
package cache

import (
	"bytes"
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Format 缓存存储格式
type Format int

const (
	// FormatJSON stores the value as indented JSON under json/.
	FormatJSON Format = iota
	// FormatBinary stores the value gob-encoded under gob/.
	FormatBinary
)

// TTL 策略（与原始数据语义绑定）
const (
	TTLRealtime   = 5 * time.Minute    // 实时行情
	TTLHistorical = 24 * time.Hour     // 历史/财务数据
	TTLScreening  = time.Hour          // 筛选结果
	TTLStatic     = 7 * 24 * time.Hour // 静态数据
)

// TTLForIntent maps a logical query intent to its TTL.
func TTLForIntent(intent string) time.Duration {
	switch intent {
	case "realtime", "quote", "price":
		return TTLRealtime
	case "history", "kline", "financial":
		return TTLHistorical
	case "screen", "screener", "filter":
		return TTLScreening
	default:
		return TTLStatic
	}
}

// binEnvelope wraps binary payloads so gob can round-trip interface values.
// Concrete payload types must be registered via RegisterType.
type binEnvelope struct {
	V interface{}
}

// RegisterType registers a concrete payload type for the binary format.
func RegisterType(v interface{}) {
	gob.Register(v)
}

type memEntry struct {
	value   interface{}
	written time.Time
}

// Store 双层缓存：LRU 内存层 + 磁盘层
type Store struct {
	jsonDir string
	binDir  string
	mem     *lru.Cache[string, memEntry]
	log     *zap.Logger
	now     func() time.Time
}

// NewStore creates a cache store rooted at dir with a memory tier of memSize
// entries. The json/ and gob/ subdirectories are created eagerly; if that
// fails the store still works in always-miss mode.
func NewStore(dir string, memSize int, log *zap.Logger) *Store {
	if memSize <= 0 {
		memSize = 256
	}
	mem, _ := lru.New[string, memEntry](memSize)

	s := &Store{
		jsonDir: filepath.Join(dir, "json"),
		binDir:  filepath.Join(dir, "gob"),
		mem:     mem,
		log:     log,
		now:     time.Now,
	}

	for _, d := range []string{s.jsonDir, s.binDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			log.Warn("创建缓存目录失败，降级为直读模式", zap.String("dir", d), zap.Error(err))
		}
	}
	return s
}

// DeriveKey derives a deterministic cache key from a prefix and a parameter
// record. encoding/json writes map keys in sorted order, so the key is
// invariant under field insertion order.
func DeriveKey(prefix string, params map[string]interface{}) string {
	raw, err := json.Marshal(params)
	if err != nil {
		raw = []byte(fmt.Sprintf("%v", params))
	}
	sum := md5.Sum(raw)
	return prefix + "_" + hex.EncodeToString(sum[:])[:12]
}

func (s *Store) path(key string, format Format) string {
	if format == FormatBinary {
		return filepath.Join(s.binDir, key+".gob")
	}
	return filepath.Join(s.jsonDir, key+".json")
}

func memKey(key string, format Format) string {
	if format == FormatBinary {
		return key + "|gob"
	}
	return key + "|json"
}

// Get returns the cached value for key if any entry is still fresh within
// ttl. The JSON format is checked before the binary one; corrupt or
// unreadable entries count as misses.
func (s *Store) Get(key string, ttl time.Duration) (interface{}, bool) {
	for _, format := range []Format{FormatJSON, FormatBinary} {
		if e, ok := s.mem.Get(memKey(key, format)); ok {
			if s.now().Sub(e.written) <= ttl {
				cacheHits.WithLabelValues("memory").Inc()
				return e.value, true
			}
			s.mem.Remove(memKey(key, format))
		}

		v, ok := s.getDisk(key, format, ttl)
		if ok {
			cacheHits.WithLabelValues("disk").Inc()
			return v, true
		}
	}
	cacheMisses.Inc()
	return nil, false
}

func (s *Store) getDisk(key string, format Format, ttl time.Duration) (interface{}, bool) {
	path := s.path(key, format)
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	if s.now().Sub(info.ModTime()) > ttl {
		return nil, false
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	if format == FormatBinary {
		var env binEnvelope
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
			// 损坏的缓存当作未命中
			s.log.Debug("gob 缓存解码失败", zap.String("key", key), zap.Error(err))
			return nil, false
		}
		return env.V, true
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		s.log.Debug("JSON 缓存解析失败", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return v, true
}

// Set writes value under key in the given format. Cache write failures are
// logged and swallowed: a broken cache must never abort the primary
// operation.
func (s *Store) Set(key string, value interface{}, format Format) {
	var raw []byte
	var err error
	if format == FormatBinary {
		var buf bytes.Buffer
		err = gob.NewEncoder(&buf).Encode(binEnvelope{V: value})
		raw = buf.Bytes()
	} else {
		raw, err = json.MarshalIndent(value, "", "  ")
	}
	if err != nil {
		s.log.Warn("缓存序列化失败", zap.String("key", key), zap.Error(err))
		return
	}

	if err := os.WriteFile(s.path(key, format), raw, 0o644); err != nil {
		s.log.Warn("缓存写入失败", zap.String("key", key), zap.Error(err))
		return
	}
	s.mem.Add(memKey(key, format), memEntry{value: value, written: s.now()})
}

// Delete removes both formats for key, ignoring missing files.
func (s *Store) Delete(key string) {
	for _, format := range []Format{FormatJSON, FormatBinary} {
		s.mem.Remove(memKey(key, format))
		if err := os.Remove(s.path(key, format)); err != nil && !os.IsNotExist(err) {
			s.log.Warn("缓存删除失败", zap.String("key", key), zap.Error(err))
		}
	}
}

// Clear removes all entries written more than olderThanDays ago and returns
// the number of files removed.
func (s *Store) Clear(olderThanDays int) int {
	cutoff := s.now().AddDate(0, 0, -olderThanDays)
	count := 0

	for _, dir := range []string{s.jsonDir, s.binDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
					count++
				}
			}
		}
	}

	for _, k := range s.mem.Keys() {
		if e, ok := s.mem.Peek(k); ok && e.written.Before(cutoff) {
			s.mem.Remove(k)
		}
	}
	return count
}

// Stats returns cache statistics for the stats endpoint.
func (s *Store) Stats() map[string]interface{} {
	countFiles := func(dir string) int {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return 0
		}
		n := 0
		for _, e := range entries {
			if !e.IsDir() {
				n++
			}
		}
		return n
	}
	return map[string]interface{}{
		"memory_entries": s.mem.Len(),
		"json_files":     countFiles(s.jsonDir),
		"binary_files":   countFiles(s.binDir),
	}
}
