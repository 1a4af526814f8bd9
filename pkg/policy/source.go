package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Source is the read-only contract against the external policy store: fetch
// the current version and content. This subsystem never writes policy.
type Source interface {
	Fetch(ctx context.Context) (*ContentPolicy, error)
}

// FileSource reads a policy snapshot from a YAML or JSON document on disk.
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (f *FileSource) Fetch(_ context.Context) (*ContentPolicy, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	ext := strings.TrimPrefix(filepath.Ext(f.path), ".")
	if ext != "" {
		v.SetConfigType(ext)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", f.path, err)
	}

	var p ContentPolicy
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &p,
		DecodeHook: mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return nil, fmt.Errorf("build policy decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode policy document: %w", err)
	}
	if p.UpdatedAt.IsZero() {
		if info, err := os.Stat(f.path); err == nil {
			p.UpdatedAt = info.ModTime()
		}
	}
	return &p, nil
}

const (
	redisPolicyKey = "replyguard:policy:current"
)

// RedisSource reads a JSON policy document from a single redis key.
type RedisSource struct {
	client *redis.Client
	key    string
}

func NewRedisSource(client *redis.Client, key string) *RedisSource {
	if key == "" {
		key = redisPolicyKey
	}
	return &RedisSource{client: client, key: key}
}

func (r *RedisSource) Fetch(ctx context.Context) (*ContentPolicy, error) {
	raw, err := r.client.Get(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch policy from redis key %s: %w", r.key, err)
	}
	var p ContentPolicy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("unmarshal policy document: %w", err)
	}
	return &p, nil
}
