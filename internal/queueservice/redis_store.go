package queueservice

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/zeebo/errs"
)

// RedisConfig 定义 Redis 快照存储的配置
type RedisConfig struct {
	// 连接设置
	Addr     string
	Username string
	Password string
	DB       int

	// 键前缀
	Prefix string

	// 超时设置
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig 返回默认的 Redis 配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Prefix:       "boundq:",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisStore 将快照保存在 Redis 中，每个队列一个键，另有一个索引集合
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ SnapshotStore = (*RedisStore)(nil)

// NewRedisStore 连接 Redis 并验证连接
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Username:     config.Username,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	pingCtx := ctx
	if config.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errs.New("could not reach redis at %s: %w", config.Addr, err)
	}

	return NewRedisStoreWithClient(client, config.Prefix), nil
}

// NewRedisStoreWithClient 使用已有的客户端创建存储
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + "queue:" + name
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "queues"
}

// Save 在同一个事务中写入快照和索引
func (s *RedisStore) Save(ctx context.Context, data QueueData) error {
	if err := validateName(data.Name); err != nil {
		return err
	}

	raw, err := SerializeQueueData(data)
	if err != nil {
		return errs.New("could not encode snapshot %q: %w", data.Name, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(data.Name), raw, 0)
		pipe.SAdd(ctx, s.indexKey(), data.Name)
		return nil
	})
	return errs.Wrap(err)
}

// Load 读取指定名称的快照
func (s *RedisStore) Load(ctx context.Context, name string) (QueueData, error) {
	if err := validateName(name); err != nil {
		return QueueData{}, err
	}

	raw, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return QueueData{}, errs.New("%w: %s", ErrSnapshotNotFound, name)
	}
	if err != nil {
		return QueueData{}, errs.Wrap(err)
	}

	data, err := DeserializeQueueData(raw)
	if err != nil {
		return QueueData{}, errs.New("could not decode snapshot %q: %w", name, err)
	}
	return data, nil
}

// Delete 删除快照并从索引中移除
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.key(name))
		pipe.SRem(ctx, s.indexKey(), name)
		return nil
	})
	if err != nil {
		return errs.Wrap(err)
	}
	if del.Val() == 0 {
		return errs.New("%w: %s", ErrSnapshotNotFound, name)
	}
	return nil
}

// List 按名称顺序列出所有快照
func (s *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, errs.Wrap(err)
	}
	sort.Strings(names)
	return names, nil
}

// Close 关闭 Redis 客户端
func (s *RedisStore) Close() error {
	return errs.Wrap(s.client.Close())
}
