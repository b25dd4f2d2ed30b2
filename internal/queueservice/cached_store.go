package queueservice

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const listKey = "\x00list"

type inMemoryCache interface {
	SetDefault(k string, v any)
	Get(k string) (any, bool)
	Delete(k string)
	Flush()
}

// CachedStore 在任意快照存储前加一层读缓存，写入和删除会使对应条目失效
type CachedStore struct {
	Store           SnapshotStore
	ExpirationTime  time.Duration
	CleanupInterval time.Duration

	once  sync.Once
	cache inMemoryCache
}

var _ SnapshotStore = (*CachedStore)(nil)

// NewCachedStore 创建带缓存的快照存储
func NewCachedStore(store SnapshotStore, expiration time.Duration) *CachedStore {
	return &CachedStore{Store: store, ExpirationTime: expiration}
}

func (c *CachedStore) init() {
	c.once.Do(func() {
		const (
			defaultExpirationTime  = 30 * time.Second
			defaultCleanupInterval = time.Minute
		)

		expTime := defaultExpirationTime
		if c.ExpirationTime != 0 {
			expTime = c.ExpirationTime
		}

		cleanupInt := defaultCleanupInterval
		if c.CleanupInterval != 0 {
			cleanupInt = c.CleanupInterval
		}

		c.cache = cache.New(expTime, cleanupInt)
	})
}

func (c *CachedStore) Save(ctx context.Context, data QueueData) error {
	c.init()
	defer c.cache.Delete(listKey)

	if err := c.Store.Save(ctx, data); err != nil {
		c.cache.Delete(data.Name)
		return err
	}
	c.cache.SetDefault(data.Name, cloneQueueData(data))
	return nil
}

func (c *CachedStore) Load(ctx context.Context, name string) (QueueData, error) {
	c.init()
	if v, found := c.cache.Get(name); found {
		return cloneQueueData(v.(QueueData)), nil
	}

	data, err := c.Store.Load(ctx, name)
	if err != nil {
		return QueueData{}, err
	}

	c.cache.SetDefault(name, cloneQueueData(data))
	return data, nil
}

func (c *CachedStore) Delete(ctx context.Context, name string) error {
	c.init()
	defer c.cache.Delete(listKey)
	defer c.cache.Delete(name)

	return c.Store.Delete(ctx, name)
}

func (c *CachedStore) List(ctx context.Context) ([]string, error) {
	c.init()
	if v, found := c.cache.Get(listKey); found {
		return slices.Clone(v.([]string)), nil
	}

	names, err := c.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(listKey, slices.Clone(names))
	return names, nil
}

func (c *CachedStore) Close() error {
	c.init()
	c.cache.Flush()
	return c.Store.Close()
}

// cloneQueueData 复制元素切片，调用方修改结果不会影响缓存
func cloneQueueData(data QueueData) QueueData {
	data.Items = slices.Clone(data.Items)
	return data
}
