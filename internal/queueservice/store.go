package queueservice

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/errs"
)

// ErrSnapshotNotFound 表示快照不存在
var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotStore 定义队列快照的持久化接口
type SnapshotStore interface {
	// Save 保存快照，同名快照会被覆盖
	Save(ctx context.Context, data QueueData) error

	// Load 读取指定名称的快照
	Load(ctx context.Context, name string) (QueueData, error)

	// Delete 删除指定名称的快照
	Delete(ctx context.Context, name string) error

	// List 按名称顺序列出所有快照
	List(ctx context.Context) ([]string, error)

	// Close 释放存储持有的资源
	Close() error
}

const snapshotExt = ".json"

// FileStore 将每个队列快照保存为目录中的一个 JSON 文件
type FileStore struct {
	dir string
}

var _ SnapshotStore = (*FileStore)(nil)

// NewFileStore 创建文件快照存储，目录不存在时自动创建
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errs.New("snapshot directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.New("could not create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir 返回快照目录
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+snapshotExt)
}

// Save 先写入临时文件再重命名，读取方不会看到写了一半的快照
func (s *FileStore) Save(ctx context.Context, data QueueData) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err)
	}
	if err := validateName(data.Name); err != nil {
		return err
	}

	raw, err := SerializeQueueData(data)
	if err != nil {
		return errs.New("could not encode snapshot %q: %w", data.Name, err)
	}

	tmp, err := os.CreateTemp(s.dir, data.Name+".*.tmp")
	if err != nil {
		return errs.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return errs.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(err)
	}

	return errs.Wrap(os.Rename(tmp.Name(), s.path(data.Name)))
}

// Load 读取指定名称的快照
func (s *FileStore) Load(ctx context.Context, name string) (QueueData, error) {
	if err := ctx.Err(); err != nil {
		return QueueData{}, errs.Wrap(err)
	}
	if err := validateName(name); err != nil {
		return QueueData{}, err
	}

	raw, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
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

// Delete 删除指定名称的快照
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err)
	}
	if err := validateName(name); err != nil {
		return err
	}

	err := os.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return errs.New("%w: %s", ErrSnapshotNotFound, name)
	}
	return errs.Wrap(err)
}

// List 按名称顺序列出所有快照
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err)
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errs.Wrap(err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), snapshotExt))
	}
	sort.Strings(names)
	return names, nil
}

// Close 文件存储没有需要释放的资源
func (s *FileStore) Close() error {
	return nil
}

// SaveQueue 复制服务中的队列并写入存储
func SaveQueue(ctx context.Context, svc Service, store SnapshotStore, name string) (QueueData, error) {
	data, err := svc.Export(ctx, name)
	if err != nil {
		return QueueData{}, err
	}
	if err := store.Save(ctx, data); err != nil {
		return QueueData{}, err
	}
	return data, nil
}

// LoadQueue 从存储读取快照并导入服务
func LoadQueue(ctx context.Context, svc Service, store SnapshotStore, name string) (QueueData, error) {
	data, err := store.Load(ctx, name)
	if err != nil {
		return QueueData{}, err
	}
	if err := svc.Import(data); err != nil {
		return QueueData{}, err
	}
	return data, nil
}
