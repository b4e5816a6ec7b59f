package bttconf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"

	"github.com/magiconair/properties"
	"go.uber.org/zap"
)

// ErrSourceNotFound 数据源不存在。
var ErrSourceNotFound = errors.New("config source not found")

// Source 是原始配置的来源 (文件、Redis 等)。
type Source interface {
	Name() string
	Load(ctx context.Context) (map[string]string, error)
}

// FSSource 从 fs.FS 中读取 properties 资源。
type FSSource struct {
	FS   fs.FS
	Path string
	name string
}

// NewFileSource 从本地文件系统读取 path。
func NewFileSource(path string) *FSSource {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dir, file := filepath.Split(abs)
	return &FSSource{
		FS:   os.DirFS(dir),
		Path: file,
		name: "file:" + abs,
	}
}

// NewFSSource 从任意 fs.FS (如 embed.FS) 读取 path。
func NewFSSource(fsys fs.FS, path string) *FSSource {
	return &FSSource{FS: fsys, Path: path, name: "fs:" + path}
}

func (s *FSSource) Name() string {
	if s.name == "" {
		return "fs:" + s.Path
	}
	return s.name
}

// Load 读取并解析 properties，句柄在所有路径上都会关闭。
func (s *FSSource) Load(ctx context.Context) (_ map[string]string, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := s.FS.Open(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s failed: %w", s.Path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s failed: %w", s.Path, cerr)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s failed: %w", s.Path, err)
	}
	return ParseProperties(data)
}

// StaticSource 固定内容的数据源。
type StaticSource map[string]string

func (s StaticSource) Name() string { return "static" }

func (s StaticSource) Load(context.Context) (map[string]string, error) {
	return maps.Clone(map[string]string(s)), nil
}

// ParseProperties 解析 properties 格式 (# / ! 注释，= : 或空白分隔，续行与转义)。
// 不展开 ${...} 引用。
func ParseProperties(data []byte) (map[string]string, error) {
	l := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := l.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse properties failed: %w", err)
	}
	return p.Map(), nil
}

// load 从数据源读取一次。数据源失败时记录日志并返回空快照；
// 只有 ctx 被取消时返回错误，此时结果应被丢弃。
func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	name := s.src.Name()
	s.logger.Info("reloading properties", zap.String("source", name))

	values, err := s.src.Load(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		s.logger.Error("load properties failed, using defaults",
			zap.String("source", name),
			zap.Error(err),
		)
		s.metrics.reloadsTotal.WithLabelValues(reloadFailure).Inc()
		values = nil
	} else {
		s.metrics.reloadsTotal.WithLabelValues(reloadSuccess).Inc()
	}

	// 复制一份，保证快照不受数据源后续修改影响
	owned := make(map[string]string, len(values))
	maps.Copy(owned, values)

	return &Snapshot{
		Hash:   ComputeHash(owned),
		Source: name,
		Values: owned,
	}, nil
}
