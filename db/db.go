// Package db 把地图 (点和路线) 和用户保存在 PostgreSQL 中
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"route-planner/config"
	"route-planner/model"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrUserExists 用户名已被占用
var ErrUserExists = errors.New("用户名已存在")

// ErrUserNotFound 用户不存在
var ErrUserNotFound = errors.New("用户不存在")

// Store 基于 gorm 的存储
type Store struct {
	db *gorm.DB
}

// Open 连接数据库并迁移表结构
// 带重试 (Docker 启动时数据库可能还没准备好)
func Open(ctx context.Context, cfg config.DBConfig) (*Store, error) {
	dialector := postgres.New(postgres.Config{
		DriverName: "postgres", // 使用 lib/pq 注册的驱动
		DSN:        cfg.DSN(),
	})

	var (
		gdb *gorm.DB
		err error
	)
	retries := max(cfg.MaxRetries, 1)
	for i := 0; i < retries; i++ {
		gdb, err = gorm.Open(dialector, &gorm.Config{})
		if err == nil {
			break
		}
		log.Printf("等待数据库就绪... (%d/%d): %v", i+1, retries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(cfg.RetryWait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	s := New(gdb)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	log.Println("数据库连接并初始化成功！")
	return s, nil
}

// New 使用已有的连接
func New(gdb *gorm.DB) *Store {
	return &Store{db: gdb}
}

// Migrate 自动迁移模式 (自动创建表结构)
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&model.User{}, &model.Point{}, &model.Route{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// SaveMap 在一个事务中用给定的点和路线替换数据库中的地图
func (s *Store) SaveMap(ctx context.Context, points []model.Point, routes []model.Route) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Route{}).Error; err != nil {
			return fmt.Errorf("删除旧路线失败: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&model.Point{}).Error; err != nil {
			return fmt.Errorf("删除旧点失败: %w", err)
		}

		// 批量插入
		if len(points) > 0 {
			if err := tx.CreateInBatches(points, 100).Error; err != nil {
				return fmt.Errorf("插入点失败: %w", err)
			}
		}
		if len(routes) > 0 {
			if err := tx.CreateInBatches(routes, 100).Error; err != nil {
				return fmt.Errorf("插入路线失败: %w", err)
			}
		}
		log.Printf("导入了 %d 个点, %d 条路线", len(points), len(routes))
		return nil
	})
}

// LoadMap 读取数据库中的全部点和路线, 按 ID 排序
func (s *Store) LoadMap(ctx context.Context) ([]model.Point, []model.Route, error) {
	var points []model.Point
	if err := s.db.WithContext(ctx).Order("id").Find(&points).Error; err != nil {
		return nil, nil, fmt.Errorf("读取点失败: %w", err)
	}
	var routes []model.Route
	if err := s.db.WithContext(ctx).Order("id").Find(&routes).Error; err != nil {
		return nil, nil, fmt.Errorf("读取路线失败: %w", err)
	}
	return points, routes, nil
}

// FindUser 按用户名查找用户
func (s *Store) FindUser(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &user, nil
}

// CreateUser 创建用户, 用户名重复时返回 ErrUserExists
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	err := s.db.WithContext(ctx).Create(user).Error
	if isUniqueViolation(err) {
		return ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("创建用户失败: %w", err)
	}
	return nil
}

// isUniqueViolation 判断是否违反唯一约束 (PostgreSQL 错误码 23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
