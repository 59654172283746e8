package handler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"route-planner/db"
	"route-planner/model"
	"route-planner/utils"
)

// MemoryUsers 内存用户表, 未启用数据库时使用
type MemoryUsers struct {
	mu     sync.RWMutex
	users  map[string]model.User
	nextID uint
}

// NewMemoryUsers 创建空的内存用户表
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]model.User)}
}

func (m *MemoryUsers) FindUser(_ context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, db.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryUsers) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return db.ErrUserExists
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.Username] = *user
	return nil
}

// ErrNotAdmin 同名用户已存在, 但不是管理员
var ErrNotAdmin = errors.New("用户已存在但不是管理员")

// EnsureAdmin 管理员不存在时用给定密码创建, 已存在时不做修改
// 同名的普通用户 (例如自行注册的) 不会被提升为管理员, 返回 ErrNotAdmin
func EnsureAdmin(ctx context.Context, users UserStore, username, password string) error {
	u, err := users.FindUser(ctx, username)
	if err == nil {
		return checkAdmin(u)
	}
	if !errors.Is(err, db.ErrUserNotFound) {
		return err
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	err = users.CreateUser(ctx, &model.User{Username: username, Password: hash, Role: model.RoleAdmin})
	if errors.Is(err, db.ErrUserExists) {
		// 并发创建, 重新确认角色
		if u, err = users.FindUser(ctx, username); err != nil {
			return err
		}
		return checkAdmin(u)
	}
	return err
}

func checkAdmin(u *model.User) error {
	if !u.IsAdmin() {
		return fmt.Errorf("%w: %s", ErrNotAdmin, u.Username)
	}
	return nil
}
