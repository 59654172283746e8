// Package handler 提供路径规划和地图管理的 HTTP 接口
package handler

import (
	"context"
	"fmt"
	"time"

	"route-planner/algo"
	"route-planner/model"

	"github.com/bluele/gcache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// UserStore 用户存储
type UserStore interface {
	FindUser(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
}

// MapStore 地图的持久化来源 (数据库)
type MapStore interface {
	SaveMap(ctx context.Context, points []model.Point, routes []model.Route) error
	LoadMap(ctx context.Context) ([]model.Point, []model.Route, error)
}

// Options 创建 Handler 时的可选配置
type Options struct {
	Users      UserStore // 为空时使用内存用户表
	Maps       MapStore  // 为空时不支持数据库导入导出
	PointsFile string    // 默认的点文件
	RoutesFile string    // 默认的路线文件
	JWTSecret  string
	JWTTTL     time.Duration
	CacheSize  int // 路径缓存条数, 0 表示不缓存
	CacheTTL   time.Duration
}

// Handler 持有地图和各个依赖, 方法即 gin 的处理函数
type Handler struct {
	planner    *algo.Planner
	users      UserStore
	maps       MapStore
	cache      gcache.Cache
	pointsFile string
	routesFile string
	jwtSecret  []byte
	jwtTTL     time.Duration
}

// New 创建 Handler
func New(planner *algo.Planner, opts Options) *Handler {
	h := &Handler{
		planner:    planner,
		users:      opts.Users,
		maps:       opts.Maps,
		pointsFile: opts.PointsFile,
		routesFile: opts.RoutesFile,
		jwtSecret:  []byte(opts.JWTSecret),
		jwtTTL:     opts.JWTTTL,
	}
	if h.users == nil {
		h.users = NewMemoryUsers()
	}
	if h.jwtTTL <= 0 {
		h.jwtTTL = 24 * time.Hour
	}
	if opts.CacheSize > 0 {
		b := gcache.New(opts.CacheSize).LRU()
		if opts.CacheTTL > 0 {
			b = b.Expiration(opts.CacheTTL)
		}
		h.cache = b.Build()
	}
	observeMap(planner)
	return h
}

// Users 返回使用中的用户存储
func (h *Handler) Users() UserStore { return h.users }

// search 在给定快照上执行一次路径规划, 带缓存、指标和追踪
// 缓存的键包含快照的版本, 地图替换后旧结果不会再被命中
func (h *Handler) search(ctx context.Context, snap algo.Snapshot, origin, destination model.PointID) (algo.Result, bool, error) {
	_, span := tracer().Start(ctx, "planner.FindPath")
	defer span.End()
	span.SetAttributes(
		attribute.String("route.origin", string(origin)),
		attribute.String("route.destination", string(destination)),
	)

	key := fmt.Sprintf("%d;%s;%s", snap.Version(), origin, destination)
	if h.cache != nil {
		if v, err := h.cache.Get(key); err == nil {
			searchesTotal.WithLabelValues("cache_hit").Inc()
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return v.(algo.Result), true, nil
		}
	}

	start := time.Now()
	res, err := snap.FindPath(origin, destination)
	searchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		searchesTotal.WithLabelValues("invalid").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, false, err
	}

	if res.Found() {
		searchesTotal.WithLabelValues("found").Inc()
	} else {
		searchesTotal.WithLabelValues("no_path").Inc()
	}
	closedNodes.Observe(float64(res.ClosedCount))
	span.SetAttributes(
		attribute.Float64("route.length", res.Length),
		attribute.Int("astar.open", res.OpenCount),
		attribute.Int("astar.closed", res.ClosedCount),
	)
	span.SetStatus(codes.Ok, "")

	if h.cache != nil {
		_ = h.cache.Set(key, res)
	}
	return res, false, nil
}

// invalidate 地图变化后清空缓存并更新指标
func (h *Handler) invalidate() {
	if h.cache != nil {
		h.cache.Purge()
	}
	observeMap(h.planner)
}
