// Package algo 保存地图 (点和路线) 并用 A* 算法计算最短路径
package algo

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"route-planner/loader"
	"route-planner/model"
	"route-planner/utils"
)

var (
	ErrInvalidPoint   = errors.New("点的 ID 无效")
	ErrInvalidRoute   = errors.New("路线的 ID 无效")
	ErrDuplicatePoint = errors.New("点 ID 重复")
	ErrDuplicateRoute = errors.New("路线 ID 重复")
	ErrDanglingRoute  = errors.New("路线的端点不存在")
)

// graph 一次加载得到的地图, 创建后不再修改
type graph struct {
	points    map[model.PointID]model.Point
	routes    map[model.RouteID]model.Route
	adj       map[model.PointID][]model.RouteID // 邻接表 (点 ID -> 经过该点的路线)
	pointList []model.Point                     // 按文件顺序
	routeList []model.Route                     // 按文件顺序
	version   uint64                            // 每次替换或清空后递增
}

func emptyGraph() *graph {
	return &graph{
		points: make(map[model.PointID]model.Point),
		routes: make(map[model.RouteID]model.Route),
		adj:    make(map[model.PointID][]model.RouteID),
	}
}

// buildGraph 校验并建立索引, 出错时不返回任何数据
func buildGraph(points []model.Point, routes []model.Route) (*graph, error) {
	g := &graph{
		points:    make(map[model.PointID]model.Point, len(points)),
		routes:    make(map[model.RouteID]model.Route, len(routes)),
		adj:       make(map[model.PointID][]model.RouteID, len(points)),
		pointList: make([]model.Point, 0, len(points)),
		routeList: make([]model.Route, 0, len(routes)),
	}

	for _, p := range points {
		if !p.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPoint, p.Name)
		}
		if _, dup := g.points[p.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePoint, p.ID)
		}
		g.points[p.ID] = p
		g.pointList = append(g.pointList, p)
	}

	for _, r := range routes {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRoute, r.Name)
		}
		if _, dup := g.routes[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoute, r.ID)
		}
		for _, end := range r.Endpoints() {
			if _, ok := g.points[end]; !ok {
				return nil, fmt.Errorf("%w: 路线 %s 的端点 %q", ErrDanglingRoute, r.ID, end)
			}
		}
		g.routes[r.ID] = r
		g.routeList = append(g.routeList, r)

		g.adj[r.End1] = append(g.adj[r.End1], r.ID)
		if r.End2 != r.End1 {
			g.adj[r.End2] = append(g.adj[r.End2], r.ID)
		}
	}

	return g, nil
}

// Planner 地图存储和路径规划器, 可以被多个 goroutine 同时使用
// 查询和搜索只读取当前地图; Load/Replace/Clear 整体替换地图
type Planner struct {
	mu      sync.RWMutex
	g       *graph
	version uint64
}

// NewPlanner 创建一个空的规划器
func NewPlanner() *Planner {
	return &Planner{g: emptyGraph()}
}

// current 返回当前地图; 地图创建后不可变, 调用方无需持锁
func (p *Planner) current() *graph {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.g
}

// Load 从点文件和路线文件加载地图
// 失败时返回 *loader.LoadError, 原有地图保持不变
func (p *Planner) Load(pointsPath, routesPath string) error {
	points, routes, err := loader.LoadFiles(pointsPath, routesPath)
	if err != nil {
		return err
	}
	return p.Replace(points, routes)
}

// Replace 用给定的点和路线整体替换地图
// 数据不满足唯一性或端点不存在时返回错误, 原有地图保持不变
func (p *Planner) Replace(points []model.Point, routes []model.Route) error {
	g, err := buildGraph(points, routes)
	if err != nil {
		return err
	}

	p.install(g)
	return nil
}

func (p *Planner) install(g *graph) {
	p.mu.Lock()
	p.version++
	g.version = p.version
	p.g = g
	p.mu.Unlock()
}

// Clear 清空地图
func (p *Planner) Clear() {
	p.install(emptyGraph())
}

// Snapshot 某一版本的地图, 之后的 Load/Replace/Clear 不会影响它
// 同一次请求中的搜索和查询应使用同一个 Snapshot
type Snapshot struct {
	g *graph
}

// Snapshot 返回当前地图
func (p *Planner) Snapshot() Snapshot {
	return Snapshot{g: p.current()}
}

// Version 快照对应的地图版本
func (s Snapshot) Version() uint64 { return s.g.version }

// IsEmpty 快照中没有任何点时为 true
func (s Snapshot) IsEmpty() bool { return len(s.g.points) == 0 }

// Point 在快照中按 ID 查找点
func (s Snapshot) Point(id model.PointID) (model.Point, bool) {
	pt, ok := s.g.points[id]
	return pt, ok
}

// Route 在快照中按 ID 查找路线
func (s Snapshot) Route(id model.RouteID) (model.Route, bool) {
	r, ok := s.g.routes[id]
	return r, ok
}

// Version 当前地图的版本号, 每次 Load/Replace/Clear 成功后改变
func (p *Planner) Version() uint64 {
	return p.current().version
}

// IsEmpty 没有任何点时为 true
func (p *Planner) IsEmpty() bool {
	return len(p.current().points) == 0
}

// Point 按 ID 查找点
func (p *Planner) Point(id model.PointID) (model.Point, bool) {
	pt, ok := p.current().points[id]
	return pt, ok
}

// Route 按 ID 查找路线
func (p *Planner) Route(id model.RouteID) (model.Route, bool) {
	r, ok := p.current().routes[id]
	return r, ok
}

// Points 按加载顺序返回所有点
func (p *Planner) Points() []model.Point {
	return append([]model.Point(nil), p.current().pointList...)
}

// Routes 按加载顺序返回所有路线
func (p *Planner) Routes() []model.Route {
	return append([]model.Route(nil), p.current().routeList...)
}

func (p *Planner) PointCount() int { return len(p.current().points) }

func (p *Planner) RouteCount() int { return len(p.current().routes) }

// IncidentRoutes 返回以 id 为端点的路线, 按加载顺序
func (p *Planner) IncidentRoutes(id model.PointID) []model.Route {
	g := p.current()
	ids := g.adj[id]
	routes := make([]model.Route, 0, len(ids))
	for _, rid := range ids {
		routes = append(routes, g.routes[rid])
	}
	return routes
}

// FindNearestPoint 找到离给定坐标最近的点, 地图为空时返回 false
func (p *Planner) FindNearestPoint(lat, lng float64) (model.Point, bool) {
	return p.Snapshot().FindNearestPoint(lat, lng)
}

// FindNearestPoint 在快照中找到离给定坐标最近的点
func (s Snapshot) FindNearestPoint(lat, lng float64) (model.Point, bool) {
	var nearest model.Point
	minDist := -1.0

	for _, pt := range s.g.pointList {
		dist := utils.CoordDistance(lat, lng, pt.Lat, pt.Lng)
		if minDist < 0 || dist < minDist {
			minDist = dist
			nearest = pt
		}
	}

	return nearest, minDist >= 0
}

// SearchPoints 按 ID 或名称搜索点 (不区分大小写的子串匹配)
func (p *Planner) SearchPoints(query string) []model.Point {
	q := strings.ToLower(strings.TrimSpace(query))
	var result []model.Point
	for _, pt := range p.current().pointList {
		if q == "" ||
			strings.Contains(strings.ToLower(string(pt.ID)), q) ||
			strings.Contains(strings.ToLower(pt.Name), q) {
			result = append(result, pt)
		}
	}
	return result
}
