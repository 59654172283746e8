package algo

import (
	"container/heap"
	"errors"
	"fmt"
	"slices"

	"route-planner/model"
	"route-planner/utils"
)

var (
	ErrEmptyMap           = errors.New("地图为空")
	ErrUnknownOrigin      = errors.New("起点不存在")
	ErrUnknownDestination = errors.New("终点不存在")
)

// Result 路径规划结果
type Result struct {
	Length      float64    // 路径总长度 (公里), 无路径或参数无效时为负数
	Path        model.Path // 路径步骤, 无路径或参数无效时为空
	OpenCount   int        // 结束时开放集的大小, 参数无效时为负数
	ClosedCount int        // 结束时关闭集的大小, 参数无效时为负数
}

// Found 是否找到路径
func (r Result) Found() bool { return r.Length >= 0 }

func invalidResult() Result {
	return Result{Length: -1, OpenCount: -1, ClosedCount: -1}
}

// FindPath 使用 A* 算法寻找从 origin 到 destination 的最短路径
// 地图为空或起点/终点不存在时返回错误, 结果的长度和两个计数都为 -1
// 两点不连通不是错误: 长度为 -1, 路径为空, OpenCount 为 0
func (p *Planner) FindPath(origin, destination model.PointID) (Result, error) {
	return p.Snapshot().FindPath(origin, destination)
}

// FindPath 在这个版本的地图上搜索, 规则同 Planner.FindPath
func (s Snapshot) FindPath(origin, destination model.PointID) (Result, error) {
	g := s.g

	if len(g.points) == 0 {
		return invalidResult(), ErrEmptyMap
	}
	if _, ok := g.points[origin]; !ok {
		return invalidResult(), fmt.Errorf("%w: %q", ErrUnknownOrigin, origin)
	}
	dest, ok := g.points[destination]
	if !ok {
		return invalidResult(), fmt.Errorf("%w: %q", ErrUnknownDestination, destination)
	}

	search := &astar{
		g:      g,
		dest:   dest,
		inOpen: make(map[model.PointID]*searchNode),
		closed: make(map[model.PointID]*searchNode),
	}
	return search.run(origin), nil
}

// astar 一次搜索的状态
type astar struct {
	g      *graph
	dest   model.Point
	open   openQueue
	inOpen map[model.PointID]*searchNode
	closed map[model.PointID]*searchNode
	seq    uint64
}

func (s *astar) run(origin model.PointID) Result {
	s.push(origin, "", 0)

	for s.open.Len() > 0 {
		current := heap.Pop(&s.open).(*searchNode)
		delete(s.inOpen, current.point)
		s.closed[current.point] = current

		if current.point == s.dest.ID {
			return Result{
				Length:      current.g,
				Path:        s.reconstruct(current),
				OpenCount:   s.open.Len(),
				ClosedCount: len(s.closed),
			}
		}

		s.expand(current)
	}

	// 开放集为空, 终点不可达
	return Result{Length: -1, OpenCount: 0, ClosedCount: len(s.closed)}
}

// expand 遍历经过 current 的每条路线, 按需加入或更新邻居
func (s *astar) expand(current *searchNode) {
	for _, rid := range s.g.adj[current.point] {
		route := s.g.routes[rid]
		neighbor := route.Other(current.point)

		if _, done := s.closed[neighbor]; done {
			continue
		}

		g := current.g + route.Length
		if old, ok := s.inOpen[neighbor]; ok {
			if old.f() <= g+old.h {
				continue
			}
			// 找到更短的路线, 删除旧节点后重新加入
			heap.Remove(&s.open, old.index)
			delete(s.inOpen, neighbor)
		}

		s.push(neighbor, rid, g)
	}
}

func (s *astar) push(point model.PointID, route model.RouteID, g float64) {
	n := &searchNode{
		point: point,
		route: route,
		g:     g,
		h:     utils.GreatCircleDistance(s.g.points[point], s.dest),
		seq:   s.seq,
	}
	s.seq++
	heap.Push(&s.open, n)
	s.inOpen[point] = n
}

// reconstruct 从终点沿到达路线回溯到起点
// 前驱不在关闭集中说明搜索状态损坏, 直接 panic
func (s *astar) reconstruct(end *searchNode) model.Path {
	var path model.Path
	cur := end
	for cur.route.Valid() {
		route, ok := s.g.routes[cur.route]
		if !ok {
			panic(fmt.Sprintf("algo: 回溯时路线 %q 不存在", cur.route))
		}
		path = append(path, model.PathStep{Route: cur.route, Point: cur.point})

		prev, ok := s.closed[route.Other(cur.point)]
		if !ok {
			panic(fmt.Sprintf("algo: 回溯时点 %q 的前驱不在关闭集中", cur.point))
		}
		cur = prev
	}
	path = append(path, model.PathStep{Point: cur.point})

	slices.Reverse(path)
	return path
}
