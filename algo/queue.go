package algo

import "route-planner/model"

// searchNode A* 搜索中的节点, 只在一次搜索中存在
type searchNode struct {
	point model.PointID
	route model.RouteID // 到达该点经过的路线, 起点未设置
	g     float64       // 起点到该点的已知长度
	h     float64       // 该点到终点的估计长度
	seq   uint64        // 加入开放集的顺序, f 相同时先加入的先出
	index int           // 在堆中的索引, -1 表示不在堆中
}

func (n *searchNode) f() float64 { return n.g + n.h }

// openQueue 按 (f, seq) 排序的最小堆, 实现 heap.Interface 接口
type openQueue []*searchNode

func (q openQueue) Len() int { return len(q) }

func (q openQueue) Less(i, j int) bool {
	fi, fj := q[i].f(), q[j].f()
	if fi != fj {
		return fi < fj
	}
	return q[i].seq < q[j].seq
}

func (q openQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *openQueue) Push(x any) {
	n := x.(*searchNode)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *openQueue) Pop() any {
	old := *q
	last := len(old) - 1
	n := old[last]
	old[last] = nil // 避免内存泄漏
	n.index = -1
	*q = old[:last]
	return n
}
