package model

// PathStep 路径中的一步: 经过 Route 到达 Point
// 第一步的 Route 未设置, Point 为起点
type PathStep struct {
	Route RouteID `json:"route,omitempty"`
	Point PointID `json:"point"`
}

// Path 从起点到终点的有序步骤, 无路径时为空
type Path []PathStep

// Points 按顺序返回经过的点
func (p Path) Points() []PointID {
	ids := make([]PointID, 0, len(p))
	for _, s := range p {
		ids = append(ids, s.Point)
	}
	return ids
}

// Routes 按顺序返回经过的路线 (不含第一步的空路线)
func (p Path) Routes() []RouteID {
	if len(p) < 2 {
		return nil
	}
	ids := make([]RouteID, 0, len(p)-1)
	for _, s := range p[1:] {
		ids = append(ids, s.Route)
	}
	return ids
}
