package algo

import (
	"fmt"
	"strings"
)

// FormatPoints 每行一个点: ID<TAB>名称 (纬度,经度)
func (p *Planner) FormatPoints() string {
	var b strings.Builder
	for _, pt := range p.current().pointList {
		fmt.Fprintf(&b, "%s\t%s (%g,%g)\n", pt.ID, pt.Name, pt.Lat, pt.Lng)
	}
	return b.String()
}

// FormatRoutes 每行一条路线: ID<TAB>名称<TAB>长度km [端点1,端点2]
func (p *Planner) FormatRoutes() string {
	var b strings.Builder
	for _, r := range p.current().routeList {
		fmt.Fprintf(&b, "%s\t%s\t%gkm [%s,%s]\n", r.ID, r.Name, r.Length, r.End1, r.End2)
	}
	return b.String()
}

// FormatPath 格式化路径结果为可读字符串
func (p *Planner) FormatPath(result Result) string {
	if result.OpenCount < 0 {
		return "参数无效, 未进行搜索\n"
	}

	var b strings.Builder
	if !result.Found() {
		b.WriteString("未找到路径\n")
	} else {
		g := p.current()
		fmt.Fprintf(&b, "总长度: %.2f 公里\n", result.Length)
		b.WriteString("路径:\n")
		for i, step := range result.Path {
			name := g.points[step.Point].Name
			if !step.Route.Valid() {
				fmt.Fprintf(&b, "%d. 起点 %s (%s)\n", i+1, name, step.Point)
				continue
			}
			r := g.routes[step.Route]
			fmt.Fprintf(&b, "%d. 经 %s (%s, %gkm) 到 %s (%s)\n", i+1, r.Name, step.Route, r.Length, name, step.Point)
		}
	}
	fmt.Fprintf(&b, "开放集: %d, 关闭集: %d\n", result.OpenCount, result.ClosedCount)
	return b.String()
}
