package utils

import (
	"math"

	"route-planner/model"
)

// EarthRadius 地球平均半径 (公里)
const EarthRadius = 6371.0

// DegreesToRadians 角度转弧度
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// GreatCircleDistance 球面余弦定理计算两点间的大圆距离 (公里)
// 同一个点 (ID 相同) 直接返回 0, 不读取坐标
// A* 的启发函数, 要求每条路线的长度不小于两端点间的大圆距离
func GreatCircleDistance(p1, p2 model.Point) float64 {
	if p1.ID == p2.ID {
		return 0
	}
	return CoordDistance(p1.Lat, p1.Lng, p2.Lat, p2.Lng)
}

// CoordDistance 按坐标计算大圆距离 (公里), 用于查找最近点等没有 ID 的场景
func CoordDistance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := DegreesToRadians(lat1)
	phi2 := DegreesToRadians(lat2)
	dLambda := DegreesToRadians(lng1 - lng2)

	// cos(c) = sin φ1 sin φ2 + cos φ1 cos φ2 cos Δλ
	c := math.Sin(phi1)*math.Sin(phi2) + math.Cos(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	// 浮点误差可能让 c 略微超出 [-1, 1]
	c = math.Max(-1, math.Min(1, c))

	return EarthRadius * math.Acos(c)
}
