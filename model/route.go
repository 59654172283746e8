package model

// Route 连接两个点的一条双向路线
type Route struct {
	ID     RouteID `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name   string  `json:"name" gorm:"index"`
	End1   PointID `json:"end1" gorm:"type:varchar(64);index;not null"`
	End2   PointID `json:"end2" gorm:"type:varchar(64);index;not null"`
	Length float64 `json:"length"` // 长度 (公里)
}

// Valid 路线的 ID 已设置时有效
func (r Route) Valid() bool { return r.ID.Valid() }

// Endpoints 返回两个端点
func (r Route) Endpoints() [2]PointID { return [2]PointID{r.End1, r.End2} }

// Touches 路线是否以 p 为端点
func (r Route) Touches(p PointID) bool { return r.End1 == p || r.End2 == p }

// Other 返回 p 对面的端点; p 不是端点时返回未设置的 ID
func (r Route) Other(p PointID) PointID {
	switch p {
	case r.End1:
		return r.End2
	case r.End2:
		return r.End1
	}
	return ""
}
