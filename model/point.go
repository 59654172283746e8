package model

// Point 地图上的一个点 (城市、路口、地标)
type Point struct {
	ID   PointID `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Name string  `json:"name" gorm:"index"`
	Lat  float64 `json:"lat"` // 纬度 (度)
	Lng  float64 `json:"lng"` // 经度 (度)
}

// Valid 点的 ID 已设置时有效
func (p Point) Valid() bool { return p.ID.Valid() }
