package model

import (
	"errors"
	"fmt"
	"strings"
)

// FieldSeparator 地图文件中的字段分隔符, 不允许出现在 ID 中
const FieldSeparator = ";"

// ErrInvalidID ID 为空或包含分隔符
var ErrInvalidID = errors.New("无效的 ID")

// PointID 点的标识符, 空字符串表示未设置
type PointID string

// RouteID 路线的标识符, 空字符串表示未设置
type RouteID string

// ParsePointID 校验文本并返回点 ID, 校验失败时返回未设置的 ID 和错误
func ParsePointID(text string) (PointID, error) {
	if err := checkID(text); err != nil {
		return "", err
	}
	return PointID(text), nil
}

// ParseRouteID 校验文本并返回路线 ID, 校验失败时返回未设置的 ID 和错误
func ParseRouteID(text string) (RouteID, error) {
	if err := checkID(text); err != nil {
		return "", err
	}
	return RouteID(text), nil
}

// Valid 是否为已设置的 ID
func (id PointID) Valid() bool { return id != "" }

// Valid 是否为已设置的 ID
func (id RouteID) Valid() bool { return id != "" }

func (id PointID) String() string { return string(id) }

func (id RouteID) String() string { return string(id) }

func checkID(text string) error {
	if text == "" || strings.Contains(text, FieldSeparator) {
		return fmt.Errorf("%w: %q", ErrInvalidID, text)
	}
	return nil
}
