package loader

import (
	"errors"
	"fmt"
)

// Code 加载失败的具体原因, 每个字段各有一个
type Code int

const (
	CodeOpen            Code = iota + 1 // 无法打开文件
	CodeHeader                          // 表头不匹配
	CodeFieldCount                      // 字段数量不正确
	CodeID                              // ID 无效
	CodeName                            // 名称太短
	CodeLatitude                        // 纬度不是数字
	CodeLongitude                       // 经度不是数字
	CodeDuplicatePoint                  // 点 ID 重复
	CodeEndpoint1                       // 端点 1 ID 无效
	CodeUnknownEndpoint1                // 端点 1 不存在
	CodeEndpoint2                       // 端点 2 ID 无效
	CodeUnknownEndpoint2                // 端点 2 不存在
	CodeLength                          // 长度无效
	CodeDuplicateRoute                  // 路线 ID 重复
	CodeNoRecords                       // 只有表头, 没有数据
	CodeRead                            // 读取文件出错
)

var codeNames = map[Code]string{
	CodeOpen:             "open",
	CodeHeader:           "header",
	CodeFieldCount:       "field_count",
	CodeID:               "id",
	CodeName:             "name",
	CodeLatitude:         "latitude",
	CodeLongitude:        "longitude",
	CodeDuplicatePoint:   "duplicate_point",
	CodeEndpoint1:        "endpoint1",
	CodeUnknownEndpoint1: "unknown_endpoint1",
	CodeEndpoint2:        "endpoint2",
	CodeUnknownEndpoint2: "unknown_endpoint2",
	CodeLength:           "length",
	CodeDuplicateRoute:   "duplicate_route",
	CodeNoRecords:        "no_records",
	CodeRead:             "read",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

var (
	ErrBadHeader      = errors.New("表头不正确")
	ErrFieldCount     = errors.New("字段数量不正确")
	ErrShortName      = errors.New("名称至少需要 2 个字符")
	ErrBadNumber      = errors.New("不是有效的数字")
	ErrNegativeLength = errors.New("长度不能为负数")
	ErrDuplicateID    = errors.New("ID 重复")
	ErrUnknownPoint   = errors.New("引用的点不存在")
	ErrNoRecords      = errors.New("文件中没有数据")
)

// LoadError 加载地图文件失败, 记录文件、行号和原因
type LoadError struct {
	File string
	Line int // 从 1 开始, 0 表示与具体行无关 (例如打开失败)
	Code Code
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s: %v", e.File, e.Line, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.File, e.Code, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// CodeOf 返回 err 链中 LoadError 的原因, 不是加载错误时返回 0
func CodeOf(err error) Code {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	return 0
}
