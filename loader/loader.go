// Package loader 读取以分号分隔的点文件和路线文件
package loader

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"route-planner/model"
)

const (
	// PointsHeader 点文件的表头
	PointsHeader = "ID;Nome;Latitude;Longitude"
	// RoutesHeader 路线文件的表头
	RoutesHeader = "ID;Nome;Extremidade 1;Extremidade 2;Comprimento"

	minNameLen = 2
)

// LoadFiles 依次读取点文件和路线文件
// 任何一个文件出错都返回 *LoadError, 此时不返回任何数据
func LoadFiles(pointsPath, routesPath string) ([]model.Point, []model.Route, error) {
	points, err := readFile(pointsPath, ReadPoints)
	if err != nil {
		return nil, nil, err
	}

	routes, err := readFile(routesPath, func(name string, r io.Reader) ([]model.Route, error) {
		return ReadRoutes(name, r, points)
	})
	if err != nil {
		return nil, nil, err
	}

	return points, routes, nil
}

func readFile[T any](path string, read func(string, io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{File: path, Code: CodeOpen, Err: err}
	}
	defer f.Close()
	return read(path, f)
}

// ReadPoints 解析点文件, name 仅用于错误信息
func ReadPoints(name string, r io.Reader) ([]model.Point, error) {
	var points []model.Point
	seen := make(map[model.PointID]struct{})

	err := scanRecords(name, r, PointsHeader, func(line int, fields []string) error {
		fail := func(code Code, err error) error {
			return &LoadError{File: name, Line: line, Code: code, Err: err}
		}
		if len(fields) != 4 {
			return fail(CodeFieldCount, fmt.Errorf("%w: 需要 4 个, 实际 %d 个", ErrFieldCount, len(fields)))
		}

		id, err := model.ParsePointID(fields[0])
		if err != nil {
			return fail(CodeID, err)
		}
		if err := checkName(fields[1]); err != nil {
			return fail(CodeName, err)
		}
		lat, err := parseNumber(fields[2])
		if err != nil {
			return fail(CodeLatitude, err)
		}
		lng, err := parseNumber(fields[3])
		if err != nil {
			return fail(CodeLongitude, err)
		}
		if _, dup := seen[id]; dup {
			return fail(CodeDuplicatePoint, fmt.Errorf("%w: 点 %s", ErrDuplicateID, id))
		}

		seen[id] = struct{}{}
		points = append(points, model.Point{ID: id, Name: fields[1], Lat: lat, Lng: lng})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// ReadRoutes 解析路线文件, 两个端点都必须出现在 points 中
func ReadRoutes(name string, r io.Reader, points []model.Point) ([]model.Route, error) {
	known := make(map[model.PointID]struct{}, len(points))
	for _, p := range points {
		known[p.ID] = struct{}{}
	}

	var routes []model.Route
	seen := make(map[model.RouteID]struct{})

	err := scanRecords(name, r, RoutesHeader, func(line int, fields []string) error {
		fail := func(code Code, err error) error {
			return &LoadError{File: name, Line: line, Code: code, Err: err}
		}
		if len(fields) != 5 {
			return fail(CodeFieldCount, fmt.Errorf("%w: 需要 5 个, 实际 %d 个", ErrFieldCount, len(fields)))
		}

		id, err := model.ParseRouteID(fields[0])
		if err != nil {
			return fail(CodeID, err)
		}
		if err := checkName(fields[1]); err != nil {
			return fail(CodeName, err)
		}

		end1, err := model.ParsePointID(fields[2])
		if err != nil {
			return fail(CodeEndpoint1, err)
		}
		if _, ok := known[end1]; !ok {
			return fail(CodeUnknownEndpoint1, fmt.Errorf("%w: %s", ErrUnknownPoint, end1))
		}

		end2, err := model.ParsePointID(fields[3])
		if err != nil {
			return fail(CodeEndpoint2, err)
		}
		if _, ok := known[end2]; !ok {
			return fail(CodeUnknownEndpoint2, fmt.Errorf("%w: %s", ErrUnknownPoint, end2))
		}

		length, err := parseNumber(fields[4])
		if err != nil {
			return fail(CodeLength, err)
		}
		if length < 0 {
			return fail(CodeLength, fmt.Errorf("%w: %g", ErrNegativeLength, length))
		}
		if _, dup := seen[id]; dup {
			return fail(CodeDuplicateRoute, fmt.Errorf("%w: 路线 %s", ErrDuplicateID, id))
		}

		seen[id] = struct{}{}
		routes = append(routes, model.Route{ID: id, Name: fields[1], End1: end1, End2: end2, Length: length})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return routes, nil
}

// scanRecords 校验表头, 然后把每个非空行按分隔符拆开交给 record
func scanRecords(name string, r io.Reader, header string, record func(line int, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return &LoadError{File: name, Line: 1, Code: CodeRead, Err: err}
		}
		return &LoadError{File: name, Line: 1, Code: CodeHeader, Err: ErrBadHeader}
	}
	first := strings.TrimPrefix(trimEOL(sc.Text()), "\ufeff")
	if first != header {
		return &LoadError{File: name, Line: 1, Code: CodeHeader, Err: fmt.Errorf("%w: %q", ErrBadHeader, first)}
	}

	line, records := 1, 0
	for sc.Scan() {
		line++
		text := trimEOL(sc.Text())
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := record(line, strings.Split(text, model.FieldSeparator)); err != nil {
			return err
		}
		records++
	}
	if err := sc.Err(); err != nil {
		return &LoadError{File: name, Line: line + 1, Code: CodeRead, Err: err}
	}
	if records == 0 {
		return &LoadError{File: name, Line: line, Code: CodeNoRecords, Err: ErrNoRecords}
	}
	return nil
}

func trimEOL(s string) string {
	return strings.TrimRight(s, "\r")
}

func checkName(name string) error {
	if utf8.RuneCountInString(name) < minNameLen {
		return fmt.Errorf("%w: %q", ErrShortName, name)
	}
	return nil
}

func parseNumber(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, field)
	}
	return v, nil
}
