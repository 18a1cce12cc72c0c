// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package starconv implements Starlark value conversion.
package starconv

import (
	"fmt"
	"math"
	"time"

	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
)

// ToValue converts val to [starlark.Value].
//
// It supports the following Go types:
//
//   - nil: converted to [starlark.None]
//   - bool: converted to [starlark.Bool]
//   - string: converted to [starlark.String]
//   - integers: converted to [starlark.Int]
//   - float32, float64: converted to [starlark.Int] when representable
//     without loss of precision, [starlark.Float] otherwise
//   - [time.Time]: converted to [starlarktime.Time]
//   - []any: converted to [starlark.List] (elements are recursively converted)
//   - map[string]any: converted to [starlark.Dict] (values are recursively converted)
func ToValue(val any) (starlark.Value, error) {
	switch v := val.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case string:
		return starlark.String(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int8:
		return starlark.MakeInt(int(v)), nil
	case int16:
		return starlark.MakeInt(int(v)), nil
	case int32:
		return starlark.MakeInt(int(v)), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint:
		return starlark.MakeUint(v), nil
	case uint8:
		return starlark.MakeUint(uint(v)), nil
	case uint16:
		return starlark.MakeUint(uint(v)), nil
	case uint32:
		return starlark.MakeUint(uint(v)), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float32:
		if canBeInt(float64(v)) {
			return starlark.MakeInt64(int64(v)), nil
		}
		return starlark.Float(v), nil
	case float64:
		if canBeInt(v) {
			return starlark.MakeInt64(int64(v)), nil
		}
		return starlark.Float(v), nil
	case time.Time:
		return starlarktime.Time(v), nil
	case []any:
		var list []starlark.Value
		for _, item := range v {
			conv, err := ToValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, conv)
		}
		return starlark.NewList(list), nil
	case map[string]any:
		dict := starlark.NewDict(len(v))
		for key, value := range v {
			conv, err := ToValue(value)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(key), conv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported Go type: %T", val)
	}
}

// canBeInt reports if the float can be converted to int without losing
// precision.
func canBeInt(f float64) bool {
	if f < math.MinInt || f > math.MaxInt {
		return false
	}
	return f == math.Trunc(f)
}
