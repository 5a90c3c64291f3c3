package guard

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/jonwraymond/sqlguard/failure"
)

// ResultShape is the caller-requested form of a command's output. It drives
// both the underlying execution call and whether the connection is closed
// after a successful attempt.
type ResultShape int

const (
	// ShapeRows streams result rows; the stream owns connection lifetime.
	ShapeRows ResultShape = iota
	// ShapeDocuments streams structured documents; capability-gated.
	ShapeDocuments
	// ShapeRowCount returns the affected row count.
	ShapeRowCount
	// ShapeScalar returns the first column of the first row.
	ShapeScalar
)

// String returns the string representation of the shape.
func (s ResultShape) String() string {
	switch s {
	case ShapeRows:
		return "rows"
	case ShapeDocuments:
		return "documents"
	case ShapeRowCount:
		return "row-count"
	case ShapeScalar:
		return "scalar"
	default:
		return "unknown"
	}
}

// closeOnSuccess reports whether a successful call that opened the handle
// should close it. Streaming shapes keep it open because the returned stream
// owns the connection from here on.
func (s ResultShape) closeOnSuccess() bool {
	return s == ShapeRowCount || s == ShapeScalar
}

// dispatch maps a result shape to the underlying execution call. When the
// caller asked for BehaviorCloseConnection a streaming result is wrapped so
// its own Close releases the connection.
func dispatch(ctx context.Context, cmd Command, shape ResultShape, behavior Behavior) (any, error) {
	switch shape {
	case ShapeRows:
		rows, err := cmd.ExecuteRows(ctx, behavior)
		if err != nil {
			return nil, err
		}
		if behavior == BehaviorCloseConnection {
			rows = &connCloserRows{Rows: rows, conn: cmd.Connection()}
		}
		return rows, nil

	case ShapeDocuments:
		ds, ok := cmd.(DocumentStreamer)
		if !ok {
			return nil, failure.NewUnsupported(
				fmt.Sprintf("command %T cannot stream documents", cmd))
		}
		docs, err := ds.ExecuteDocuments(ctx)
		if err != nil {
			return nil, err
		}
		if behavior == BehaviorCloseConnection {
			docs = &connCloserDocs{DocumentStream: docs, conn: cmd.Connection()}
		}
		return docs, nil

	case ShapeRowCount:
		n, err := cmd.ExecuteNonQuery(ctx)
		if err != nil {
			return nil, err
		}
		return n, nil

	case ShapeScalar:
		return cmd.ExecuteScalar(ctx)

	default:
		return nil, failure.NewUnsupported(
			fmt.Sprintf("unknown result shape %d", shape))
	}
}

// ConvertScalar converts a scalar query result to T using invariant,
// locale-independent rules. A nil result converts to the zero value of T.
func ConvertScalar[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	var out any
	var err error
	switch any(zero).(type) {
	case string:
		out, err = toString(v)
	case int64:
		out, err = toInt64(v)
	case int:
		var n int64
		n, err = toInt64(v)
		out = int(n)
	case float64:
		out, err = toFloat64(v)
	case bool:
		out, err = toBool(v)
	case []byte:
		var s string
		s, err = toString(v)
		out = []byte(s)
	case time.Time:
		out, err = toTime(v)
	default:
		return zero, failure.NewUnsupported(
			fmt.Sprintf("cannot convert scalar %T to %T", v, zero))
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

func toString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	default:
		return "", failure.NewUnsupported(fmt.Sprintf("cannot convert %T to string", v))
	}
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float64:
		// Round half away from zero rather than truncating.
		return int64(math.Round(x)), nil
	case []byte:
		return strconv.ParseInt(string(x), 10, 64)
	case string:
		return strconv.ParseInt(x, 10, 64)
	default:
		return 0, failure.NewUnsupported(fmt.Sprintf("cannot convert %T to int64", v))
	}
}

func toFloat64(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case []byte:
		return strconv.ParseFloat(string(x), 64)
	case string:
		return strconv.ParseFloat(x, 64)
	default:
		return 0, failure.NewUnsupported(fmt.Sprintf("cannot convert %T to float64", v))
	}
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int64:
		return x != 0, nil
	case []byte:
		return strconv.ParseBool(string(x))
	case string:
		return strconv.ParseBool(x)
	default:
		return false, failure.NewUnsupported(fmt.Sprintf("cannot convert %T to bool", v))
	}
}

func toTime(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case []byte:
		return time.Parse(time.RFC3339Nano, string(x))
	case string:
		return time.Parse(time.RFC3339Nano, x)
	default:
		return time.Time{}, failure.NewUnsupported(fmt.Sprintf("cannot convert %T to time.Time", v))
	}
}
