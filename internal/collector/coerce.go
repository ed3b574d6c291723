package collector

import (
	"NetSentinel/internal/model"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the format used when an alert carries no timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

const unknown = "unknown"

// Coerce normalizes a loosely typed alert payload. It never fails: absent or
// malformed fields fall back to their defaults.
func Coerce(raw map[string]interface{}, now time.Time) model.Alert {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return model.Alert{
		Ts:             toText(raw["ts"], now.Format(TimestampLayout)),
		Src:            toText(raw["src"], unknown),
		Dst:            toText(raw["dst"], unknown),
		Sport:          toInt(raw["sport"]),
		Dport:          toInt(raw["dport"]),
		Proto:          toInt(raw["proto"]),
		PredictedClass: toText(raw["predicted_class"], unknown),
		PacketCount:    toInt(raw["packet_count"]),
		TotalBytes:     toInt(raw["total_bytes"]),
		AttackScore:    toScore(raw["attack_score"]),
	}
}

func toText(v interface{}, def string) string {
	switch x := v.(type) {
	case nil:
		return def
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool, int, int64:
		return fmt.Sprint(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return def
		}
		return string(b)
	}
}

func toInt(v interface{}) int64 {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		return floatToInt(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		if f, err := x.Float64(); err == nil {
			return floatToInt(f)
		}
		return 0
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func floatToInt(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

func toScore(v interface{}) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
