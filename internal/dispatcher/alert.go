package dispatcher

import (
	"NetSentinel/internal/model"
	"time"
)

// TimestampLayout is the alert timestamp format shared with the collector.
const TimestampLayout = "2006-01-02 15:04:05"

// Unknown replaces missing identifiers in alerts.
const Unknown = "unknown"

// BuildAlert converts a flagged flow into the alert payload.
func BuildAlert(sf model.ScoredFlow, now time.Time) model.Alert {
	a := model.Alert{
		Ts:             now.Format(TimestampLayout),
		Src:            Unknown,
		Dst:            Unknown,
		PredictedClass: sf.Class.String(),
	}
	score := sf.AttackScore
	a.AttackScore = &score

	if r := sf.Record; r != nil {
		if r.Key.SrcIP != "" {
			a.Src = r.Key.SrcIP
		}
		if r.Key.DstIP != "" {
			a.Dst = r.Key.DstIP
		}
		a.Sport = int64(r.Key.SrcPort)
		a.Dport = int64(r.Key.DstPort)
		a.Proto = int64(r.Key.Protocol)
		a.PacketCount = int64(r.Stats.PacketCount)
		a.TotalBytes = int64(r.Stats.TotalBytes)
	}
	return a
}
