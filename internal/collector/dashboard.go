package collector

import (
	"NetSentinel/internal/model"
	"html/template"
	"log"
	"net/http"
	"strconv"
)

var indexPage = template.Must(template.New("index").Parse(`<html>
<head><title>IDS Alerts</title></head>
<body>
<h1>Intrusion Detection Alerts</h1>
<p>Go to <a href="/dashboard">/dashboard</a> for the live dashboard, or <a href="/alerts">/alerts</a> for raw JSON.</p>
</body>
</html>
`))

var dashboardPage = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"score": func(p *float64) string {
		if p == nil {
			return "N/A"
		}
		return formatScore(*p)
	},
}).Parse(`<html>
<head>
<meta http-equiv="refresh" content="5">
<title>IDS Dashboard</title>
<style>
body { font-family: Arial; margin: 30px; background: #111; color: #eee; }
h1 { color: #0f0; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #555; padding: 8px; text-align: left; }
th { background: #222; color: #0f0; }
tr:nth-child(even) { background: #1a1a1a; }
.bad { color: #f33; font-weight: bold; }
.good { color: #3f3; font-weight: bold; }
</style>
</head>
<body>
<h1>Intrusion Detection Dashboard</h1>
<p>This page refreshes every 5 seconds.</p>
<div id="summary"><b>Total alerts loaded:</b> {{.Total}} | <b>Suspicious:</b> {{.Suspicious}} | <b>Last alert time:</b> {{.LastTs}}</div>
<br/>
<table>
<tr><th>Time</th><th>Source</th><th>Destination</th><th>Proto</th><th>Packets</th><th>Bytes</th><th>Score</th><th>Status</th></tr>
{{range .Alerts}}<tr>
<td>{{.Ts}}</td><td>{{.Src}}</td><td>{{.Dst}}</td><td>{{.Proto}}</td><td>{{.PacketCount}}</td><td>{{.TotalBytes}}</td><td>{{score .AttackScore}}</td>
<td class="{{if eq .PredictedClass "suspicious"}}bad{{else}}good{{end}}">{{.PredictedClass}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

type dashboardView struct {
	Alerts     []model.StoredAlert
	Total      int
	Suspicious int
	LastTs     string
}

func newDashboardView(alerts []model.StoredAlert) dashboardView {
	v := dashboardView{Alerts: alerts, Total: len(alerts), LastTs: "N/A"}
	if len(alerts) > 0 {
		v.LastTs = alerts[0].Ts
	}
	for _, a := range alerts {
		if a.PredictedClass == "suspicious" {
			v.Suspicious++
		}
	}
	return v
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexPage.Execute(w, nil); err != nil {
		log.Printf("Collector: failed to render index: %v", err)
	}
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.Recent(r.Context(), s.recentLimit)
	if err != nil {
		log.Printf("Collector: failed to list alerts: %v", err)
		alerts = nil
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardPage.Execute(w, newDashboardView(alerts)); err != nil {
		log.Printf("Collector: failed to render dashboard: %v", err)
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
