package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/actuator-control/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"seconds": func(d time.Duration) string {
		return fmt.Sprintf("%g", d.Seconds())
	},
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Actuator Control</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
button { font-family: monospace; padding: 4px 12px; margin-right: 6px; }
input { font-family: monospace; width: 6em; }
.running { color: green; font-weight: bold; }
.idle { color: #888; }
.fault { color: red; }
.connected { color: green; }
.disconnected { color: red; }
#result { min-height: 1.2em; }
</style>
</head>
<body>
<h1>Actuator Control</h1>

<h2>Controller</h2>
<table>
<tr><th>State</th><td id="state" class="{{if .Running}}running{{else}}idle{{end}}">{{if .Running}}RUNNING{{else}}IDLE{{end}}</td></tr>
<tr><th>Cycle wait</th><td id="wait">{{seconds .CycleWait}}s</td></tr>
<tr><th>Cycles</th><td id="cycles">{{.Cycles}}</td></tr>
{{if .LastFault}}<tr><th>Last fault</th><td class="fault">{{.LastFault}}</td></tr>{{end}}
</table>

<p>
<button onclick="command('/api/start')">Start</button>
<button onclick="command('/api/stop')">Stop</button>
</p>
<form onsubmit="setWait(event)">
<label>Wait (s) <input id="wait-input" type="number" min="0" step="any" value="{{seconds .CycleWait}}"></label>
<button type="submit">Set</button>
</form>
<p id="result"></p>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Starts</th><td>{{.Counts.Starts}}</td></tr>
<tr><th>Stops</th><td>{{.Counts.Stops}}</td></tr>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Faults</th><td>{{.Counts.Faults}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Pins</th><td>A={{.Config.PinA}} B={{.Config.PinB}}{{if .Config.ActiveLow}} (active low){{end}}</td></tr>
<tr><th>Initial retract</th><td>{{ms .Config.InitialRetractMs}}</td></tr>
<tr><th>Extend</th><td>{{ms .Config.ExtendMs}}</td></tr>
<tr><th>Retract</th><td>{{ms .Config.RetractMs}}</td></tr>
<tr><th>Pause</th><td>{{ms .Config.PauseMs}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{ms .Config.HeartbeatMs}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/api/status">API status</a></p>
<script>
function show(data) {
  document.getElementById("result").textContent = data.message || "";
  refresh();
}

function command(path) {
  fetch(path, { method: "POST" }).then(function(r) { return r.json(); }).then(show);
}

function setWait(ev) {
  ev.preventDefault();
  var v = parseFloat(document.getElementById("wait-input").value);
  fetch("/api/cycle_wait_time", {
    method: "POST",
    headers: { "Content-Type": "application/json" },
    body: JSON.stringify({ time: isNaN(v) ? null : v })
  }).then(function(r) { return r.json(); }).then(show);
}

function refresh() {
  fetch("/api/status").then(function(r) { return r.json(); }).then(function(s) {
    var el = document.getElementById("state");
    el.textContent = s.running ? "RUNNING" : "IDLE";
    el.className = s.running ? "running" : "idle";
    document.getElementById("wait").textContent = s.cycle_wait_time + "s";
    document.getElementById("cycles").textContent = s.cycles;
  });
}

setInterval(refresh, 2000);
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
