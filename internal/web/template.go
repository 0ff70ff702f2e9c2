package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/vent-controller/internal/measure"
	"github.com/sweeney/vent-controller/internal/status"
	"github.com/sweeney/vent-controller/internal/window"
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
	"temp": func(r measure.Reading) string {
		if !r.Valid {
			return "--"
		}
		return fmt.Sprintf("%.1f", r.Now)
	},
	"stateClass": func(s window.State) string {
		switch {
		case s.Moving():
			return "moving"
		case s.Manual():
			return "manual"
		}
		return "auto"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Vent Controller</title>
<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 30%; }
form { display: inline; }
.moving { color: green; font-weight: bold; }
.manual { color: orange; }
.auto { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; background: orange; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
</style>
</head>
<body>
<h1>Vent Controller<span id="live-dot" class="live-dot" title="connecting"></span></h1>

<h2>Windows</h2>
<table>
<tr><th>Sensor</th><th>Temp</th><th>State</th><th>Open / close at</th><th></th></tr>
{{range .Windows}}<tr>
<td>{{.Axis}}</td>
<td id="temp-{{.Axis}}">{{temp .Reading}}</td>
{{if .Axis.Driven}}<td id="state-{{.Axis}}" class="{{stateClass .State}}">{{.State}}</td>{{else}}<td>-</td>{{end}}
<td><form method="post" action="/limits/{{.Axis}}">
<input name="open" size="4" value="{{printf "%.1f" .Reading.Open}}"> /
<input name="close" size="4" value="{{printf "%.1f" .Reading.Close}}">
<button>set</button></form></td>
<td>{{if .Axis.Driven}}
<form method="post" action="/window/{{.Axis}}/open"><button>open</button></form>
<form method="post" action="/window/{{.Axis}}/close"><button>close</button></form>
<form method="post" action="/window/{{.Axis}}/cancel"><button>stop</button></form>
{{end}}</td>
</tr>
{{end}}</table>

<h2>Settings</h2>
<table>
<tr><th>Motor timing</th><td><form method="post" action="/timing">
run <input name="run" size="6" value="{{.Config.RunSeconds}}s">
lockout <input name="lockout" size="6" value="{{.Config.LockoutSeconds}}s">
<button>set</button></form></td></tr>
<tr><th>Stall cutoff</th><td>
<form method="post" action="/stall/low">low <input name="cutoff" size="5" value="{{.Config.StallLow}}"><button>set</button></form>
<form method="post" action="/stall/high">high <input name="cutoff" size="5" value="{{.Config.StallHigh}}"><button>set</button></form>
</td></tr>
</table>

<h2>Today</h2>
<table>
{{range .Windows}}<tr><th>{{.Axis}}</th><td>min {{printf "%.1f" .Reading.Min}} / max {{printf "%.1f" .Reading.Max}}{{if .Reading.Failures}} ({{.Reading.Failures}} read errors){{end}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Motors</h2>
<table>
<tr><th>Opens</th><td>{{.Counts.Opens}}</td></tr>
<tr><th>Closes</th><td>{{.Counts.Closes}}</td></tr>
<tr><th>Stops</th><td>{{.Counts.Stops}}</td></tr>
<tr><th>Lockouts</th><td>{{.Counts.Lockouts}}</td></tr>
<tr><th>Errors</th><td>{{.MotorErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
{{if .Supply.Configured}}<tr><th>Supply</th><td>{{if .Supply.Valid}}{{printf "%.2f" .Supply.Volts}}V{{else}}--{{end}}{{if .Supply.Failures}} ({{.Supply.Failures}} read errors){{end}}</td></tr>
{{end}}<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Cancel policy</th><td>{{.Config.CancelPolicy}}</td></tr>
<tr><th>Motor</th><td>{{.Config.MotorType}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/ws");

  ws.onopen = function() { dot.className = "live-dot ok"; dot.title = "live"; };
  ws.onclose = function() { dot.className = "live-dot err"; dot.title = "offline"; };

  ws.onmessage = function(ev) {
    try {
      var msg = JSON.parse(ev.data);
      (msg.status.windows || []).forEach(function(w) {
        var t = document.getElementById("temp-" + w.axis);
        if (t) { t.textContent = w.temp === null ? "--" : w.temp.toFixed(1); }
        var s = document.getElementById("state-" + w.axis);
        if (s && w.state) { s.textContent = w.state; }
      });
    } catch (e) {}
  };
})();
</script>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Windows []status.AxisStatus
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Windows:  snap.Axes[:],
	}
	indexTmpl.Execute(w, data)
}
