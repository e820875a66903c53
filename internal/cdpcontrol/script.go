package cdpcontrol

import (
	"encoding/json"
	"fmt"
)

// Every script returns JSON.stringify({ok, data, error_code, error_message}).

const jsWidget = `
var api = window.TradingViewApi;
var chart = api && typeof api.activeChart === "function" ? api.activeChart() : null;
function _fail(code, msg) { return JSON.stringify({ok:false,error_code:code,error_message:msg}); }
function _ok(data) { return JSON.stringify({ok:true,data:data||{}}); }
function _run(id) {
  if (api && typeof api.executeActionById === "function") { api.executeActionById(id); return true; }
  if (chart && typeof chart.executeActionById === "function") { chart.executeActionById(id); return true; }
  return false;
}
`

// jsToolbarButton finds a visible toolbar button by any of its data-name
// values and reads its pressed state.
const jsToolbarButton = `
function _button(names) {
  for (var i = 0; i < names.length; i++) {
    var found = document.querySelectorAll('[data-name="' + names[i] + '"]');
    for (var j = 0; j < found.length; j++) {
      if (found[j].offsetParent !== null) return found[j];
    }
  }
  return null;
}
function _pressed(b) {
  if (!b) return null;
  var aria = b.getAttribute("aria-pressed");
  if (aria !== null) return aria === "true";
  var cls = String(b.className || "");
  return /isActive|active|isChecked|checked/.test(cls);
}
var _toggleButtons = {
  log_scale: ["logarithm", "log-scale", "logScale"],
  auto_scale: ["auto", "auto-scale", "autoScale"],
  extended_hours: ["extended-hours", "extendedHours", "sessions"]
};
`

func script(async bool, body string) string {
	head := "(function(){\n"
	if async {
		head = "(async function(){\n"
	}
	return head + jsWidget + "try {\n" + body + "\n} catch (err) {\nreturn _fail(\"" + CodeEvalFailure +
		"\", String(err && err.message || err));\n}\n})()"
}

func quote(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func jsResolution() string {
	return script(false, `
var res = "";
if (api && typeof api.getResolution === "function") res = String(api.getResolution() || "");
if (!res && chart && typeof chart.resolution === "function") res = String(chart.resolution() || "");
if (!res) return _fail("API_UNAVAILABLE", "resolution getter unavailable");
return _ok({resolution:res});
`)
}

func jsSetResolution(resolution string) string {
	return script(true, fmt.Sprintf(`
var want = %s;
var target = api && typeof api.setResolution === "function" ? api : chart;
if (!target || typeof target.setResolution !== "function") return _fail("API_UNAVAILABLE", "setResolution unavailable");
await new Promise(function(resolve) {
  var done = false;
  var finish = function() { if (!done) { done = true; resolve(); } };
  try { target.setResolution(want, finish); } catch (_) { target.setResolution(want); }
  setTimeout(finish, 1500);
});
return _ok({resolution:want});
`, quote(resolution)))
}

func jsSetChartType(id int) string {
	return script(false, fmt.Sprintf(`
if (!chart || typeof chart.setChartType !== "function") return _fail("API_UNAVAILABLE", "setChartType unavailable");
chart.setChartType(%d);
return _ok({chart_type:%d});
`, id, id))
}

func jsListStudies() string {
	return script(false, `
if (!chart || typeof chart.getAllStudies !== "function") return _fail("API_UNAVAILABLE", "getAllStudies unavailable");
var all = chart.getAllStudies() || [];
var out = [];
for (var i = 0; i < all.length; i++) {
  var s = all[i] || {};
  out.push({id:String(s.id || s.entityId || ""), name:String(s.name || s.title || "")});
}
return _ok({studies:out});
`)
}

// jsCreateStudy adds a study. Line colors go into the study overrides keyed
// by plot index.
func jsCreateStudy(name string, overlay bool, inputs []float64, colors []string) string {
	return script(true, fmt.Sprintf(`
var name = %s, overlay = %t, inputs = %s || [], colors = %s || [];
if (!chart || typeof chart.createStudy !== "function") return _fail("API_UNAVAILABLE", "createStudy unavailable");
var overrides = {};
for (var i = 0; i < colors.length; i++) overrides["plot_" + i + ".color"] = colors[i];
var id = "";
try {
  id = await chart.createStudy(name, overlay, false, inputs, overrides) || "";
} catch (_) {
  id = await chart.createStudy(name, overlay, false) || "";
}
if (!id) return _fail("EVAL_FAILURE", "study was not created: " + name);
return _ok({study:{id:String(id), name:name}});
`, quote(name), overlay, quote(inputs), quote(colors)))
}

func jsRemoveStudy(id string) string {
	return script(false, fmt.Sprintf(`
var id = %s;
if (!chart || typeof chart.removeEntity !== "function") return _fail("API_UNAVAILABLE", "removeEntity unavailable");
chart.removeEntity(id);
return _ok({id:id});
`, quote(id)))
}

func jsZoom(in bool) string {
	action := "chartZoomOut"
	if in {
		action = "chartZoomIn"
	}
	return script(false, fmt.Sprintf(`
if (!_run(%s)) return _fail("API_UNAVAILABLE", "zoom unavailable");
return _ok();
`, quote(action)))
}

// jsScroll moves the chart by bars; negative scrolls into history.
func jsScroll(bars int) string {
	return script(false, fmt.Sprintf(`
var bars = %d;
if (chart && typeof chart.scrollChartByBar === "function") { chart.scrollChartByBar(bars); return _ok({bars:bars}); }
var id = bars > 0 ? "chartScrollRight" : "chartScrollLeft";
for (var i = 0; i < Math.abs(bars); i++) { if (!_run(id)) return _fail("API_UNAVAILABLE", "scroll unavailable"); }
return _ok({bars:bars});
`, bars))
}

func jsScrollToRealtime() string {
	return script(false, `
var ts = chart && typeof chart.getTimeScale === "function" ? chart.getTimeScale() : null;
if (ts && typeof ts.scrollToRealtime === "function") { ts.scrollToRealtime(); return _ok(); }
if (!_run("timeScaleReset")) return _fail("API_UNAVAILABLE", "scroll to realtime unavailable");
return _ok();
`)
}

func jsResetScales() string {
	return script(false, `
if (chart && typeof chart.resetScales === "function") { chart.resetScales(); return _ok(); }
if (!_run("chartReset")) return _fail("API_UNAVAILABLE", "reset unavailable");
return _ok();
`)
}

func jsToggles() string {
	return script(false, jsToolbarButton+`
return _ok({
  log_scale: _pressed(_button(_toggleButtons.log_scale)),
  auto_scale: _pressed(_button(_toggleButtons.auto_scale)),
  extended_hours: _pressed(_button(_toggleButtons.extended_hours))
});
`)
}

// jsSetToggle clicks the option's toolbar button when its state differs.
func jsSetToggle(option string, enabled bool) string {
	return script(false, fmt.Sprintf(jsToolbarButton+`
var option = %s, want = %t;
var names = _toggleButtons[option];
if (!names) return _fail("VALIDATION", "unknown display option: " + option);
var b = _button(names);
if (!b) return _fail("API_UNAVAILABLE", option + " button not found");
if (_pressed(b) !== want) b.click();
return _ok({option:option, enabled:_pressed(b)});
`, quote(option), enabled))
}

func jsOpenNews() string {
	return script(false, jsToolbarButton+`
var b = _button(["news", "headlines", "union_news"]);
if (!b) return _fail("API_UNAVAILABLE", "news button not found");
if (!_pressed(b)) b.click();
return _ok();
`)
}
