// Package faratest serves a scripted copy of the FARA eFile portal so the
// crawl can be exercised end to end without the network.
package faratest

import (
	"fmt"
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Identifiers the simulated APEX application hands out.
const (
	FlowID         = "1381"
	Instance       = "13852610166285"
	AjaxIdentifier = "report-ajax-identifier"
	SessionCookie  = "ORA_WWV_APP_171"
	sessionValue   = "faratest-session"
)

// Exhibit is one document row on a detail page. Stamped uses the portal's
// MM/DD/YYYY format.
type Exhibit struct {
	URL     string
	Stamped string
}

// Principal is one worksheet row and the exhibits behind its detail link.
type Principal struct {
	Name       string
	FPRegDate  string
	Address    string
	State      string
	Country    string
	Registrant string
	RegNum     string
	RegDate    string
	Exhibits   []Exhibit
}

// Portal is an httptest server answering the listing, worksheet, ajax and
// detail requests of one crawl.
type Portal struct {
	srv        *httptest.Server
	principals []Principal

	mu        sync.Mutex
	displayed string
	failures  map[string]*failure
	posts     []url.Values
	hits      map[string]int
}

type failure struct {
	status    int
	delay     time.Duration
	remaining int
}

// NewPortal starts a portal listing principals in order. The server is closed
// when the test ends.
func NewPortal(t testing.TB, principals ...Principal) *Portal {
	t.Helper()
	p := &Portal{
		principals: principals,
		displayed:  strconv.Itoa(len(principals)),
		failures:   map[string]*failure{},
		hits:       map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ords/f", p.handlePage)
	mux.HandleFunc("POST /ords/wwv_flow.ajax", p.handleAjax)
	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

// EntryURL is the listing page.
func (p *Portal) EntryURL() string { return p.srv.URL + "/ords/f?p=171:1" }

// BaseURL prefixes relative portal links.
func (p *Portal) BaseURL() string { return p.srv.URL + "/ords" }

// AjaxURL receives the worksheet POST.
func (p *Portal) AjaxURL() string { return p.srv.URL + "/ords/wwv_flow.ajax" }

// DetailURL is the absolute detail link the worksheet emits for a principal.
func (p *Portal) DetailURL(pr Principal) string {
	return p.BaseURL() + "/" + detailHref(pr)
}

// SetDisplayedCount replaces the row count shown on the worksheet, e.g. "1,027".
func (p *Portal) SetDisplayedCount(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.displayed = s
}

// FailListing answers the next times listing requests with status.
func (p *Portal) FailListing(status, times int) { p.fail("listing", status, times) }

// FailTable answers the next times worksheet POSTs with status.
func (p *Portal) FailTable(status, times int) { p.fail("table", status, times) }

// FailDetail answers the next times detail requests for regNum with status.
func (p *Portal) FailDetail(regNum string, status, times int) {
	p.fail("detail:"+regNum, status, times)
}

// StallDetail holds the next times detail responses for regNum for delay
// before answering normally.
func (p *Portal) StallDetail(regNum string, delay time.Duration, times int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures["detail:"+regNum] = &failure{delay: delay, remaining: times}
}

// Posts returns the forms received by the ajax endpoint.
func (p *Portal) Posts() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.posts...)
}

// Hits reports how many requests reached a page: "listing", "worksheet",
// "table" or "detail:<reg num>".
func (p *Portal) Hits(page string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[page]
}

func (p *Portal) fail(page string, status, times int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[page] = &failure{status: status, remaining: times}
}

// record counts the hit and returns the scripted failure for it, if any.
func (p *Portal) record(page string) failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits[page]++
	f, ok := p.failures[page]
	if !ok || f.remaining == 0 {
		return failure{}
	}
	f.remaining--
	return *f
}

func (p *Portal) handlePage(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Query().Get("p")
	switch {
	case param == "171:1":
		p.serve(w, "listing", listingTemplate, nil)
	case strings.HasPrefix(param, FlowID+":130:"):
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: sessionValue, Path: "/"})
		p.mu.Lock()
		displayed := p.displayed
		p.mu.Unlock()
		p.serve(w, "worksheet", worksheetTemplate, map[string]string{
			"FlowID":    FlowID,
			"Instance":  Instance,
			"Displayed": displayed,
			"AjaxID":    AjaxIdentifier,
		})
	case strings.HasPrefix(param, FlowID+":200:"):
		regNum := detailRegNum(param)
		for _, pr := range p.principals {
			if pr.RegNum == regNum {
				p.serve(w, "detail:"+regNum, detailTemplate, pr)
				return
			}
		}
		http.NotFound(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (p *Portal) handleAjax(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err != nil || c.Value != sessionValue {
		http.Error(w, "session expired", http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.posts = append(p.posts, r.PostForm)
	p.mu.Unlock()
	if r.PostForm.Get("p_request") != "PLUGIN="+AjaxIdentifier {
		http.Error(w, "unknown plugin", http.StatusBadRequest)
		return
	}
	n, err := strconv.Atoi(r.PostForm.Get("p_widget_num_return"))
	if err != nil || n < 0 {
		http.Error(w, "bad row count", http.StatusBadRequest)
		return
	}
	rows := p.principals[:min(n, len(p.principals))]
	p.serve(w, "table", tableTemplate, rows)
}

func (p *Portal) serve(w http.ResponseWriter, page string, tmpl *template.Template, data any) {
	f := p.record(page)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.status != 0 {
		http.Error(w, http.StatusText(f.status), f.status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func detailHref(pr Principal) string {
	return fmt.Sprintf("f?p=%s:200:%s::NO:RP,200:P200_REG_NUMBER,P200_DOC_TYPE,P200_COUNTRY:%s,Exhibit%%20AB,%s",
		FlowID, Instance, pr.RegNum, url.PathEscape(pr.Country))
}

// trustedHref marks the APEX link as safe; html/template would otherwise read
// "f?p=1381" as an unknown URL scheme.
func trustedHref(pr Principal) template.URL {
	return template.URL(detailHref(pr)) //nolint:gosec // fixed format built from test fixtures
}

// detailRegNum pulls the registration number out of the item values that
// follow the last colon of the p parameter.
func detailRegNum(param string) string {
	values := param[strings.LastIndex(param, ":")+1:]
	regNum, _, _ := strings.Cut(values, ",")
	return regNum
}

var listingTemplate = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html><body>
<ul id="L80330217189774968" class="t-LinksList">
<li><a href="f?p=` + FlowID + `:130:` + Instance + `::NO:RP,130:P130_DATERANGE:N">Active Foreign Principals</a></li>
<li><a href="f?p=` + FlowID + `:131:` + Instance + `::NO">Active Registrants</a></li>
</ul>
</body></html>`))

var worksheetTemplate = template.Must(template.New("worksheet").Parse(`<!DOCTYPE html>
<html><body>
<form action="wwv_flow.accept" method="post">
<input type="hidden" name="p_flow_id" value="{{.FlowID}}">
<input type="hidden" name="p_flow_step_id" value="130">
<input type="hidden" name="p_instance" value="{{.Instance}}">
<span id="P130_FP_NBR" class="display_only">{{.Displayed}}</span>
</form>
<script>
apex.widget.search("P0_SEARCH",{"ajaxIdentifier":"search-ajax-identifier"});
apex.widget.interactiveReport("R80340213897823017",{"ajaxIdentifier":"{{.AjaxID}}"});
</script>
</body></html>`))

var tableTemplate = template.Must(template.New("table").Funcs(template.FuncMap{"href": trustedHref}).Parse(`<div class="a-IRR-tableContainer">
<table class="a-IRR-table" id="80340213897823017">
<tr><th id="LINK">Link</th><th id="FP_NAME">Foreign Principal</th><th id="REG_NUMBER">Reg #</th></tr>
{{range .}}<tr>
<td headers="LINK"><a href="{{href .}}"><img src="view.png" alt="View"></a></td>
<td headers="FP_NAME">{{.Name}}</td>
<td headers="FP_REG_DATE">{{.FPRegDate}}</td>
<td headers="ADDRESS_1">{{.Address}}</td>
<td headers="STATE">{{.State}}</td>
<td headers="COUNTRY_NAME">{{.Country}}</td>
<td headers="REGISTRANT_NAME">{{.Registrant}}</td>
<td headers="REG_NUMBER">{{.RegNum}}</td>
<td headers="REG_DATE">{{.RegDate}}</td>
</tr>
{{end}}</table>
</div>`))

var detailTemplate = template.Must(template.New("detail").Parse(`<!DOCTYPE html>
<html><body>
<div class="a-IRR-tableContainer">
<table class="a-IRR-table">
<tr><th id="DOCLINK">Document</th><th id="DATE_STAMPED">Date Stamped</th></tr>
{{range .Exhibits}}<tr>
<td class="u-tL" headers="DOCLINK"><a href="{{.URL}}">Exhibit AB</a></td>
<td class="u-tL" headers="DATE_STAMPED">{{.Stamped}}</td>
</tr>
{{end}}</table>
</div>
</body></html>`))
