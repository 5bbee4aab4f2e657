package devkit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Script is one canned reply. A non-nil Err simulates a transport failure.
type Script struct {
	Status  int
	Body    []byte
	Headers map[string]string
	Err     error
}

// JSON scripts a response whose body is v encoded as JSON.
func JSON(status int, v any) Script {
	body, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("devkit: encode script body: %v", err))
	}
	return Script{Status: status, Body: body, Headers: map[string]string{"Content-Type": "application/json"}}
}

// Raw scripts a response with a literal body.
func Raw(status int, body string) Script {
	return Script{Status: status, Body: []byte(body)}
}

// Fail scripts a transport error.
func Fail(err error) Script {
	return Script{Err: err}
}

type CapturedRequest struct {
	Method string
	URL    string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// FakeDoer is a scripted core.HTTPDoer. Routes are matched on "METHOD /path"
// and replay their scripts in order, repeating the last one. Unrouted
// requests fall through to the default sequence.
type FakeDoer struct {
	mu       sync.Mutex
	routes   map[string][]Script
	hits     map[string]int
	scripts  []Script
	requests []CapturedRequest
}

func NewFakeDoer(scripts ...Script) *FakeDoer {
	return &FakeDoer{
		routes:  map[string][]Script{},
		hits:    map[string]int{},
		scripts: append([]Script(nil), scripts...),
	}
}

func (d *FakeDoer) Route(method string, path string, scripts ...Script) *FakeDoer {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[routeKey(method, path)] = append([]Script(nil), scripts...)
	return d
}

func (d *FakeDoer) Do(req *http.Request) (*http.Response, error) {
	if d == nil {
		return nil, fmt.Errorf("devkit: fake doer is nil")
	}
	var body []byte
	if req.Body != nil {
		read, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		body = read
	}

	d.mu.Lock()
	d.requests = append(d.requests, CapturedRequest{
		Method: req.Method,
		URL:    req.URL.String(),
		Path:   req.URL.Path,
		Query:  req.URL.RawQuery,
		Header: req.Header.Clone(),
		Body:   body,
	})
	key := routeKey(req.Method, req.URL.Path)
	var script Script
	if routed, ok := d.routes[key]; ok && len(routed) > 0 {
		script = pick(routed, d.hits[key])
		d.hits[key]++
	} else if len(d.scripts) > 0 {
		script = pick(d.scripts, d.hits[""])
		d.hits[""]++
	} else {
		script = Script{Status: http.StatusNotFound, Body: []byte(`{"message":"devkit: no script for ` + key + `"}`)}
	}
	d.mu.Unlock()

	if script.Err != nil {
		return nil, script.Err
	}
	status := script.Status
	if status == 0 {
		status = http.StatusOK
	}
	header := http.Header{}
	for name, value := range script.Headers {
		header.Set(name, value)
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(script.Body)),
		Request:    req,
	}, nil
}

func (d *FakeDoer) Requests() []CapturedRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]CapturedRequest, len(d.requests))
	copy(out, d.requests)
	return out
}

// RequestsTo filters captured requests by path.
func (d *FakeDoer) RequestsTo(path string) []CapturedRequest {
	out := []CapturedRequest{}
	for _, req := range d.Requests() {
		if req.Path == path {
			out = append(out, req)
		}
	}
	return out
}

func pick(scripts []Script, hit int) Script {
	if hit < len(scripts) {
		return scripts[hit]
	}
	return scripts[len(scripts)-1]
}

func routeKey(method string, path string) string {
	return strings.ToUpper(strings.TrimSpace(method)) + " " + path
}
