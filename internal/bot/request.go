package bot

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Endpoint is the default transport target of a binding.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// Request describes one call. Scheme, Host and Port override the binding's
// Endpoint when set. Model names the mapping applied to the response body;
// Scopes lists what the call needs from the token.
type Request struct {
	Method string
	Path   string
	Scheme string
	Host   string
	Port   int
	Query  url.Values
	Form   url.Values
	Model  string
	Scopes []string
}

func (r Request) clone() Request {
	r.Query = cloneValues(r.Query)
	r.Form = cloneValues(r.Form)
	r.Scopes = slices.Clone(r.Scopes)
	return r
}

func cloneValues(v url.Values) url.Values {
	if v == nil {
		return nil
	}
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = slices.Clone(vs)
	}
	return out
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// URL resolves the absolute URL of r. Precedence per field is request,
// then def, then https on its default port.
func (r Request) URL(def Endpoint) *url.URL {
	scheme := firstNonEmpty(r.Scheme, def.Scheme, "https")
	host := firstNonEmpty(r.Host, def.Host)
	port := r.Port
	if port == 0 {
		port = def.Port
	}
	if port != 0 && !isDefaultPort(scheme, port) {
		host += ":" + strconv.Itoa(port)
	}

	path := r.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := &url.URL{Scheme: scheme, Host: host, Path: path}
	if len(r.Query) > 0 {
		u.RawQuery = r.Query.Encode()
	}
	return u
}

func isDefaultPort(scheme string, port int) bool {
	return (scheme == "https" && port == 443) || (scheme == "http" && port == 80)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Response is a completed transport call with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
