package przelewy24

import (
	"net/url"
	"strings"
)

// Response is a parsed gateway reply. The gateway answers with a URL-encoded
// query string such as "error=0&token=ABC".
type Response struct {
	values url.Values
}

// ParseResponse never fails: a body that cannot be decoded yields whatever
// pairs could be read, possibly none.
func ParseResponse(body []byte) Response {
	values, _ := url.ParseQuery(strings.TrimSpace(string(body)))
	if values == nil {
		values = url.Values{}
	}
	return Response{values: values}
}

// Get returns the first value of key and whether the key was present.
func (r Response) Get(key string) (string, bool) {
	vs, ok := r.values[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// Succeeded reports error=0.
func (r Response) Succeeded() bool {
	v, ok := r.Get("error")
	return ok && v == "0"
}

// Rejected reports error=1.
func (r Response) Rejected() bool {
	v, ok := r.Get("error")
	return ok && v == "1"
}

func (r Response) Token() (string, bool) {
	t, ok := r.Get("token")
	return t, ok && t != ""
}

func (r Response) String() string {
	return r.values.Encode()
}
