package reply

import (
	"fmt"
	"strings"
)

// HeaderName is the response header carrying the underlying SMTP reply.
const HeaderName = "X-Smtp-Reply"

var (
	Accepted     = New("250", "2.6.0 Message accepted for delivery")
	QueueFailure = New("550", "5.6.0 Error queuing message")
	ConnectFail  = New("451", "4.4.0 Connection failed")
)

// Reply is an SMTP reply: a three-character code plus its message text, which
// usually starts with an enhanced status code.
type Reply struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func New(code, message string) Reply {
	return Reply{Code: code, Message: message}
}

func (r Reply) IsSuccess() bool {
	return strings.HasPrefix(r.Code, "2")
}

func (r Reply) IsTransient() bool {
	return strings.HasPrefix(r.Code, "4")
}

func (r Reply) IsPermanent() bool {
	return strings.HasPrefix(r.Code, "5")
}

func (r Reply) String() string {
	if r.Message == "" {
		return r.Code
	}
	return r.Code + " " + r.Message
}

// HeaderValue renders the reply as a header value with a quoted message
// parameter, e.g. `250; message="2.6.0 Message accepted for delivery"`.
func (r Reply) HeaderValue() string {
	if r.Message == "" {
		return r.Code
	}
	return fmt.Sprintf("%s; message=%s", r.Code, quote(r.Message))
}

// ParseHeaderValue is the inverse of HeaderValue.
func ParseHeaderValue(v string) (Reply, error) {
	code, rest, found := strings.Cut(v, ";")
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return Reply{}, fmt.Errorf("invalid reply code %q", code)
	}
	if !found {
		return Reply{Code: code}, nil
	}

	rest = strings.TrimSpace(rest)
	param, ok := strings.CutPrefix(rest, "message=")
	if !ok {
		return Reply{}, fmt.Errorf("missing message parameter in %q", v)
	}
	msg, err := unquote(param)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Code: code, Message: msg}, nil
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s, nil
	}
	s = s[1 : len(s)-1]
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			if i == len(s) {
				return "", fmt.Errorf("dangling escape in %q", s)
			}
		}
		b.WriteByte(s[i])
	}
	return b.String(), nil
}
