package edge

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"mailedge/internal/constants"
)

type Validator struct {
	pattern *regexp.Regexp
}

// NewValidator compiles uriPattern, which must match at the start of the
// request path. An empty pattern accepts every path.
func NewValidator(uriPattern string) (*Validator, error) {
	v := &Validator{}
	if uriPattern != "" {
		re, err := regexp.Compile(`^(?:` + uriPattern + `)`)
		if err != nil {
			return nil, fmt.Errorf("invalid uri pattern %q: %w", uriPattern, err)
		}
		v.pattern = re
	}
	return v, nil
}

// Validate returns nil for an acceptable request, otherwise the rejection to
// send.
func (v *Validator) Validate(r *http.Request) *Response {
	if v.pattern != nil && !v.pattern.MatchString(r.URL.Path) {
		return rejection(http.StatusNotFound, "not_found")
	}

	if !strings.EqualFold(r.Method, constants.SubmissionMethod) {
		resp := rejection(http.StatusMethodNotAllowed, "method_not_allowed")
		resp.Header.Set("Allow", constants.SubmissionMethod)
		return resp
	}

	if ct := r.Header.Get("Content-Type"); ct != "" && ct != constants.MessageMediaType {
		return rejection(http.StatusUnsupportedMediaType, "unsupported_media_type")
	}

	return nil
}
