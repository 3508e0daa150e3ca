// Request parsing shared by the handlers: body decoding (JSON or form),
// table query state and confirmation flags.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"glowbudget/internal/core"
	"glowbudget/internal/query"
	"glowbudget/internal/validate"
)

// maxFormBytes caps record and settings bodies. Imports have their own limit.
const maxFormBytes = 64 << 10

// Query parameter names of the record table.
const (
	ParamSort          = "sort"
	ParamCategory      = "category"
	ParamSearch        = "q"
	ParamCaseSensitive = "cs"
	ParamConfirm       = "confirm"
)

// ParseQueryState reads the table state from query parameters. Missing or
// blank values fall back to the defaults; the search text is kept verbatim.
func ParseQueryState(q url.Values) query.State {
	st := query.DefaultState()
	if v := strings.TrimSpace(q.Get(ParamSort)); v != "" {
		st.Sort = query.SortKey(v)
	}
	if v := strings.TrimSpace(q.Get(ParamCategory)); v != "" {
		st.Category = v
	}
	st.Search = q.Get(ParamSearch)
	st.CaseSensitive = isTruthy(q.Get(ParamCaseSensitive))
	return st
}

// EncodeQueryState renders st back into query parameters, omitting defaults.
func EncodeQueryState(st query.State) url.Values {
	v := url.Values{}
	if st.Sort != "" && st.Sort != query.DefaultSort {
		v.Set(ParamSort, string(st.Sort))
	}
	if st.Category != "" && st.Category != core.CategoryAll {
		v.Set(ParamCategory, st.Category)
	}
	if st.Search != "" {
		v.Set(ParamSearch, st.Search)
	}
	if st.CaseSensitive {
		v.Set(ParamCaseSensitive, "1")
	}
	return v
}

// IsConfirmed reports whether a destructive action carries an explicit
// confirmation.
func IsConfirmed(v string) bool {
	return isTruthy(v)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// bodyFields holds the decoded fields of a record submission. htmx posts
// form-encoded bodies; API clients may send a JSON object instead.
type bodyFields map[string]string

// readBody decodes r's body by sniffing its first byte, so a missing or
// wrong Content-Type still works. JSON numbers and booleans are kept in
// their literal form for validation.
func readBody(w http.ResponseWriter, r *http.Request) (bodyFields, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		return nil, err
	}
	fields := bodyFields{}
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return fields, nil
	}

	if raw[0] == '{' {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		for k, v := range obj {
			fields[k] = jsonLiteral(v)
		}
		return fields, nil
	}

	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, err
	}
	for k := range form {
		fields[k] = form.Get(k)
	}
	return fields, nil
}

// get strips control characters but keeps surrounding spaces so validation
// can reject them.
func (f bodyFields) get(key string) string {
	return sanitizeInput(f[key])
}

func (f bodyFields) recordInput() validate.RecordInput {
	return validate.RecordInput{
		Description: f.get(validate.FieldDescription),
		Amount:      f.get(validate.FieldAmount),
		Date:        f.get(validate.FieldDate),
		Category:    f.get(validate.FieldCategory),
		Notes:       f.get(validate.FieldNotes),
	}
}

// jsonLiteral flattens a JSON value to the string a form would carry.
// Objects, arrays and null become empty.
func jsonLiteral(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	lit := strings.TrimSpace(string(v))
	switch {
	case lit == "true" || lit == "false":
		return lit
	case lit != "" && (lit[0] == '-' || (lit[0] >= '0' && lit[0] <= '9')):
		return lit
	default:
		return ""
	}
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET allows GET and HEAD.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet, http.MethodHead)
}

// ParseFormOrFail parses r's form, or returns the 400 or 413 to send.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError maps a body read failure to its response.
func bodyError(err error) *HTMXResponseBuilder {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return ErrorResponse(http.StatusRequestEntityTooLarge, "Request body is too large.")
	}
	return BadRequestError("Invalid request format")
}
