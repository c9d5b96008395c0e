package api

import (
	"net/http"
	"net/url"
	"strings"
)

// Mode selects which Result shape a request produces.
type Mode string

const (
	// ModeDefault issues one call and yields a JSONBody.
	ModeDefault Mode = "default"
	// ModePaginated follows continuation references and yields an ItemList.
	ModePaginated Mode = "paginated"
	// ModeLROJSON polls a long-running operation and yields its result JSONBody.
	ModeLROJSON Mode = "lro_json"
	// ModeLROStatus polls a long-running operation and yields the final StatusCode.
	ModeLROStatus Mode = "lro_status"
)

func modeNames() []string {
	return []string{string(ModeDefault), string(ModePaginated), string(ModeLROJSON), string(ModeLROStatus)}
}

// ParseMode parses a mode name. Unknown names yield *UnsupportedModeError.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return ModeDefault, nil
	}
	if !m.valid() {
		return "", &UnsupportedModeError{Mode: Mode(s)}
	}
	return m, nil
}

func (m Mode) valid() bool {
	switch m {
	case ModeDefault, ModePaginated, ModeLROJSON, ModeLROStatus:
		return true
	default:
		return false
	}
}

// DefaultItemsKey is where Fabric and Power BI list responses keep their items.
const DefaultItemsKey = "value"

// Request describes one logical call. The Normalizer never modifies it.
type Request struct {
	Method   string
	Audience Audience
	Route    string
	Query    url.Values
	// Body is JSON-encoded unless it is already []byte or json.RawMessage.
	Body any
	Mode Mode
	// StatusCodes, when set, is the exact set of acceptable statuses for the
	// initiating call. In the LRO modes 202 is always accepted as well.
	StatusCodes []int
	// ItemsKey overrides DefaultItemsKey for paginated calls.
	ItemsKey string
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func (r Request) itemsKey() string {
	if r.ItemsKey == "" {
		return DefaultItemsKey
	}
	return r.ItemsKey
}

func (r Request) accepts(status int) bool {
	if len(r.StatusCodes) == 0 {
		return status >= 200 && status < 300
	}
	for _, code := range r.StatusCodes {
		if code == status {
			return true
		}
	}
	return false
}

// Result is the sealed union of normalized outcomes: JSONBody, ItemList or
// StatusCode. Callers switch on the concrete type.
type Result interface {
	isResult()
}

// JSONBody is the parsed JSON object of a default or lro_json call.
type JSONBody map[string]any

// ItemList is the flattened, ordered item collection of a paginated call.
type ItemList []map[string]any

// StatusCode is the final HTTP status of an lro_status call.
type StatusCode int

func (JSONBody) isResult()   {}
func (ItemList) isResult()   {}
func (StatusCode) isResult() {}

// Matches reports whether r has the shape m produces.
func (m Mode) Matches(r Result) bool {
	switch r.(type) {
	case JSONBody:
		return m == ModeDefault || m == ModeLROJSON
	case ItemList:
		return m == ModePaginated
	case StatusCode:
		return m == ModeLROStatus
	default:
		return false
	}
}
