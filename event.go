package apmz

import (
	"maps"
	"time"

	"github.com/zoobzio/clockz"
)

// timestampLayout renders UTC timestamps with microsecond precision.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// Default meta values for every event.
const (
	DefaultResult = "200"
	DefaultType   = "generic"
)

// Meta describes the outcome of an event.
type Meta struct {
	Result string
	Type   string
}

// Response describes the HTTP response an event belongs to.
type Response struct {
	Finished    bool `json:"finished"`
	HeadersSent bool `json:"headers_sent"`
	StatusCode  int  `json:"status_code"`
}

// ResponsePatch updates selected response fields. Nil fields are left as they are.
type ResponsePatch struct {
	Finished    *bool
	HeadersSent *bool
	StatusCode  *int
}

func defaultResponse() Response {
	return Response{Finished: true, HeadersSent: true, StatusCode: 200}
}

// Contexts carries the user supplied context of an event.
// Nil members are treated as "not supplied".
type Contexts struct {
	User     map[string]any
	Custom   map[string]any
	Tags     map[string]string
	Response *Response
	// Env is the allow-list of environment entries reported with the event.
	// Empty means all entries.
	Env []string
}

// MergeContexts layers over on top of base. Map members are merged key by
// key with over winning; Env and Response are replaced when over sets them.
// Neither argument is modified.
func MergeContexts(base, over Contexts) Contexts {
	out := Contexts{
		User:     mergeMaps(base.User, over.User),
		Custom:   mergeMaps(base.Custom, over.Custom),
		Tags:     mergeMaps(base.Tags, over.Tags),
		Env:      base.Env,
		Response: base.Response,
	}
	if over.Env != nil {
		out.Env = over.Env
	}
	if over.Response != nil {
		out.Response = over.Response
	}
	if out.Env != nil {
		out.Env = append([]string(nil), out.Env...)
	}
	if out.Response != nil {
		r := *out.Response
		out.Response = &r
	}
	return out
}

func mergeMaps[V any](base, over map[string]V) map[string]V {
	if base == nil && over == nil {
		return nil
	}
	out := make(map[string]V, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

// HasContext is implemented by every event that carries user context.
type HasContext interface {
	SetUserContext(user map[string]any)
	SetCustomContext(custom map[string]any)
	SetTags(tags map[string]string)
	SetResponse(patch ResponsePatch)
}

// HasMeta is implemented by every event that carries meta data.
type HasMeta interface {
	SetMeta(meta Meta)
}

// eventCore is the identity, timestamp and context state shared by all events.
// Events are NOT thread-safe - do not modify from multiple goroutines.
type eventCore struct {
	provider  ContextProvider
	user      map[string]any
	custom    map[string]any
	tags      map[string]string
	id        string
	timestamp string
	meta      Meta
	env       []string
	response  Response
}

func newEventCore(ids IDSource, clock clockz.Clock, provider ContextProvider, contexts Contexts) (eventCore, error) {
	if ids == nil {
		ids = defaultIDs()
	}
	if clock == nil {
		clock = clockz.RealClock
	}
	if provider == nil {
		provider = NewCLIProvider()
	}

	id, err := ids.NewID()
	if err != nil {
		return eventCore{}, err
	}

	core := eventCore{
		provider:  provider,
		id:        id,
		timestamp: clock.Now().UTC().Format(timestampLayout),
		meta:      Meta{Result: DefaultResult, Type: DefaultType},
		user:      map[string]any{},
		custom:    map[string]any{},
		tags:      map[string]string{},
		response:  defaultResponse(),
	}

	// Supplied members replace the defaults wholesale.
	if contexts.User != nil {
		core.user = maps.Clone(contexts.User)
	}
	if contexts.Custom != nil {
		core.custom = maps.Clone(contexts.Custom)
	}
	if contexts.Tags != nil {
		core.tags = maps.Clone(contexts.Tags)
	}
	if contexts.Env != nil {
		core.env = append([]string(nil), contexts.Env...)
	}
	if contexts.Response != nil {
		core.response = *contexts.Response
	}
	return core, nil
}

// ID returns the event's UUID.
func (e *eventCore) ID() string { return e.id }

// Timestamp returns the creation time of the event.
func (e *eventCore) Timestamp() string { return e.timestamp }

// Time parses the event timestamp.
func (e *eventCore) Time() time.Time {
	t, _ := time.Parse(timestampLayout, e.timestamp) //nolint:errcheck // written with the same layout
	return t
}

// Meta returns the event's meta data.
func (e *eventCore) Meta() Meta { return e.meta }

// SetMeta merges the non-empty fields of meta.
func (e *eventCore) SetMeta(meta Meta) {
	if meta.Result != "" {
		e.meta.Result = meta.Result
	}
	if meta.Type != "" {
		e.meta.Type = meta.Type
	}
}

// SetUserContext merges user into the user context.
func (e *eventCore) SetUserContext(user map[string]any) {
	maps.Copy(e.user, user)
}

// SetCustomContext merges custom into the custom context.
func (e *eventCore) SetCustomContext(custom map[string]any) {
	maps.Copy(e.custom, custom)
}

// SetTags merges tags into the tag context.
func (e *eventCore) SetTags(tags map[string]string) {
	maps.Copy(e.tags, tags)
}

// SetResponse merges the set fields of patch into the response context.
func (e *eventCore) SetResponse(patch ResponsePatch) {
	if patch.Finished != nil {
		e.response.Finished = *patch.Finished
	}
	if patch.HeadersSent != nil {
		e.response.HeadersSent = *patch.HeadersSent
	}
	if patch.StatusCode != nil {
		e.response.StatusCode = *patch.StatusCode
	}
}

// Contexts returns a copy of the accumulated context.
func (e *eventCore) Contexts() Contexts {
	r := e.response
	out := Contexts{
		User:     maps.Clone(e.user),
		Custom:   maps.Clone(e.custom),
		Tags:     maps.Clone(e.tags),
		Response: &r,
	}
	if e.env != nil {
		out.Env = append([]string(nil), e.env...)
	}
	return out
}

// RequestContext is the serialized context of an event.
type RequestContext struct {
	User    map[string]any    `json:"user,omitempty"`
	Custom  map[string]any    `json:"custom,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`
	Request RequestDetails    `json:"request"`
}

// RequestDetails is the request portion of RequestContext.
type RequestDetails struct {
	Cookies     map[string]string `json:"cookies,omitempty"`
	Env         map[string]string `json:"env"`
	Headers     RequestHeaders    `json:"headers"`
	URL         URLInfo           `json:"url"`
	HTTPVersion string            `json:"http_version"`
	Method      string            `json:"method"`
	Socket      Socket            `json:"socket"`
	Response    Response          `json:"response"`
}

// RequestHeaders is the reported header subset.
type RequestHeaders struct {
	UserAgent string `json:"user-agent"`
	Cookie    string `json:"cookie"`
}

// Socket describes the client connection.
type Socket struct {
	RemoteAddress string `json:"remote_address"`
	Encrypted     bool   `json:"encrypted"`
}

// RequestContext assembles the event context from the provider.
// It is rebuilt on every call.
func (e *eventCore) RequestContext() RequestContext {
	info := e.provider.Request()
	if info.Method == "" {
		info.Method = CLIMethod
	}

	ctx := RequestContext{
		Request: RequestDetails{
			HTTPVersion: info.HTTPVersion,
			Method:      info.Method,
			Socket: Socket{
				RemoteAddress: info.RemoteAddress,
				Encrypted:     info.Encrypted,
			},
			Response: e.response,
			URL:      info.URL,
			Headers: RequestHeaders{
				UserAgent: info.UserAgent,
				Cookie:    info.Cookie,
			},
			Env: filterEnv(info.Env, e.env),
		},
	}
	if len(info.Cookies) > 0 {
		ctx.Request.Cookies = maps.Clone(info.Cookies)
	}
	if len(e.user) > 0 {
		ctx.User = maps.Clone(e.user)
	}
	if len(e.custom) > 0 {
		ctx.Custom = maps.Clone(e.custom)
	}
	if len(e.tags) > 0 {
		ctx.Tags = maps.Clone(e.tags)
	}
	return ctx
}
