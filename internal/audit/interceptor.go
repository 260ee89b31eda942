package audit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"adminpanel/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ActorFunc returns the authenticated identity of the request, or nil.
type ActorFunc func(c *gin.Context) *models.User

// Interceptor observes completed requests and turns qualifying ones into
// activity records. Handlers need no knowledge of it, and nothing it does
// can change or delay the response beyond its own bookkeeping.
type Interceptor struct {
	sink    ActivitySink
	targets *TargetRegistry
	actor   ActorFunc
	log     *zap.Logger
	metrics *Metrics
}

func NewInterceptor(sink ActivitySink, targets *TargetRegistry, actor ActorFunc, log *zap.Logger, metrics *Metrics) *Interceptor {
	return &Interceptor{
		sink:    sink,
		targets: targets,
		actor:   actor,
		log:     log,
		metrics: metrics,
	}
}

// RequestState is what OnRequestStart captured for OnRequestComplete.
type RequestState struct {
	skip     bool
	target   *Target
	snapshot map[string]any
	body     *bodyRecorder
}

// bodyRecorder keeps a copy of the response body for diffing.
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.buf.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Handler runs OnRequestStart, the rest of the chain, then OnRequestComplete.
func (i *Interceptor) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		state := i.OnRequestStart(c)
		c.Next()
		i.OnRequestComplete(c, state)
	}
}

// OnRequestStart buffers update bodies and, for routes that carry an id,
// resolves the target before the handler can change or delete it.
func (i *Interceptor) OnRequestStart(c *gin.Context) (state *RequestState) {
	state = &RequestState{}
	defer func() {
		if p := recover(); p != nil {
			i.swallow(c, fmt.Errorf("panic in request start: %v", p))
		}
	}()

	if Excluded(c.Request.URL.Path) {
		state.skip = true
		return state
	}

	method := c.Request.Method
	isUpdate := method == http.MethodPut || method == http.MethodPatch

	var input map[string]any
	if isUpdate && c.Request.Body != nil {
		data, err := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(data))
		if err != nil {
			i.swallow(c, fmt.Errorf("read request body: %w", err))
		} else if len(data) > 0 {
			input, _ = decodeObject(data)
		}
	}

	if isUpdate || method == http.MethodPost {
		state.body = &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = state.body
	}

	id := c.Param("id")
	if id == "" || i.actor(c) == nil {
		return state
	}
	kind, ok := i.targets.KindForPath(c.FullPath())
	if !ok {
		return state
	}
	target, err := i.targets.Resolve(c.Request.Context(), kind, id)
	if err != nil {
		i.log.Debug("audit target not resolved", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return state
	}
	state.target = target
	if isUpdate {
		state.snapshot = Snapshot(input, target.Fields)
	}
	return state
}

// OnRequestComplete appends one activity record when the actor is an active
// identity, the response succeeded and the request classifies to an action.
func (i *Interceptor) OnRequestComplete(c *gin.Context, state *RequestState) {
	defer func() {
		if p := recover(); p != nil {
			i.swallow(c, fmt.Errorf("panic in request complete: %v", p))
		}
	}()

	if state == nil || state.skip {
		return
	}
	status := c.Writer.Status()
	if status < 200 || status >= 300 {
		return
	}
	actor := i.actor(c)
	if actor == nil || !actor.IsActive {
		return
	}
	action, ok := Classify(c.Request.Method, c.Request.URL.Path)
	if !ok {
		return
	}

	var response map[string]any
	if state.body != nil && state.body.buf.Len() > 0 {
		response, _ = decodeObject(state.body.buf.Bytes())
	}

	target := state.target
	if target == nil && action == models.ActionCreate {
		target = i.createdTarget(c, response)
	}

	rec := &models.ActivityLog{
		UserID:    actor.ID,
		Action:    action,
		IPAddress: optionalString(ClientIP(c.Request)),
		UserAgent: c.Request.UserAgent(),
	}
	if target != nil {
		kind := string(target.Kind)
		rec.TargetType = &kind
		rec.TargetID = optionalString(target.ID)
		rec.TargetSummary = target.Summary
	}
	if action == models.ActionUpdate && state.snapshot != nil && response != nil {
		rec.Changes = Diff(state.snapshot, response)
	}

	i.sink.Activity(rec)
}

// createdTarget resolves the entity a create returned, using the "id" of
// the response payload.
func (i *Interceptor) createdTarget(c *gin.Context, response map[string]any) *Target {
	raw, ok := response["id"]
	if !ok {
		return nil
	}
	kind, ok := i.targets.KindForPath(c.FullPath())
	if !ok {
		return nil
	}
	var id string
	switch v := raw.(type) {
	case float64:
		id = strconv.FormatInt(int64(v), 10)
	case string:
		id = v
	default:
		return nil
	}
	target, err := i.targets.Resolve(c.Request.Context(), kind, id)
	if err != nil {
		i.log.Debug("audit created target not resolved", zap.String("kind", string(kind)), zap.String("id", id), zap.Error(err))
		return nil
	}
	return target
}

func (i *Interceptor) swallow(c *gin.Context, err error) {
	i.metrics.InterceptorErrors.Inc()
	i.log.Warn("audit interceptor error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)
}
