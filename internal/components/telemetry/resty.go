package telemetry

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	report_resty_request  = "resty.request"
	report_resty_response = "resty.response"
)

type instrumentResty struct {
	tel       API
	idcounter *uint64
	redact    []string
}

// InstrumentResty reports every request, response and transport error made by the client.
// Any string in `redact` (bot tokens, passwords in query strings) is masked in the reported url.
func InstrumentResty(client *resty.Client, tel API, redact ...string) {
	var idcounter uint64
	i := instrumentResty{tel: tel, idcounter: &idcounter}
	for _, r := range redact {
		if r != "" {
			i.redact = append(i.redact, r)
		}
	}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id uint64
	// startTime does not need to rely on chrono because it does not depend on the
	// absolute time, just the difference in time.
	startTime time.Time
}

func (i instrumentResty) url(raw string) string {
	for _, r := range i.redact {
		raw = strings.ReplaceAll(raw, r, "***")
	}
	return raw
}

func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx := req.Context()

	id := atomic.AddUint64(i.idcounter, 1)
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		startTime: time.Now(),
	})
	i.tel.ReportDebug(report_resty_request, id, req.Method, i.url(req.URL))

	req.SetContext(ctx)
	return nil
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	reqCtx, ok := res.Request.Context().Value(reqCtxKey).(reqCtx)
	if !ok {
		return nil
	}

	i.tel.ReportDebug(
		report_resty_response,
		reqCtx.id,
		time.Since(reqCtx.startTime).String(),
		res.Status(),
	)
	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	var duration time.Duration
	reqCtx, ok := req.Context().Value(reqCtxKey).(reqCtx)
	if ok {
		duration = time.Since(reqCtx.startTime)
	}

	// transport failures are retried by the caller, brokenness is reported there
	i.tel.ReportWarning(
		report_resty_response,
		i.url(err.Error()),
		req.Method,
		i.url(req.URL),
		duration.String(),
	)
}
