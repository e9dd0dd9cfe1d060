package api

import (
	"context"
	"fmt"
	"time"
	"osrs-tracker/internal/constants"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// upstream is the transport shared by the hiscores and history clients.
type upstream struct {
	client  *fasthttp.Client
	limiter *rate.Limiter
}

type rawResponse struct {
	status int
	body   []byte
	date   time.Time
}

func newFastHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		MaxConnsPerHost:     100,
		ReadTimeout:         constants.ExternalAPITimeout,
		WriteTimeout:        constants.ExternalAPITimeout,
		MaxIdleConnDuration: 1 * time.Minute,
	}
}

func newLimiter(rps float64) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
}

func (u *upstream) get(ctx context.Context, url string) (*rawResponse, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetUserAgent(constants.UserAgent)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := u.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := u.client.DoTimeout(req, resp, constants.ExternalAPITimeout); err != nil {
			return nil, err
		}
	}

	result := &rawResponse{
		status: resp.StatusCode(),
		// the body is released with resp
		body: append([]byte(nil), resp.Body()...),
	}
	if date, err := fasthttp.ParseHTTPDate(resp.Header.Peek(fasthttp.HeaderDate)); err == nil {
		result.date = date
	}
	return result, nil
}
