package api

import (
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// newTestUpstream serves handler over an in-memory listener and returns a client dialing it.
func newTestUpstream(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	go server.Serve(ln) //nolint:errcheck
	t.Cleanup(func() {
		require.NoError(t, server.Shutdown())
	})

	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
	}
}

// indexLite builds a hiscores body where every skill has the given experience.
func indexLite(experience int64) string {
	var b strings.Builder
	for i := range Skills {
		fmt.Fprintf(&b, "%d,%d,%d\n", i+1, 99, experience)
	}
	for i := range Activities {
		fmt.Fprintf(&b, "%d,%d\n", i+1, 10)
	}
	return b.String()
}

type counter struct {
	n atomic.Int32
}

func (c *counter) wrap(handler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		c.n.Add(1)
		handler(ctx)
	}
}

const testTTL = time.Minute
