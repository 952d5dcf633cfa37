package fakeservice

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type faultKind int

const (
	faultDrop faultKind = iota + 1
	faultHTTP
	faultRaw
	faultDelay
)

// Fault is a scripted failure applied to one request.
type Fault struct {
	kind    faultKind
	status  int
	message string
	body    string
	delay   time.Duration
}

// DropConnection closes the connection without a response. It needs a real
// listener such as httptest.Server.
func DropConnection() Fault {
	return Fault{kind: faultDrop}
}

// HTTPError answers with status and a SOAP fault carrying message.
func HTTPError(status int, message string) Fault {
	return Fault{kind: faultHTTP, status: status, message: message}
}

// RawResponse answers 200 with body verbatim.
func RawResponse(body string) Fault {
	return Fault{kind: faultRaw, body: body}
}

// Delay holds the request for d, then serves it normally.
func Delay(d time.Duration) Fault {
	return Fault{kind: faultDelay, delay: d}
}

// apply reports whether the request was fully handled
func (f Fault) apply(c *gin.Context) bool {
	switch f.kind {
	case faultDrop:
		conn, _, err := c.Writer.Hijack()
		if err != nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return true
		}
		_ = conn.Close()
		c.Abort()
		return true
	case faultHTTP:
		writeFault(c, f.status, "s:Server", f.message)
		return true
	case faultRaw:
		c.Data(http.StatusOK, contentType, []byte(f.body))
		return true
	case faultDelay:
		sleepCtx(c.Request.Context(), f.delay)
		return c.Request.Context().Err() != nil
	}
	return false
}
