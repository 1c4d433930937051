// Package response stages structured JSON responses so middleware further up
// the chain can still amend the body before it is serialized. The rolling
// token renewal relies on this: a renewed token is set as a field on the
// pending envelope, never patched into already-written bytes.
package response

import (
	"github.com/gin-gonic/gin"
)

const envelopeKey = "response.envelope"

// Envelope is a staged response: a status code plus a JSON object body.
type Envelope struct {
	Status int
	Body   gin.H
}

// JSON stages a response to be flushed by the Flush middleware. Handlers
// that need a non-object body (files, images) write directly instead.
func JSON(c *gin.Context, status int, body gin.H) {
	if body == nil {
		body = gin.H{}
	}
	c.Set(envelopeKey, &Envelope{Status: status, Body: body})
}

// Pending returns the staged envelope, if any.
func Pending(c *gin.Context) (*Envelope, bool) {
	v, ok := c.Get(envelopeKey)
	if !ok {
		return nil, false
	}
	env, ok := v.(*Envelope)
	return env, ok
}

// Flush returns the outermost middleware that serializes the staged
// envelope after the rest of the chain has run. Responses written directly
// by handlers or aborts pass through untouched.
func Flush() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}
		if env, ok := Pending(c); ok {
			c.JSON(env.Status, env.Body)
		}
	}
}
