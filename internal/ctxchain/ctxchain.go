// Package ctxchain provides an immutable chain of request-scoped values.
//
// A Chain is a linked list of key/value pairs. Adding a value never mutates
// the parent, so a chain can be captured by jobs running on other goroutines
// without locking. Lookups walk from the newest pair to the oldest.
package ctxchain

import (
	"context"

	"threadkit/internal/collect"

	"github.com/segmentio/ksuid"
)

// Well-known keys set by Wrap.
const (
	KeyTraceID = "trace_id"
	KeyLocale  = "locale"
	KeyLang    = "lang"
)

// Defaults applied by Wrap when a chain has no trace id yet.
const (
	DefaultLocale = "zh"
	DefaultLang   = "ZH-CN"
)

// Chain is one immutable node of the chain. The nil *Chain is the empty chain.
type Chain struct {
	parent *Chain
	key    string
	val    any
}

// New returns the empty chain.
func New() *Chain {
	return nil
}

// WithValue returns a chain that carries val under key on top of parent.
func WithValue(parent *Chain, key string, val any) *Chain {
	return &Chain{parent: parent, key: key, val: val}
}

// Value looks up key and returns its value as T.
// The search stops at the newest pair with a matching key; if that value is
// not a T, the lookup reports not found.
func Value[T any](c *Chain, key string) (T, bool) {
	for n := c; n != nil; n = n.parent {
		if n.key == key {
			v, ok := n.val.(T)
			return v, ok
		}
	}
	var zero T
	return zero, false
}

// Wrap makes sure the chain carries a trace id.
// A chain that already has a non-empty string trace id is returned as is;
// otherwise a fresh ksuid trace id, the default locale and lang are added.
func Wrap(parent *Chain) *Chain {
	if id, ok := Value[string](parent, KeyTraceID); ok && id != "" {
		return parent
	}
	c := WithValue(parent, KeyTraceID, ksuid.New().String())
	c = WithValue(c, KeyLocale, DefaultLocale)
	return WithValue(c, KeyLang, DefaultLang)
}

// TraceID returns the trace id, or "" if none is set.
func TraceID(c *Chain) string {
	id, _ := Value[string](c, KeyTraceID)
	return id
}

// Locale returns the locale, or "" if none is set.
func Locale(c *Chain) string {
	v, _ := Value[string](c, KeyLocale)
	return v
}

// Lang returns the language tag, or "" if none is set.
func Lang(c *Chain) string {
	v, _ := Value[string](c, KeyLang)
	return v
}

// Keys returns the visible keys, newest first, without shadowed duplicates.
func Keys(c *Chain) []string {
	var keys []string
	for n := c; n != nil; n = n.parent {
		if !collect.Contains(keys, n.key, sameKey) {
			keys = append(keys, n.key)
		}
	}
	return keys
}

func sameKey(a, b string) bool { return a == b }

type contextKey struct{}

// NewContext returns a copy of ctx that carries c.
func NewContext(ctx context.Context, c *Chain) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// FromContext returns the chain stored in ctx, or the empty chain.
func FromContext(ctx context.Context) *Chain {
	c, _ := ctx.Value(contextKey{}).(*Chain)
	return c
}
