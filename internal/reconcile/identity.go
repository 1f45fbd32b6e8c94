// Package reconcile pairs broker-feed orders with persisted order records,
// assigns stable identities to new orders, and classifies orders within an
// instrument: main vs sub-order, new-position vs exit-position, long vs short.
package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tracknote/internal/domain"
)

// Assigner derives stable identities for orders that lack one. Identity
// assignment happens at most once per order instance: the digest includes the
// current time, so two calls for otherwise-identical orders intentionally
// produce different identities.
type Assigner struct {
	now func() time.Time
}

// NewAssigner creates an Assigner using the wall clock.
func NewAssigner() *Assigner {
	return &Assigner{now: time.Now}
}

// SetClock replaces the time source, letting tests pin the digest input.
func (a *Assigner) SetClock(now func() time.Time) {
	a.now = now
}

// Assign returns the order's identity, computing and recording one if the
// order does not already carry it. Idempotent for orders with an identity.
func (a *Assigner) Assign(o *domain.Order) string {
	if o.Identity != "" {
		return o.Identity
	}

	status := o.Status
	if status == "" {
		status = "unknown"
	}
	base := fmt.Sprintf("%s-%s-%s-%v-%v-%v-%s",
		o.Instrument, o.Side, o.Kind,
		domain.QuantityOf(o), o.LimitPrice, o.StopPrice, status)

	digest := simpleHash(base + strconv.FormatInt(a.now().UnixMilli(), 10))
	o.Identity = fmt.Sprintf("TN-%s-%s", o.Instrument, digest)
	return o.Identity
}

// simpleHash reduces a string to a short digest: a rolling polynomial hash
// folded into a signed 32-bit integer, absolute value, hex, last 8 characters,
// upper-cased.
func simpleHash(s string) string {
	if s == "" {
		return "0"
	}
	var h int32
	for _, ch := range s {
		h = (h<<5 - h) + int32(ch)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	hex := strconv.FormatInt(v, 16)
	if len(hex) > 8 {
		hex = hex[len(hex)-8:]
	}
	return strings.ToUpper(hex)
}
