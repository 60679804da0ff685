// Package hostaddr resolves the address this instance reports to registrants.
package hostaddr

import (
	"context"
	"net"
	"os"
	"sync"
	"time"
)

// probeTarget is only used to pick the outbound interface; UDP "dial" sends nothing.
const probeTarget = "192.0.2.1:80"

const unknownAddress = "unknown"

const detectTimeout = 2 * time.Second

// Resolver returns the configured override, or detects the primary outbound
// IP once and caches it. Detection falls back to the hostname.
type Resolver struct {
	override string
	detect   func(ctx context.Context) string

	once     sync.Once
	resolved string
}

// New builds a Resolver. An empty override enables detection.
func New(override string) *Resolver {
	return &Resolver{override: override, detect: detect}
}

// Resolve never fails; it returns "unknown" when nothing can be determined.
func (r *Resolver) Resolve(ctx context.Context) string {
	if r.override != "" {
		return r.override
	}
	// the result is cached for the process, so the first caller's
	// cancellation must not decide it
	r.once.Do(func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detectTimeout)
		defer cancel()
		r.resolved = r.detect(dctx)
	})
	return r.resolved
}

func detect(ctx context.Context) string {
	var d net.Dialer
	if conn, err := d.DialContext(ctx, "udp", probeTarget); err == nil {
		defer conn.Close()
		if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsUnspecified() {
			return addr.IP.String()
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return unknownAddress
}
