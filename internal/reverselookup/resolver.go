// Package reverselookup resolves the PTR name of a submitting client in the
// background while a submission is being processed.
package reverselookup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mjl-/adns"
)

var ErrNoRecord = errors.New("no PTR record")

type Resolver interface {
	// LookupPTR returns the first PTR name for ip without the trailing dot,
	// or ErrNoRecord.
	LookupPTR(ctx context.Context, ip string) (string, error)
}

type addrLookuper interface {
	LookupAddr(ctx context.Context, addr string) ([]string, adns.Result, error)
}

type DNSResolver struct {
	resolver addrLookuper
}

// NewDNSResolver uses adns.DefaultResolver when r is nil.
func NewDNSResolver(r *adns.Resolver) *DNSResolver {
	if r == nil {
		r = adns.DefaultResolver
	}
	return &DNSResolver{resolver: r}
}

func (r *DNSResolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	names, _, err := r.resolver.LookupAddr(ctx, ip)
	if err != nil {
		var dnsErr *adns.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", ErrNoRecord
		}
		return "", fmt.Errorf("ptr lookup for %s: %w", ip, err)
	}

	for _, name := range names {
		if name = strings.TrimSuffix(name, "."); name != "" {
			return name, nil
		}
	}
	return "", ErrNoRecord
}

type timeoutResolver struct {
	next    Resolver
	timeout time.Duration
}

// WithTimeout bounds every lookup made through next. A zero timeout returns
// next unchanged.
func WithTimeout(next Resolver, timeout time.Duration) Resolver {
	if timeout <= 0 {
		return next
	}
	return &timeoutResolver{next: next, timeout: timeout}
}

func (r *timeoutResolver) LookupPTR(ctx context.Context, ip string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.next.LookupPTR(ctx, ip)
}
