// File: resolver/lookup.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The default lookup: direct A/AAAA queries against the servers from
// resolv.conf. Configuration is loaded once, on first use.

package resolver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// newDNSLookup builds the default LookupFunc. Each call queries the
// configured servers in order, A records first, then AAAA.
func newDNSLookup(timeout time.Duration) LookupFunc {
	var (
		once   sync.Once
		cfg    *dns.ClientConfig
		cfgErr error
	)
	client := &dns.Client{Timeout: timeout}

	return func(ctx context.Context, host string) (string, error) {
		once.Do(func() {
			cfg, cfgErr = dns.ClientConfigFromFile("/etc/resolv.conf")
		})
		if cfgErr != nil {
			return "", fmt.Errorf("resolver config: %w", cfgErr)
		}
		fqdn := dns.Fqdn(host)
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			msg := new(dns.Msg)
			msg.SetQuestion(fqdn, qtype)
			msg.RecursionDesired = true
			for _, server := range cfg.Servers {
				in, _, err := client.ExchangeContext(ctx, msg, net.JoinHostPort(server, cfg.Port))
				if err != nil || in == nil {
					continue
				}
				for _, rr := range in.Answer {
					switch a := rr.(type) {
					case *dns.A:
						return a.A.String(), nil
					case *dns.AAAA:
						return a.AAAA.String(), nil
					}
				}
			}
		}
		return "", fmt.Errorf("no address records for %q", host)
	}
}
