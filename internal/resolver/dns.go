package resolver

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DNSClient sends SRV questions directly to a configured DNS server.
type DNSClient struct {
	client *dns.Client
	server string
}

// NewDNSClient creates a client for server ("host" or "host:port", port 53 by default).
func NewDNSClient(server string, timeout time.Duration) *DNSClient {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}

	return &DNSClient{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		server: server,
	}
}

// LookupSRV implements SRVLookuper. Records are returned in answer order.
func (c *DNSClient) LookupSRV(ctx context.Context, service, proto, name string) (string, []*net.SRV, error) {
	question := "_" + service + "._" + proto + "." + dns.Fqdn(name)

	msg := &dns.Msg{}
	msg.SetQuestion(question, dns.TypeSRV)
	msg.RecursionDesired = true

	resp, _, err := c.client.ExchangeContext(ctx, msg, c.server)
	if err != nil {
		return question, nil, fmt.Errorf("srv exchange %s: %w", question, err)
	}
	if resp == nil {
		return question, nil, fmt.Errorf("srv %s: empty response", question)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return question, nil, fmt.Errorf("srv %s: %s", question, dns.RcodeToString[resp.Rcode])
	}

	var records []*net.SRV
	for _, answer := range resp.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, &net.SRV{
				Target:   srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}

	return question, records, nil
}
