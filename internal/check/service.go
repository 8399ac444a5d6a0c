// Package check probes attached domains for reachability. Its HTTP routes are
// part of the disabled legacy surface; the operations remain available to
// internal callers and an external scheduler if re-enabled.
package check

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"backlinkoo/domains/internal/config"
	"backlinkoo/domains/internal/models"
	"backlinkoo/domains/internal/netlify"

	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Result is one domain probe outcome. Status carries the HTTP status code of
// a HEAD request against the domain, or the string "unreachable".
type Result struct {
	Domain  string   `json:"domain"`
	Status  any      `json:"status"`
	Records []string `json:"records,omitempty"`
}

// Service probes domains over HTTPS and resolves their apex records.
type Service struct {
	netlify    *netlify.Client
	http       *http.Client
	resolver   string
	dnsTimeout time.Duration
	log        *logrus.Logger
}

// New builds the probe service. The DNS resolver defaults to the first
// nameserver in /etc/resolv.conf when left empty.
func New(cfg *config.Config, nf *netlify.Client, log *logrus.Logger) *Service {
	return &Service{
		netlify: nf,
		http: &http.Client{
			Timeout: cfg.HTTPTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dnsTimeout: 5 * time.Second,
		log:        log,
	}
}

// SetResolver overrides the DNS server used for record lookups, host:port.
func (s *Service) SetResolver(addr string) {
	s.resolver = addr
}

// CheckDomain issues a HEAD request against the domain and annotates the
// result with its resolved A/CNAME records.
func (s *Service) CheckDomain(ctx context.Context, rawDomain string) Result {
	clean := models.NormalizeDomain(rawDomain)
	result := Result{Domain: clean, Status: "unreachable"}
	if clean == "" {
		return result
	}

	result.Records = s.lookup(clean)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fmt.Sprintf("https://%s", clean), nil)
	if err != nil {
		return result
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return result
	}
	resp.Body.Close()
	result.Status = resp.StatusCode
	return result
}

// CheckAll probes every current alias concurrently.
func (s *Service) CheckAll(ctx context.Context) ([]Result, error) {
	site, err := s.netlify.GetSite(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(site.DomainAliases))
	var wg sync.WaitGroup
	for i, d := range site.DomainAliases {
		wg.Add(1)
		go func(i int, d string) {
			defer wg.Done()
			results[i] = s.CheckDomain(ctx, d)
		}(i, d)
	}
	wg.Wait()
	return results, nil
}

// lookup resolves A and CNAME records for diagnostics; resolution failures
// just leave the record list empty.
func (s *Service) lookup(domain string) []string {
	server := s.resolver
	if server == "" {
		cc, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil || len(cc.Servers) == 0 {
			return nil
		}
		server = net.JoinHostPort(cc.Servers[0], cc.Port)
	}

	client := &dns.Client{Timeout: s.dnsTimeout}
	var records []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeCNAME} {
		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(domain), qtype)
		resp, _, err := client.Exchange(msg, server)
		if err != nil || resp == nil {
			continue
		}
		for _, ans := range resp.Answer {
			switch rr := ans.(type) {
			case *dns.A:
				records = append(records, rr.A.String())
			case *dns.CNAME:
				records = append(records, rr.Target)
			}
		}
	}
	return records
}
