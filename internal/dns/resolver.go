// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/log"
)

var (
	// ErrNotFound is returned when a name does not exist or has no record of the requested type.
	ErrNotFound = errors.New("dns: record not found")
	// ErrLookupFailed is returned when no nameserver gave a usable answer, because of network
	// errors, timeouts or SERVFAIL/REFUSED responses.
	ErrLookupFailed = errors.New("dns: lookup failed")
)

func init() {
	viper.SetDefault("dns.nameservers", []string{"1.1.1.1", "1.0.0.1", "8.8.8.8", "8.8.4.4"})
	viper.SetDefault("dns.timeout", "5s")
	viper.SetDefault("dns.retries", 2)
}

// Resolver looks up the records needed to validate a sender domain.
type Resolver interface {
	// LookupTXT returns all TXT records of name. Records split into multiple strings are joined.
	LookupTXT(ctx context.Context, name string) ([]string, error)
	// LookupIP returns the A and AAAA records of name.
	LookupIP(ctx context.Context, name string) ([]net.IP, error)
	// LookupMX returns the exchange hosts of name, ordered by preference.
	LookupMX(ctx context.Context, name string) ([]string, error)
}

// ClientOptions configures the nameservers queried by a Client.
type ClientOptions struct {
	Nameservers []string
	Timeout     time.Duration
	Retries     int
}

// ClientOptionsFromViper reads the ClientOptions from the global configuration.
func ClientOptionsFromViper() ClientOptions {
	return ClientOptions{
		Nameservers: viper.GetStringSlice("dns.nameservers"),
		Timeout:     viper.GetDuration("dns.timeout"),
		Retries:     viper.GetInt("dns.retries"),
	}
}

// Client is a Resolver, that queries the configured nameservers directly.
type Client struct {
	udp         *dns.Client
	tcp         *dns.Client
	nameservers []string
	retries     int
}

// NewClient creates a new Client. Without configured nameservers, the system's
// /etc/resolv.conf is used.
func NewClient(options ClientOptions) (*Client, error) {
	nameservers, err := normalizeNameservers(options.Nameservers)
	if err != nil {
		return nil, err
	}

	return &Client{
		udp:         &dns.Client{Net: "udp", Timeout: options.Timeout},
		tcp:         &dns.Client{Net: "tcp", Timeout: options.Timeout},
		nameservers: nameservers,
		retries:     options.Retries,
	}, nil
}

func normalizeNameservers(nameservers []string) ([]string, error) {
	if len(nameservers) == 0 {
		config, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("could not read system resolver configuration: %w", err)
		}

		for _, server := range config.Servers {
			nameservers = append(nameservers, net.JoinHostPort(server, config.Port))
		}

		return nameservers, nil
	}

	normalized := make([]string, len(nameservers))

	for i, server := range nameservers {
		server = strings.TrimSpace(server)

		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}

		normalized[i] = server
	}

	return normalized, nil
}

func (c *Client) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)

	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		for _, server := range c.nameservers {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, name, err)
			}

			res, err := c.exchange(ctx, msg, server)
			if err != nil {
				log.DebugContext(ctx).
					Str("name", name).
					Str("type", dns.TypeToString[qtype]).
					Str("nameserver", server).
					Err(err).
					Msg("dns query failed")

				lastErr = err
				continue
			}

			return res, nil
		}
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrLookupFailed, name, lastErr)
}

func (c *Client) exchange(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
	res, _, err := c.udp.ExchangeContext(ctx, msg, server)
	if err == nil && res.Truncated {
		res, _, err = c.tcp.ExchangeContext(ctx, msg, server)
	}

	if err != nil {
		return nil, err
	}

	switch res.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		return res, nil
	default:
		return nil, fmt.Errorf("nameserver answered %s", dns.RcodeToString[res.Rcode])
	}
}

func (c *Client) answers(ctx context.Context, name string, qtype uint16) ([]dns.RR, error) {
	res, err := c.query(ctx, name, qtype)
	if err != nil {
		return nil, err
	}

	if res.Rcode == dns.RcodeNameError {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNotFound, name)
	}

	var answers []dns.RR

	for _, rr := range res.Answer {
		if rr.Header().Rrtype == qtype {
			answers = append(answers, rr)
		}
	}

	if len(answers) == 0 {
		return nil, fmt.Errorf("%w: no %s record for %s", ErrNotFound, dns.TypeToString[qtype], name)
	}

	return answers, nil
}

func (c *Client) LookupTXT(ctx context.Context, name string) ([]string, error) {
	answers, err := c.answers(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}

	records := make([]string, 0, len(answers))

	for _, rr := range answers {
		records = append(records, strings.Join(rr.(*dns.TXT).Txt, ""))
	}

	return records, nil
}

func (c *Client) LookupIP(ctx context.Context, name string) ([]net.IP, error) {
	var ips []net.IP

	for _, qtype := range [...]uint16{dns.TypeA, dns.TypeAAAA} {
		answers, err := c.answers(ctx, name, qtype)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}

			return nil, err
		}

		for _, rr := range answers {
			switch rr := rr.(type) {
			case *dns.A:
				ips = append(ips, rr.A)
			case *dns.AAAA:
				ips = append(ips, rr.AAAA)
			}
		}
	}

	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: no address for %s", ErrNotFound, name)
	}

	return ips, nil
}

func (c *Client) LookupMX(ctx context.Context, name string) ([]string, error) {
	answers, err := c.answers(ctx, name, dns.TypeMX)
	if err != nil {
		return nil, err
	}

	records := make([]*dns.MX, 0, len(answers))

	for _, rr := range answers {
		records = append(records, rr.(*dns.MX))
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Preference < records[j].Preference
	})

	hosts := make([]string, len(records))

	for i, mx := range records {
		hosts[i] = strings.TrimSuffix(mx.Mx, ".")
	}

	return hosts, nil
}

// FirstTXT returns the first TXT record of name, that starts with prefix. The prefix is compared
// case-insensitively. If no record matches, ErrNotFound is returned.
func FirstTXT(ctx context.Context, resolver Resolver, name, prefix string) (string, error) {
	records, err := resolver.LookupTXT(ctx, name)
	if err != nil {
		return "", err
	}

	for _, record := range records {
		if len(record) >= len(prefix) && strings.EqualFold(record[:len(prefix)], prefix) {
			return record, nil
		}
	}

	return "", fmt.Errorf("%w: no %q record for %s", ErrNotFound, prefix, name)
}
