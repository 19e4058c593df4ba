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

package dnsauth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/lukasdietrich/briefsend/internal/dns"
	"github.com/lukasdietrich/briefsend/internal/log"
)

const (
	spfVersion = "v=spf1"
	// see RFC#7208 4.6.4
	spfLookupLimit   = 10
	spfMXLookupLimit = 10
)

// Qualifier is the result a matching spf mechanism yields.
type Qualifier byte

const (
	QualifierPass     Qualifier = '+'
	QualifierFail     Qualifier = '-'
	QualifierSoftFail Qualifier = '~'
	QualifierNeutral  Qualifier = '?'
)

// Mechanism is a single directive of an spf record.
type Mechanism struct {
	Qualifier Qualifier
	Name      string
	// Domain is the target of include, a, mx, ptr and exists. It is empty for a, mx and ptr
	// without explicit target.
	Domain string
	// Network is set for ip4 and ip6.
	Network *net.IPNet
	// CIDR4 and CIDR6 are the prefix lengths of a and mx. -1 if not given.
	CIDR4 int
	CIDR6 int
}

func (m Mechanism) String() string {
	var b strings.Builder

	if m.Qualifier != QualifierPass {
		b.WriteByte(byte(m.Qualifier))
	}

	b.WriteString(m.Name)

	switch {
	case m.Network != nil:
		b.WriteByte(':')
		b.WriteString(m.Network.String())
	case m.Domain != "":
		b.WriteByte(':')
		b.WriteString(m.Domain)
	}

	if m.CIDR4 >= 0 {
		fmt.Fprintf(&b, "/%d", m.CIDR4)
	}

	if m.CIDR6 >= 0 {
		fmt.Fprintf(&b, "//%d", m.CIDR6)
	}

	return b.String()
}

// hasMacro reports whether the target uses macro expansion, which is not supported.
func (m Mechanism) hasMacro() bool {
	return strings.Contains(m.Domain, "%")
}

// SPFRecord is a parsed "v=spf1" record.
type SPFRecord struct {
	Mechanisms  []Mechanism
	Redirect    string
	Explanation string
}

// Terms returns the textual form of all mechanisms and modifiers.
func (r *SPFRecord) Terms() []string {
	terms := make([]string, 0, len(r.Mechanisms)+2)

	for _, mechanism := range r.Mechanisms {
		terms = append(terms, mechanism.String())
	}

	if r.Redirect != "" {
		terms = append(terms, "redirect="+r.Redirect)
	}

	if r.Explanation != "" {
		terms = append(terms, "exp="+r.Explanation)
	}

	return terms
}

// isSPFRecord reports whether the TXT record is an spf record at all.
func isSPFRecord(txt string) bool {
	fields := strings.Fields(txt)
	return len(fields) > 0 && strings.EqualFold(fields[0], spfVersion)
}

// ParseSPF parses an spf record.
func ParseSPF(raw string) (*SPFRecord, error) {
	fields := strings.Fields(strings.Trim(strings.TrimSpace(raw), `"`))
	if len(fields) == 0 || !strings.EqualFold(fields[0], spfVersion) {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedRecord, spfVersion)
	}

	var record SPFRecord

	for _, term := range fields[1:] {
		if name, value, ok := parseModifier(term); ok {
			switch name {
			case "redirect":
				if record.Redirect != "" {
					return nil, fmt.Errorf("%w: duplicate redirect", ErrMalformedRecord)
				}

				record.Redirect = value
			case "exp":
				record.Explanation = value
			}

			continue
		}

		mechanism, err := parseMechanism(term)
		if err != nil {
			return nil, err
		}

		record.Mechanisms = append(record.Mechanisms, mechanism)
	}

	return &record, nil
}

func parseModifier(term string) (string, string, bool) {
	eq := strings.IndexByte(term, '=')
	if eq <= 0 || strings.ContainsAny(term[:eq], ":/") {
		return "", "", false
	}

	return strings.ToLower(term[:eq]), term[eq+1:], true
}

func parseMechanism(term string) (Mechanism, error) {
	m := Mechanism{Qualifier: QualifierPass, CIDR4: -1, CIDR6: -1}

	switch q := Qualifier(term[0]); q {
	case QualifierPass, QualifierFail, QualifierSoftFail, QualifierNeutral:
		m.Qualifier = q
		term = term[1:]
	}

	end := strings.IndexAny(term, ":/")
	if end < 0 {
		end = len(term)
	}

	m.Name = strings.ToLower(term[:end])
	rest := term[end:]

	malformed := func(reason string) (Mechanism, error) {
		return m, fmt.Errorf("%w: %s in %q", ErrMalformedRecord, reason, term)
	}

	switch m.Name {
	case "all":
		if rest != "" {
			return malformed("unexpected argument")
		}

	case "include", "exists":
		if !strings.HasPrefix(rest, ":") || len(rest) < 2 {
			return malformed("missing domain")
		}

		m.Domain = rest[1:]

	case "ptr":
		m.Domain = strings.TrimPrefix(rest, ":")

	case "a", "mx":
		if strings.HasPrefix(rest, ":") {
			rest = rest[1:]

			slash := strings.IndexByte(rest, '/')
			if slash < 0 {
				slash = len(rest)
			}

			m.Domain, rest = rest[:slash], rest[slash:]
			if m.Domain == "" {
				return malformed("missing domain")
			}
		}

		var err error
		if m.CIDR4, m.CIDR6, err = parseDualCIDR(rest); err != nil {
			return malformed(err.Error())
		}

	case "ip4", "ip6":
		if !strings.HasPrefix(rest, ":") {
			return malformed("missing network")
		}

		network, err := parseNetwork(rest[1:], m.Name == "ip6")
		if err != nil {
			return malformed(err.Error())
		}

		m.Network = network

	default:
		return malformed("unknown mechanism")
	}

	return m, nil
}

// parseDualCIDR parses "", "/24", "//64" and "/24//64".
func parseDualCIDR(s string) (int, int, error) {
	cidr4, cidr6 := -1, -1

	if s == "" {
		return cidr4, cidr6, nil
	}

	if i := strings.Index(s, "//"); i >= 0 {
		n, err := strconv.Atoi(s[i+2:])
		if err != nil || n < 0 || n > 128 {
			return 0, 0, errors.New("invalid ip6 cidr length")
		}

		cidr6, s = n, s[:i]
	}

	if s != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(s, "/"))
		if !strings.HasPrefix(s, "/") || err != nil || n < 0 || n > 32 {
			return 0, 0, errors.New("invalid ip4 cidr length")
		}

		cidr4 = n
	}

	return cidr4, cidr6, nil
}

func parseNetwork(s string, v6 bool) (*net.IPNet, error) {
	if !strings.Contains(s, "/") {
		if v6 {
			s += "/128"
		} else {
			s += "/32"
		}
	}

	ip, network, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}

	if (ip.To4() == nil) != v6 {
		return nil, errors.New("address family does not match mechanism")
	}

	return network, nil
}

// spfEvaluator walks spf records according to the supported subset of RFC#7208.
type spfEvaluator struct {
	resolver  dns.Resolver
	ips       []net.IP
	relayHost string
	lookups   int
}

func (e *spfEvaluator) countLookup() error {
	e.lookups++

	if e.lookups > spfLookupLimit {
		return ErrTooManyLookups
	}

	return nil
}

// lookupSPF returns the spf record published for domain or an error wrapping dns.ErrNotFound.
// More than one spf record is a permanent error (RFC#7208 4.5).
func lookupSPF(ctx context.Context, resolver dns.Resolver, domain string) (string, error) {
	records, err := resolver.LookupTXT(ctx, domain)
	if err != nil {
		return "", err
	}

	var found []string

	for _, record := range records {
		if isSPFRecord(record) {
			found = append(found, record)
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: no spf record for %s", dns.ErrNotFound, domain)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %d spf records for %s", ErrMalformedRecord, len(found), domain)
	}
}

// check evaluates the spf record of domain. Only lookup failures are returned as error, anything
// else results in a verdict.
func (e *spfEvaluator) check(ctx context.Context, domain string) (bool, error) {
	raw, err := lookupSPF(ctx, e.resolver, domain)
	if err != nil {
		return false, err
	}

	record, err := ParseSPF(raw)
	if err != nil {
		return false, err
	}

	return e.evaluate(ctx, domain, record)
}

func (e *spfEvaluator) evaluate(ctx context.Context, domain string, record *SPFRecord) (bool, error) {
	for _, mechanism := range record.Mechanisms {
		matched, err := e.matches(ctx, domain, mechanism)
		if err != nil {
			return false, err
		}

		if matched {
			log.TraceContext(ctx).
				Str("spfDomain", domain).
				Stringer("mechanism", mechanism).
				Msg("spf mechanism matched")

			return mechanism.Qualifier == QualifierPass, nil
		}
	}

	if record.Redirect != "" {
		if err := e.countLookup(); err != nil {
			return false, err
		}

		return e.check(ctx, record.Redirect)
	}

	return false, nil
}

func (e *spfEvaluator) matches(ctx context.Context, domain string, m Mechanism) (bool, error) {
	switch m.Name {
	case "all":
		return true, nil

	case "ip4", "ip6":
		return e.containsAny(m.Network), nil

	case "include":
		if strings.EqualFold(m.Domain, e.relayHost) {
			return true, nil
		}

		if err := e.countLookup(); err != nil {
			return false, err
		}

		if m.hasMacro() {
			return false, nil
		}

		pass, err := e.check(ctx, m.Domain)
		if isAbsent(err) {
			return false, nil
		}

		return pass, err

	case "a":
		if err := e.countLookup(); err != nil {
			return false, err
		}

		if m.hasMacro() {
			return false, nil
		}

		return e.matchesHost(ctx, targetOf(m, domain), m)

	case "mx":
		if err := e.countLookup(); err != nil {
			return false, err
		}

		if m.hasMacro() {
			return false, nil
		}

		hosts, err := e.resolver.LookupMX(ctx, targetOf(m, domain))
		if err != nil {
			if isAbsent(err) {
				return false, nil
			}

			return false, err
		}

		if len(hosts) > spfMXLookupLimit {
			return false, ErrTooManyLookups
		}

		for _, host := range hosts {
			matched, err := e.matchesHost(ctx, host, m)
			if matched || err != nil {
				return matched, err
			}
		}

		return false, nil

	default:
		// ptr and exists are counted but never match.
		return false, e.countLookup()
	}
}

func targetOf(m Mechanism, domain string) string {
	if m.Domain != "" {
		return m.Domain
	}

	return domain
}

func (e *spfEvaluator) matchesHost(ctx context.Context, host string, m Mechanism) (bool, error) {
	addrs, err := e.resolver.LookupIP(ctx, host)
	if err != nil {
		if isAbsent(err) {
			return false, nil
		}

		return false, err
	}

	for _, addr := range addrs {
		if e.containsAny(hostNetwork(addr, m.CIDR4, m.CIDR6)) {
			return true, nil
		}
	}

	return false, nil
}

func hostNetwork(addr net.IP, cidr4, cidr6 int) *net.IPNet {
	if v4 := addr.To4(); v4 != nil {
		if cidr4 < 0 {
			cidr4 = 32
		}

		return &net.IPNet{IP: v4.Mask(net.CIDRMask(cidr4, 32)), Mask: net.CIDRMask(cidr4, 32)}
	}

	if cidr6 < 0 {
		cidr6 = 128
	}

	return &net.IPNet{IP: addr.Mask(net.CIDRMask(cidr6, 128)), Mask: net.CIDRMask(cidr6, 128)}
}

func (e *spfEvaluator) containsAny(network *net.IPNet) bool {
	for _, ip := range e.ips {
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// isAbsent reports whether err means, that a record does not exist or cannot be used.
func isAbsent(err error) bool {
	return errors.Is(err, dns.ErrNotFound) || errors.Is(err, ErrMalformedRecord)
}
