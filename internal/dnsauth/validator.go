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
	"strings"

	"github.com/spf13/viper"
	"github.com/zaccone/spf"

	"github.com/lukasdietrich/briefsend/internal/dns"
	"github.com/lukasdietrich/briefsend/internal/log"
)

const (
	// EvaluatorMechanisms evaluates ip4, ip6, include, a, mx and all mechanisms.
	EvaluatorMechanisms = "mechanisms"
	// EvaluatorRFC7208 delegates to a complete RFC#7208 check_host implementation.
	EvaluatorRFC7208 = "rfc7208"
)

func init() {
	viper.SetDefault("validation.dkim", true)
	viper.SetDefault("validation.dmarc", true)
	viper.SetDefault("validation.sending_ips", []string{})
	viper.SetDefault("validation.spf.evaluator", EvaluatorMechanisms)
}

// checkHost is replaced in tests, because the rfc7208 evaluator uses the system resolver.
var checkHost = spf.CheckHost

// ValidatorOptions configures which records are validated.
type ValidatorOptions struct {
	// RelayHost is the hostname of the smtp relay. Its addresses are used as sending ips, unless
	// SendingIPs is set.
	RelayHost  string
	SendingIPs []net.IP
	DKIM       bool
	DMARC      bool
	Evaluator  string
}

// ValidatorOptionsFromViper reads the ValidatorOptions from the global configuration.
func ValidatorOptionsFromViper() (ValidatorOptions, error) {
	var ips []net.IP

	for _, raw := range viper.GetStringSlice("validation.sending_ips") {
		ip := net.ParseIP(strings.TrimSpace(raw))
		if ip == nil {
			return ValidatorOptions{}, fmt.Errorf("invalid sending ip %q", raw)
		}

		ips = append(ips, ip)
	}

	return ValidatorOptions{
		RelayHost:  viper.GetString("mail.server"),
		SendingIPs: ips,
		DKIM:       viper.GetBool("validation.dkim"),
		DMARC:      viper.GetBool("validation.dmarc"),
		Evaluator:  viper.GetString("validation.spf.evaluator"),
	}, nil
}

// Validator checks, that a sender domain publishes the records required to send through the
// relay.
type Validator struct {
	resolver dns.Resolver
	options  ValidatorOptions
}

func NewValidator(resolver dns.Resolver, options ValidatorOptions) (*Validator, error) {
	switch options.Evaluator {
	case "":
		options.Evaluator = EvaluatorMechanisms
	case EvaluatorMechanisms, EvaluatorRFC7208:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvaluator, options.Evaluator)
	}

	return &Validator{
		resolver: resolver,
		options:  options,
	}, nil
}

// Validate looks up the SPF, DKIM and (optionally) DMARC records of domain. Missing or
// unsatisfying records result in a failed verdict within the report. An error is only returned
// for configuration problems and dns lookup failures.
func (v *Validator) Validate(ctx context.Context, domain, selector string) (*Report, error) {
	if v.options.DKIM && selector == "" {
		return nil, ErrSelectorUnset
	}

	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	ctx = log.WithDomain(ctx, domain)

	report := Report{Domain: domain, Selector: selector}

	spfRecord, err := v.validateSPF(ctx, domain)
	if err != nil {
		return nil, err
	}

	report.SPF = spfRecord.Pass
	report.Records = append(report.Records, spfRecord)

	if v.options.DKIM {
		dkimRecord, err := v.validateDKIM(ctx, domain, selector)
		if err != nil {
			return nil, err
		}

		report.DKIM = dkimRecord.Pass
		report.Records = append(report.Records, dkimRecord)
	} else {
		report.DKIM = true
	}

	if v.options.DMARC {
		dmarcRecord, policy, err := v.validateDMARC(ctx, domain)
		if err != nil {
			return nil, err
		}

		report.DMARC = policy
		report.Records = append(report.Records, dmarcRecord)
	}

	for _, record := range report.Records {
		event := log.DebugContext(ctx).
			Stringer("kind", record.Kind).
			Str("name", record.Name).
			Bool("pass", record.Pass)

		if record.Err != nil {
			event = event.AnErr("reason", record.Err)
		}

		event.Msg("authentication record checked")
	}

	log.InfoContext(ctx).
		Bool("spf", report.SPF).
		Bool("dkim", report.DKIM).
		Interface("dmarc", report.DMARC).
		Msg("sender domain validated")

	return &report, nil
}

// resolveRecord turns an absent or unusable record into a failed verdict and keeps lookup
// failures as error.
func resolveRecord(record *Record, err error) (*Record, error) {
	if err == nil {
		return record, nil
	}

	if errors.Is(err, dns.ErrLookupFailed) {
		return nil, fmt.Errorf("could not look up %s record of %s: %w", record.Kind, record.Name, err)
	}

	record.Pass = false
	record.Err = err

	return record, nil
}

func (v *Validator) sendingIPs(ctx context.Context) ([]net.IP, error) {
	if len(v.options.SendingIPs) > 0 {
		return v.options.SendingIPs, nil
	}

	if ip := net.ParseIP(v.options.RelayHost); ip != nil {
		return []net.IP{ip}, nil
	}

	ips, err := v.resolver.LookupIP(ctx, v.options.RelayHost)
	if err != nil {
		return nil, fmt.Errorf("could not resolve relay host %q: %w", v.options.RelayHost, err)
	}

	return ips, nil
}

func (v *Validator) validateSPF(ctx context.Context, domain string) (*Record, error) {
	record := Record{Name: domain, Kind: KindSPF}

	raw, err := lookupSPF(ctx, v.resolver, domain)
	if err != nil {
		return resolveRecord(&record, err)
	}

	record.Raw = raw

	parsed, err := ParseSPF(raw)
	if err != nil {
		return resolveRecord(&record, err)
	}

	record.Terms = parsed.Terms()

	ips, err := v.sendingIPs(ctx)
	if err != nil {
		if errors.Is(err, dns.ErrNotFound) {
			return resolveRecord(&record, err)
		}

		return nil, err
	}

	var pass bool

	switch v.options.Evaluator {
	case EvaluatorRFC7208:
		pass, err = v.checkHost(ctx, domain, ips)
	default:
		evaluator := spfEvaluator{
			resolver:  v.resolver,
			ips:       ips,
			relayHost: v.options.RelayHost,
		}

		pass, err = evaluator.evaluate(ctx, domain, parsed)
	}

	if err != nil {
		return resolveRecord(&record, err)
	}

	if !pass {
		return resolveRecord(&record, fmt.Errorf("%w: %v", ErrNotCovered, ips))
	}

	record.Pass = true
	return &record, nil
}

func (v *Validator) checkHost(ctx context.Context, domain string, ips []net.IP) (bool, error) {
	sender := "postmaster@" + domain

	for _, ip := range ips {
		result, _, err := checkHost(ip, domain, sender)

		log.DebugContext(ctx).
			Stringer("ip", ip).
			Stringer("result", result).
			Err(err).
			Msg("spf check_host result")

		switch result {
		case spf.Pass:
			return true, nil
		case spf.Temperror:
			return false, fmt.Errorf("%w: %s: %v", dns.ErrLookupFailed, domain, err)
		case spf.Permerror:
			return false, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}

	return false, nil
}

func (v *Validator) validateDKIM(ctx context.Context, domain, selector string) (*Record, error) {
	record := Record{Name: DKIMName(selector, domain), Kind: KindDKIM}

	raw, err := dns.FirstTXT(ctx, v.resolver, record.Name, dkimVersion)
	if err != nil {
		return resolveRecord(&record, err)
	}

	record.Raw = raw

	parsed, err := ParseDKIM(raw)
	if err != nil {
		return resolveRecord(&record, err)
	}

	record.Terms = parsed.Terms()
	record.Pass = true

	return &record, nil
}

func (v *Validator) validateDMARC(ctx context.Context, domain string) (*Record, *Policy, error) {
	record := Record{Name: DMARCName(domain), Kind: KindDMARC}

	raw, err := dns.FirstTXT(ctx, v.resolver, record.Name, "v=DMARC1")
	if err != nil {
		resolved, err := resolveRecord(&record, err)
		return resolved, nil, err
	}

	record.Raw = raw

	parsed, err := ParseDMARC(raw)
	if err != nil {
		resolved, err := resolveRecord(&record, err)
		return resolved, nil, err
	}

	record.Terms = dmarcTerms(parsed)
	record.Pass = true

	policy := parsed.Policy
	return &record, &policy, nil
}
