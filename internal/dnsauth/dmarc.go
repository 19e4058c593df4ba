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
	"fmt"
	"strings"

	"github.com/emersion/go-msgauth/dmarc"

	"github.com/lukasdietrich/briefsend/internal/models"
)

// DMARCName returns the dns name the DMARC policy of domain is published under.
func DMARCName(domain string) string {
	return "_dmarc." + domain
}

// ParseDMARC parses a DMARC record. Besides the syntax, the percentage has to be within 0 and
// 100 and every mailto report address has to be a valid address.
func ParseDMARC(raw string) (*dmarc.Record, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))

	record, err := dmarc.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	if record.Percent != nil && (*record.Percent < 0 || *record.Percent > 100) {
		return nil, fmt.Errorf("%w: pct must be between 0 and 100", ErrMalformedRecord)
	}

	for _, uri := range append(record.ReportURIAggregate, record.ReportURIFailure...) {
		if err := validateReportURI(uri); err != nil {
			return nil, err
		}
	}

	return record, nil
}

func validateReportURI(uri string) error {
	if !strings.HasPrefix(strings.ToLower(uri), "mailto:") {
		return nil
	}

	address := uri[len("mailto:"):]

	// an optional size limit may follow the address (RFC#7489 6.2)
	if bang := strings.IndexByte(address, '!'); bang >= 0 {
		address = address[:bang]
	}

	if _, err := models.Parse(address); err != nil {
		return fmt.Errorf("%w: invalid report address %q", ErrMalformedRecord, address)
	}

	return nil
}

// dmarcTerms renders the relevant tags of a parsed record.
func dmarcTerms(record *dmarc.Record) []string {
	terms := []string{"p=" + string(record.Policy)}

	if record.SubdomainPolicy != "" {
		terms = append(terms, "sp="+string(record.SubdomainPolicy))
	}

	if record.Percent != nil {
		terms = append(terms, fmt.Sprintf("pct=%d", *record.Percent))
	}

	if len(record.ReportURIAggregate) > 0 {
		terms = append(terms, "rua="+strings.Join(record.ReportURIAggregate, ","))
	}

	if len(record.ReportURIFailure) > 0 {
		terms = append(terms, "ruf="+strings.Join(record.ReportURIFailure, ","))
	}

	return terms
}
