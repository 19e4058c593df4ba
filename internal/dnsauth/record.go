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
	"strings"

	"github.com/emersion/go-msgauth/dmarc"
)

// Kind is the type of an authentication record.
type Kind int

const (
	KindSPF Kind = iota
	KindDKIM
	KindDMARC
)

func (k Kind) String() string {
	switch k {
	case KindSPF:
		return "SPF"
	case KindDKIM:
		return "DKIM"
	case KindDMARC:
		return "DMARC"
	default:
		return "unknown"
	}
}

// Policy is the requested handling of mails failing DMARC.
type Policy = dmarc.Policy

// Record is a single looked up authentication record and its verdict.
type Record struct {
	// Name is the queried dns name.
	Name string
	Kind Kind
	// Raw is the published TXT record. It is empty if no record was found.
	Raw string
	// Terms are the parsed mechanisms (SPF) or tags (DKIM, DMARC).
	Terms []string
	Pass  bool
	// Err describes why the record did not pass.
	Err error
}

// Report is the result of validating a sender domain.
type Report struct {
	Domain   string
	Selector string

	SPF  bool
	DKIM bool
	// DMARC is the published policy, or nil if there is none or it was not checked.
	DMARC *Policy

	Records []*Record
}

// Authorized reports whether the domain may be used as sender through the relay.
// DMARC never affects the result.
func (r *Report) Authorized() bool {
	return r.SPF && r.DKIM
}

// Record returns the record of the given kind or nil.
func (r *Report) Record(kind Kind) *Record {
	for _, record := range r.Records {
		if record.Kind == kind {
			return record
		}
	}

	return nil
}

// Failures lists the kinds, that did not pass.
func (r *Report) Failures() []string {
	var failures []string

	if !r.SPF {
		failures = append(failures, KindSPF.String())
	}

	if !r.DKIM {
		failures = append(failures, KindDKIM.String())
	}

	return failures
}

func (r *Report) String() string {
	if r.Authorized() {
		return "authorized"
	}

	return "failed " + strings.Join(r.Failures(), ", ")
}
