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
	"errors"
)

var (
	// ErrSelectorUnset is returned when DKIM validation is enabled without a selector.
	ErrSelectorUnset = errors.New("dnsauth: dkim selector is not configured")
	// ErrMalformedRecord is used for published records, that cannot be parsed.
	ErrMalformedRecord = errors.New("dnsauth: malformed record")
	// ErrNotCovered is used when an spf record does not authorize any of the sending ips.
	ErrNotCovered = errors.New("dnsauth: sending ips are not covered")
	// ErrTooManyLookups is used when spf evaluation exceeds the dns lookup limit of RFC#7208.
	ErrTooManyLookups = errors.New("dnsauth: too many dns lookups")
	// ErrUnknownEvaluator is returned for an unsupported validation.spf.evaluator.
	ErrUnknownEvaluator = errors.New("dnsauth: unknown spf evaluator")
)
