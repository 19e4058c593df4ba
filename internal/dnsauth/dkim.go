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
	"encoding/base64"
	"fmt"
	"strings"
)

const dkimVersion = "v=DKIM1"

// DKIMRecord is a parsed DKIM public key record (RFC#6376 3.6.1).
type DKIMRecord struct {
	Tags      map[string]string
	Order     []string
	KeyType   string
	PublicKey []byte
}

// Terms returns the tags in the order they were published.
func (r *DKIMRecord) Terms() []string {
	terms := make([]string, len(r.Order))

	for i, name := range r.Order {
		terms[i] = name + "=" + r.Tags[name]
	}

	return terms
}

// DKIMName returns the dns name a DKIM key of the selector is published under.
func DKIMName(selector, domain string) string {
	return selector + "._domainkey." + domain
}

// ParseDKIM parses a DKIM key record. Only the publication is checked: the record has to start
// with the version tag and carry a decodable, non-empty public key of a supported type.
func ParseDKIM(raw string) (*DKIMRecord, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `"`, ""))

	record := DKIMRecord{Tags: make(map[string]string), KeyType: "rsa"}

	for i, tag := range strings.Split(raw, ";") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}

		eq := strings.IndexByte(tag, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("%w: invalid dkim tag %q", ErrMalformedRecord, tag)
		}

		name := strings.TrimSpace(tag[:eq])
		value := removeWhitespace(tag[eq+1:])

		if i == 0 && (name != "v" || value != "DKIM1") {
			return nil, fmt.Errorf("%w: missing %q", ErrMalformedRecord, dkimVersion)
		}

		if _, ok := record.Tags[name]; ok {
			return nil, fmt.Errorf("%w: duplicate dkim tag %q", ErrMalformedRecord, name)
		}

		record.Tags[name] = value
		record.Order = append(record.Order, name)
	}

	if _, ok := record.Tags["v"]; !ok {
		return nil, fmt.Errorf("%w: missing %q", ErrMalformedRecord, dkimVersion)
	}

	if k, ok := record.Tags["k"]; ok {
		switch k {
		case "rsa", "ed25519":
			record.KeyType = k
		default:
			return nil, fmt.Errorf("%w: unsupported dkim key type %q", ErrMalformedRecord, k)
		}
	}

	p, ok := record.Tags["p"]
	if !ok || p == "" {
		return nil, fmt.Errorf("%w: missing dkim public key", ErrMalformedRecord)
	}

	key, err := base64.StdEncoding.DecodeString(p)
	if err != nil || len(key) == 0 {
		return nil, fmt.Errorf("%w: dkim public key is not base64", ErrMalformedRecord)
	}

	record.PublicKey = key
	return &record, nil
}

func removeWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		default:
			return r
		}
	}, s)
}
