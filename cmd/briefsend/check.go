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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/delivery"
	"github.com/lukasdietrich/briefsend/internal/dnsauth"
	"github.com/lukasdietrich/briefsend/internal/models"
)

type checkCommand struct {
	Validator *dnsauth.Validator
}

func (c *checkCommand) run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("check", pflag.ContinueOnError)
	selector := flags.String("selector", viper.GetString("mail.dkim_selector"), "DKIM selector")

	if err := flags.Parse(args); err != nil {
		return err
	}

	report, err := checkDomain(ctx, c.Validator, flags.Arg(0), *selector)
	if err != nil {
		return err
	}

	printReport(os.Stdout, report)

	if !report.Authorized() {
		return &delivery.ValidationError{Report: report}
	}

	return nil
}

// checkDomain validates domain, or the domain of the configured sender if domain is empty.
func checkDomain(ctx context.Context, validator *dnsauth.Validator, domain, selector string) (*dnsauth.Report, error) {
	if domain == "" {
		sender, err := models.Parse(viper.GetString("mail.sender"))
		if err != nil {
			return nil, errors.New("Usage: check DOMAIN [--selector SELECTOR]")
		}

		domain = sender.Domain()
	}

	domain, err := models.DomainToASCII(domain)
	if err != nil {
		return nil, fmt.Errorf("invalid domain %q: %w", domain, err)
	}

	return validator.Validate(ctx, domain, selector)
}

func printReport(w io.Writer, report *dnsauth.Report) {
	fmt.Fprintf(w, "\nDomain %s", report.Domain)

	if report.Selector != "" {
		fmt.Fprintf(w, " (selector %q)", report.Selector)
	}

	fmt.Fprintf(w, ": %s\n\n", report)

	for _, kind := range [...]dnsauth.Kind{dnsauth.KindSPF, dnsauth.KindDKIM, dnsauth.KindDMARC} {
		record := report.Record(kind)
		if record == nil {
			continue
		}

		status := "pass"

		switch {
		case record.Pass:
		case record.Kind == dnsauth.KindDMARC:
			status = "none"
		default:
			status = "FAIL"
		}

		fmt.Fprintf(w, "  %-5s  %-4s  %s\n", record.Kind, status, record.Name)

		if record.Raw != "" {
			fmt.Fprintf(w, "               %s\n", record.Raw)
		}

		if record.Err != nil {
			fmt.Fprintf(w, "               %v\n", record.Err)
		}
	}

	if report.DMARC != nil {
		fmt.Fprintf(w, "\n  DMARC policy: %s\n", *report.DMARC)
	}

	fmt.Fprintln(w)
}
