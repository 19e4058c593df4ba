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

package certs

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/briefsend/internal/log"
)

var (
	// ErrNoCertificates is returned for ca bundles without any pem encoded certificate.
	ErrNoCertificates = errors.New("certs: no certificates found in ca bundle")
	// ErrIncompleteKeyPair is returned if only one of certificate and key is configured.
	ErrIncompleteKeyPair = errors.New("certs: client certificate and key must be configured together")
)

func init() {
	viper.SetDefault("mail.tls.ca", "")
	viper.SetDefault("mail.tls.cert", "")
	viper.SetDefault("mail.tls.key", "")
	viper.SetDefault("mail.tls.insecure", false)
}

// TLSOptions configures the tls connection to the relay.
type TLSOptions struct {
	ServerName string
	// CAFile is an optional pem bundle, that replaces the system roots.
	CAFile string
	// CertFile and KeyFile are an optional client certificate.
	CertFile string
	KeyFile  string
	// Insecure disables verification of the server certificate.
	Insecure bool
}

// TLSOptionsFromViper reads the TLSOptions from the global configuration.
func TLSOptionsFromViper() TLSOptions {
	return TLSOptions{
		ServerName: viper.GetString("mail.server"),
		CAFile:     viper.GetString("mail.tls.ca"),
		CertFile:   viper.GetString("mail.tls.cert"),
		KeyFile:    viper.GetString("mail.tls.key"),
		Insecure:   viper.GetBool("mail.tls.insecure"),
	}
}

type certSource interface {
	lastUpdate() (time.Time, error)
	load() (*tls.Certificate, error)
}

// NewTLSConfig creates a client tls config. A configured client certificate is loaded lazily
// and reloaded when its files change.
func NewTLSConfig(fs afero.Fs, options TLSOptions) (*tls.Config, error) {
	config := tls.Config{
		ServerName:         options.ServerName,
		InsecureSkipVerify: options.Insecure, // nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}

	if options.Insecure {
		log.Warn().
			Str("serverName", options.ServerName).
			Msg("server certificate verification is disabled")
	}

	if options.CAFile != "" {
		pool, err := loadCertPool(fs, options.CAFile)
		if err != nil {
			return nil, err
		}

		config.RootCAs = pool
	}

	switch {
	case options.CertFile == "" && options.KeyFile == "":
	case options.CertFile == "" || options.KeyFile == "":
		return nil, ErrIncompleteKeyPair
	default:
		config.GetClientCertificate = reloadingCertificate(newFilesCertSource(fs, options.CertFile, options.KeyFile))
	}

	return &config, nil
}

func loadCertPool(fs afero.Fs, filename string) (*x509.CertPool, error) {
	bundle, err := afero.ReadFile(fs, filename)
	if err != nil {
		return nil, fmt.Errorf("could not read ca bundle: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(bundle) {
		return nil, fmt.Errorf("%w: %s", ErrNoCertificates, filename)
	}

	return pool, nil
}

func reloadingCertificate(source certSource) func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
	var (
		lastCert *tls.Certificate
		lastTime time.Time
		lock     sync.Mutex
	)

	return func(*tls.CertificateRequestInfo) (*tls.Certificate, error) {
		lock.Lock()
		defer lock.Unlock()

		newTime, err := source.lastUpdate()
		if err != nil {
			return nil, fmt.Errorf(
				"could not check for certificate updates: %w", err)
		}

		if lastCert == nil || newTime.After(lastTime) {
			newCert, err := source.load()
			if err != nil {
				return nil, fmt.Errorf(
					"could not load certificate: %w", err)
			}

			lastTime = newTime
			lastCert = newCert

			log.Debug().
				Time("updated", newTime).
				Msg("client certificate loaded")
		}

		return lastCert, nil
	}
}
