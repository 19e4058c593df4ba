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
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestTLSOptionsFromViper(t *testing.T) {
	viper.Set("mail.server", "relay.example.net")
	viper.Set("mail.tls.ca", "/etc/briefsend/ca.pem")
	viper.Set("mail.tls.cert", "/etc/briefsend/client.crt")
	viper.Set("mail.tls.key", "/etc/briefsend/client.key")
	viper.Set("mail.tls.insecure", true)

	expected := TLSOptions{
		ServerName: "relay.example.net",
		CAFile:     "/etc/briefsend/ca.pem",
		CertFile:   "/etc/briefsend/client.crt",
		KeyFile:    "/etc/briefsend/client.key",
		Insecure:   true,
	}
	assert.Equal(t, expected, TLSOptionsFromViper())
}

func generateCertificate(t *testing.T, commonName string) ([]byte, []byte) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(time.Now().UnixNano()),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	keyDer, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDer})
}

func TestCertsTestSuite(t *testing.T) {
	suite.Run(t, new(CertsTestSuite))
}

type CertsTestSuite struct {
	suite.Suite

	fs afero.Fs
}

func (s *CertsTestSuite) SetupTest() {
	s.fs = afero.NewMemMapFs()
}

func (s *CertsTestSuite) writeFile(filename string, content []byte, modTime time.Time) {
	s.Require().NoError(afero.WriteFile(s.fs, filename, content, 0600))
	s.Require().NoError(s.fs.Chtimes(filename, modTime, modTime))
}

func (s *CertsTestSuite) TestDefaults() {
	config, err := NewTLSConfig(s.fs, TLSOptions{ServerName: "relay.example.net"})
	s.Require().NoError(err)

	s.Assert().Equal("relay.example.net", config.ServerName)
	s.Assert().False(config.InsecureSkipVerify)
	s.Assert().Nil(config.RootCAs)
	s.Assert().Nil(config.GetClientCertificate)
	s.Assert().EqualValues(tls.VersionTLS12, config.MinVersion)
}

func (s *CertsTestSuite) TestInsecure() {
	config, err := NewTLSConfig(s.fs, TLSOptions{Insecure: true})
	s.Require().NoError(err)
	s.Assert().True(config.InsecureSkipVerify)
}

func (s *CertsTestSuite) TestCABundle() {
	ca, _ := generateCertificate(s.T(), "Test CA")
	s.writeFile("/ca.pem", ca, time.Now())

	config, err := NewTLSConfig(s.fs, TLSOptions{CAFile: "/ca.pem"})
	s.Require().NoError(err)
	s.Assert().NotNil(config.RootCAs)
}

func (s *CertsTestSuite) TestCABundleInvalid() {
	s.writeFile("/ca.pem", []byte("not a certificate"), time.Now())

	_, err := NewTLSConfig(s.fs, TLSOptions{CAFile: "/ca.pem"})
	s.Assert().ErrorIs(err, ErrNoCertificates)

	_, err = NewTLSConfig(s.fs, TLSOptions{CAFile: "/missing.pem"})
	s.Assert().Error(err)
}

func (s *CertsTestSuite) TestIncompleteKeyPair() {
	_, err := NewTLSConfig(s.fs, TLSOptions{CertFile: "/client.crt"})
	s.Assert().ErrorIs(err, ErrIncompleteKeyPair)

	_, err = NewTLSConfig(s.fs, TLSOptions{KeyFile: "/client.key"})
	s.Assert().ErrorIs(err, ErrIncompleteKeyPair)
}

func (s *CertsTestSuite) TestClientCertificateReload() {
	past := time.Now().Add(-time.Minute)

	crt, key := generateCertificate(s.T(), "first")
	s.writeFile("/client.crt", crt, past)
	s.writeFile("/client.key", key, past)

	config, err := NewTLSConfig(s.fs, TLSOptions{CertFile: "/client.crt", KeyFile: "/client.key"})
	s.Require().NoError(err)
	s.Require().NotNil(config.GetClientCertificate)

	first := s.requireCommonName(config, "first")

	again, err := config.GetClientCertificate(nil)
	s.Require().NoError(err)
	s.Assert().Same(first, again)

	crt, key = generateCertificate(s.T(), "second")
	s.writeFile("/client.crt", crt, time.Now())
	s.writeFile("/client.key", key, time.Now())

	s.requireCommonName(config, "second")
}

func (s *CertsTestSuite) TestClientCertificateMissing() {
	config, err := NewTLSConfig(s.fs, TLSOptions{CertFile: "/client.crt", KeyFile: "/client.key"})
	s.Require().NoError(err)

	_, err = config.GetClientCertificate(nil)
	s.Assert().Error(err)
}

func (s *CertsTestSuite) requireCommonName(config *tls.Config, expected string) *tls.Certificate {
	cert, err := config.GetClientCertificate(nil)
	s.Require().NoError(err)
	s.Require().NotEmpty(cert.Certificate)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	s.Require().NoError(err)
	s.Require().Equal(expected, parsed.Subject.CommonName)

	return cert
}
