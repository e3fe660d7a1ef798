// Copyright (c) 2022 Exograd SAS.
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that the above
// copyright notice and this permission notice appear in all copies.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
// ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR
// IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.

package dhttp

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/exograd/go-influxdb/check"
	"github.com/exograd/go-log"
)

const DefaultClientTimeout = 30

type ClientCfg struct {
	Log *log.Logger `json:"-"`

	LogRequests bool `json:"log_requests"`

	// Request timeout in seconds.
	Timeout int `json:"timeout"`

	UserAgent string `json:"user_agent"`

	TLS *TLSClientCfg `json:"tls"`

	Header http.Header `json:"-"`
}

type TLSClientCfg struct {
	CACertificates     []string            `json:"ca_certificates"`
	InsecureSkipVerify bool                `json:"insecure_skip_verify"`
	PublicKeyPins      map[string][]string `json:"public_key_pins"`
}

type Client struct {
	Cfg ClientCfg
	Log *log.Logger

	Client *http.Client
}

func (cfg *ClientCfg) Check(c *check.Checker) {
	c.CheckIntMin("timeout", cfg.Timeout, 0)
	c.CheckOptionalObject("tls", cfg.TLS)
}

func (cfg *TLSClientCfg) Check(c *check.Checker) {
	c.WithChild("ca_certificates", func() {
		for i, cert := range cfg.CACertificates {
			c.CheckStringNotEmpty(i, cert)
		}
	})

	c.WithChild("public_key_pins", func() {
		for serverName, pins := range cfg.PublicKeyPins {
			c.WithChild(serverName, func() {
				for i, pin := range pins {
					c.CheckStringNotEmpty(i, pin)
				}
			})
		}
	})
}

func NewClient(cfg ClientCfg) (*Client, error) {
	if cfg.Log == nil {
		cfg.Log = log.DefaultLogger("http-client")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultClientTimeout
	}

	tlsCfg, err := newTLSClientConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,

		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSClientConfig: tlsCfg,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,

		IdleConnTimeout:       60 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		Cfg: cfg,
		Log: cfg.Log,
	}

	c.Client = &http.Client{
		Timeout:   time.Duration(cfg.Timeout) * time.Second,
		Transport: NewRoundTripper(transport, &c.Cfg),
	}

	return c, nil
}

func newTLSClientConfig(cfg *TLSClientCfg) (*tls.Config, error) {
	tlsCfg := &tls.Config{}

	if cfg == nil {
		return tlsCfg, nil
	}

	if len(cfg.CACertificates) > 0 {
		pool, err := LoadCertificates(cfg.CACertificates)
		if err != nil {
			return nil, err
		}

		tlsCfg.RootCAs = pool
	}

	tlsCfg.InsecureSkipVerify = cfg.InsecureSkipVerify

	if len(cfg.PublicKeyPins) > 0 {
		pins := cfg.PublicKeyPins
		tlsCfg.VerifyConnection = func(state tls.ConnectionState) error {
			return checkPublicKeyPins(state, pins)
		}
	}

	return tlsCfg, nil
}

func (c *Client) Terminate() {
	c.Client.CloseIdleConnections()
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.Client.Do(req)
}

func checkPublicKeyPins(state tls.ConnectionState, pinsByServer map[string][]string) error {
	pins := pinsByServer[state.ServerName]
	if len(pins) == 0 {
		return nil
	}

	if len(state.PeerCertificates) == 0 {
		return fmt.Errorf("no peer certificate available")
	}

	cert := state.PeerCertificates[0]
	pubKeyData, err := x509.MarshalPKIXPublicKey(cert.PublicKey)
	if err != nil {
		return fmt.Errorf("cannot marshal public key: %w", err)
	}

	hash := sha256.Sum256(pubKeyData)
	hexHash := hex.EncodeToString(hash[:])

	for _, pin := range pins {
		if hexHash == pin {
			return nil
		}
	}

	return fmt.Errorf("invalid server certificate: unknown public key")
}
