package transport

import (
	"net/http"
	"strings"
)

// Auth decorates an outbound request with credentials.
type Auth interface {
	Apply(req *http.Request)
}

type BasicAuth struct {
	Username string
	Password string
}

func (a BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Username, a.Password)
}

type BearerAuth struct {
	Token string
}

func (a BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(a.Token))
}

// HeaderAuth sets a single provider-specific header.
type HeaderAuth struct {
	Name  string
	Value string
}

func (a HeaderAuth) Apply(req *http.Request) {
	if strings.TrimSpace(a.Name) == "" {
		return
	}
	req.Header.Set(a.Name, a.Value)
}

// Chain applies each strategy in order.
type Chain []Auth

func (c Chain) Apply(req *http.Request) {
	for _, auth := range c {
		if auth != nil {
			auth.Apply(req)
		}
	}
}

// NoAuth is used by providers that carry credentials in the body.
type NoAuth struct{}

func (NoAuth) Apply(*http.Request) {}
