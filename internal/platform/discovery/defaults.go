// Package discovery centralizes service endpoint conventions.
package discovery

import (
	"strconv"
	"strings"
)

const (
	// ServiceIdentity is the identity service identity.
	ServiceIdentity = "identity"
	// ServiceFeed is the feed service identity.
	ServiceFeed = "feed"
	// ServiceLedger is the ledger service identity.
	ServiceLedger = "ledger"
)

var rpcPorts = map[string]int{
	ServiceIdentity: 8081,
	ServiceFeed:     8082,
	ServiceLedger:   8083,
}

// DefaultEndpoint returns the canonical local JSON-RPC endpoint URL for
// a service.
func DefaultEndpoint(service string) string {
	port, ok := rpcPorts[strings.TrimSpace(service)]
	if !ok || port <= 0 {
		return ""
	}
	return "http://localhost:" + strconv.Itoa(port) + "/rpc"
}

// OrDefaultEndpoint returns value when set, otherwise the service
// convention.
func OrDefaultEndpoint(value, service string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return DefaultEndpoint(service)
}
