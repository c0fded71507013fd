// Package singbox synthesizes sing-box client configuration documents from
// two region connection descriptors and a shared routing policy template.
// The package is pure: no I/O, no shared mutable state, and identical inputs
// always produce structurally identical documents.
package singbox

import "encoding/json"

// Document is a complete platform-tagged client configuration. Every
// synthesis call produces a fresh value; documents are never mutated in
// place.
type Document struct {
	Log       Log        `json:"log"`
	DNS       *DNS       `json:"dns,omitempty"`
	Inbounds  []Inbound  `json:"inbounds"`
	Outbounds []Outbound `json:"outbounds"`
	Route     Route      `json:"route"`
}

// Marshal renders the document the way the client agent consumes it:
// 2-space-indented JSON with a fixed field order.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

type Log struct {
	Level     string `json:"level"`
	Timestamp bool   `json:"timestamp"`
}

type DNS struct {
	Servers  []DNSServer `json:"servers"`
	Final    string      `json:"final"`
	Strategy string      `json:"strategy,omitempty"`
}

type DNSServer struct {
	Tag             string `json:"tag"`
	Address         string `json:"address"`
	Strategy        string `json:"strategy,omitempty"`
	Detour          string `json:"detour,omitempty"`
	AddressResolver string `json:"address_resolver,omitempty"`
}

// Inbound is the local traffic-capture entry point. Tunnel-interface
// platforms use type "tun"; desktop platforms use a local "mixed" listener.
type Inbound struct {
	Type           string   `json:"type"`
	Tag            string   `json:"tag,omitempty"`
	Address        []string `json:"address,omitempty"`
	MTU            int      `json:"mtu,omitempty"`
	AutoRoute      bool     `json:"auto_route,omitempty"`
	Stack          string   `json:"stack,omitempty"`
	Sniff          bool     `json:"sniff,omitempty"`
	Listen         string   `json:"listen,omitempty"`
	ListenPort     int      `json:"listen_port,omitempty"`
	SetSystemProxy bool     `json:"set_system_proxy,omitempty"`
}

type Outbound struct {
	Type       string `json:"type"`
	Tag        string `json:"tag"`
	Server     string `json:"server,omitempty"`
	ServerPort int    `json:"server_port,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	Flow       string `json:"flow,omitempty"`
	TLS        *TLS   `json:"tls,omitempty"`
	Detour     string `json:"detour,omitempty"`
}

type TLS struct {
	Enabled    bool     `json:"enabled"`
	ServerName string   `json:"server_name"`
	ALPN       []string `json:"alpn"`
	UTLS       UTLS     `json:"utls"`
	Reality    Reality  `json:"reality"`
}

type UTLS struct {
	Enabled     bool   `json:"enabled"`
	Fingerprint string `json:"fingerprint"`
}

type Reality struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"public_key"`
	ShortID   string `json:"short_id"`
}

type Route struct {
	RuleSets            []RuleSet `json:"rule_set"`
	Rules               []Rule    `json:"rules"`
	OverrideAndroidVPN  bool      `json:"override_android_vpn,omitempty"`
	AutoDetectInterface bool      `json:"auto_detect_interface,omitempty"`
}

// RuleSet references an externally fetched collection of match patterns.
type RuleSet struct {
	Type   string `json:"type"`
	Tag    string `json:"tag"`
	Format string `json:"format"`
	URL    string `json:"url"`
}

type Rule struct {
	Protocol     string   `json:"protocol,omitempty"`
	Action       string   `json:"action,omitempty"`
	Outbound     string   `json:"outbound,omitempty"`
	DomainSuffix []string `json:"domain_suffix,omitempty"`
	IPCIDR       []string `json:"ip_cidr,omitempty"`
	RuleSet      []string `json:"rule_set,omitempty"`
}

// Conn describes one region's connection parameters for synthesis. All
// TLS/obfuscation fields are copied into the document verbatim; nothing is
// invented or cached from a prior call.
type Conn struct {
	Tag         string
	Server      string
	Port        int
	UUID        string
	Flow        string
	ServerName  string
	Fingerprint string
	PublicKey   string
	ShortID     string
}
