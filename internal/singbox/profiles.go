package singbox

// profile supplies the platform-dependent pieces of a document: log level,
// DNS strategy, inbound definitions, extra direct-routing rules, and route
// toggles. Every method returns fresh values.
type profile struct {
	log      Log
	dns      func() *DNS
	inbounds func() []Inbound

	// extraRules are inserted after the sniff/hijack-dns head and before
	// the classification rules, so platform bypasses win over general
	// classification but still go through protocol sniffing.
	extraRules func() []Rule

	routeExtras func(r *Route)
}

func noDNS() *DNS            { return nil }
func noExtraRules() []Rule   { return nil }
func noRouteExtras(_ *Route) {}

func iosProfile() profile {
	return profile{
		log: Log{Level: "info", Timestamp: true},
		dns: func() *DNS {
			return &DNS{
				Servers: []DNSServer{
					{Tag: "cloudflare", Address: "https://1.1.1.1/dns-query", Strategy: "ipv4_only"},
					{Tag: "google", Address: "https://8.8.8.8/dns-query", Strategy: "ipv4_only"},
					{Tag: "yandex-doh", Address: "https://common.dot.dns.yandex.net/dns-query", Strategy: "ipv4_only", AddressResolver: "yandex-plain"},
					{Tag: "yandex-plain", Address: "77.88.8.8", Strategy: "ipv4_only"},
				},
				Final: "yandex-plain",
			}
		},
		inbounds: func() []Inbound {
			return []Inbound{
				{Type: "tun", Address: []string{"198.18.0.1/16"}, AutoRoute: true, Sniff: true},
			}
		},
		extraRules:  noExtraRules,
		routeExtras: noRouteExtras,
	}
}

func androidProfile() profile {
	return profile{
		log: Log{Level: "error", Timestamp: true},
		dns: func() *DNS {
			return &DNS{
				Servers: []DNSServer{
					{Tag: "bootstrap-local", Address: "local"},
					{Tag: "cloudflare", Address: "https://cloudflare-dns.com/dns-query", Strategy: "ipv4_only", Detour: "direct", AddressResolver: "bootstrap-local"},
					{Tag: "google", Address: "https://dns.google/dns-query", Strategy: "ipv4_only", Detour: "direct", AddressResolver: "bootstrap-local"},
				},
				Final:    "cloudflare",
				Strategy: "ipv4_only",
			}
		},
		inbounds: func() []Inbound {
			return []Inbound{
				{Type: "tun", Tag: "tun-in", Address: []string{"172.18.0.1/30"}, MTU: 1500, AutoRoute: true, Stack: "system"},
			}
		},
		// The DoH bootstrap endpoints must bypass the tunnel or DNS
		// resolution deadlocks on first connect.
		extraRules: func() []Rule {
			return []Rule{
				{
					Action:       "route",
					Outbound:     "direct",
					DomainSuffix: []string{"cloudflare-dns.com", "dns.google"},
					IPCIDR:       []string{"1.1.1.1/32", "1.0.0.1/32", "8.8.8.8/32", "8.8.4.4/32"},
				},
			}
		},
		routeExtras: func(r *Route) {
			r.OverrideAndroidVPN = true
			r.AutoDetectInterface = true
		},
	}
}

func windowsProfile() profile {
	return profile{
		log: Log{Level: "error", Timestamp: true},
		// Windows builds resolve through the system; the document carries
		// no dns section.
		dns: noDNS,
		inbounds: func() []Inbound {
			return []Inbound{
				{Type: "mixed", Listen: "127.0.0.1", ListenPort: 2080, Sniff: true, SetSystemProxy: true},
			}
		},
		extraRules:  noExtraRules,
		routeExtras: noRouteExtras,
	}
}
