package singbox

// Synthesize builds a complete configuration document for the platform from
// the two region connection descriptors. Pure function of its inputs; the
// only failure mode is an unknown platform.
//
// The secondary outbound always detours through the primary outbound's tag:
// the secondary region is reachable only through the primary.
func Synthesize(platform Platform, primary, secondary Conn) (*Document, error) {
	var p profile
	switch platform {
	case PlatformIOS:
		p = iosProfile()
	case PlatformAndroid:
		p = androidProfile()
	case PlatformWindows:
		p = windowsProfile()
	default:
		return nil, &UnsupportedPlatformError{Value: string(platform)}
	}

	rules := leadingRules()
	rules = append(rules, p.extraRules()...)
	rules = append(rules, classificationRules(primary.Tag, secondary.Tag)...)

	route := Route{
		RuleSets: ruleSets(),
		Rules:    rules,
	}
	p.routeExtras(&route)

	return &Document{
		Log:      p.log,
		DNS:      p.dns(),
		Inbounds: p.inbounds(),
		Outbounds: []Outbound{
			{Type: "direct", Tag: "direct"},
			regionOutbound(primary, ""),
			regionOutbound(secondary, primary.Tag),
		},
		Route: route,
	}, nil
}

// regionOutbound builds a vless outbound from a connection descriptor. A
// non-empty detour names the outbound this one tunnels through.
func regionOutbound(conn Conn, detour string) Outbound {
	return Outbound{
		Type:       "vless",
		Tag:        conn.Tag,
		Server:     conn.Server,
		ServerPort: conn.Port,
		UUID:       conn.UUID,
		Flow:       conn.Flow,
		TLS: &TLS{
			Enabled:    true,
			ServerName: conn.ServerName,
			ALPN:       []string{"h2", "http/1.1"},
			UTLS:       UTLS{Enabled: true, Fingerprint: conn.Fingerprint},
			Reality:    Reality{Enabled: true, PublicKey: conn.PublicKey, ShortID: conn.ShortID},
		},
		Detour: detour,
	}
}
