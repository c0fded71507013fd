package singbox

// TemplateVersion identifies the routing policy template below. Bump when
// rule-set references or classification rules change, so regenerated
// documents can be told apart from stale ones.
const TemplateVersion = 1

const ruleSetBase = "https://github.com/MetaCubeX/meta-rules-dat/raw/sing/geo/"

// ruleSets returns the remote rule-set references shared by every platform.
// Always a fresh slice; assembly must never hand callers shared state.
func ruleSets() []RuleSet {
	remote := func(tag, path string) RuleSet {
		return RuleSet{Type: "remote", Tag: tag, Format: "binary", URL: ruleSetBase + path}
	}
	return []RuleSet{
		remote("ru-ips", "geoip/ru.srs"),
		remote("youtube", "geosite/youtube.srs"),
		remote("openai", "geosite/openai.srs"),
		remote("anthropic", "geosite/anthropic.srs"),
		remote("twitter", "geosite/twitter.srs"),
		remote("instagram", "geosite/instagram.srs"),
		remote("facebook", "geosite/facebook.srs"),
		remote("telegram-sites", "geosite/telegram.srs"),
		remote("telegram-ips", "geoip/telegram.srs"),
		remote("github", "geosite/github.srs"),
		remote("tiktok", "geosite/tiktok.srs"),
		remote("hetzner", "geosite/hetzner.srs"),
		remote("x", "geosite/x.srs"),
		remote("meta", "geosite/meta.srs"),
		remote("oculus", "geosite/oculus.srs"),
		remote("whatsapp", "geosite/whatsapp.srs"),
	}
}

// leadingRules are the fixed head of every rule list: protocol sniffing,
// then DNS hijack.
func leadingRules() []Rule {
	return []Rule{
		{Action: "sniff"},
		{Protocol: "dns", Action: "hijack-dns"},
	}
}

// classificationRules routes traffic between the two region outbounds and
// direct egress:
//   - blocked-abroad services and the domain allowlist go to the secondary
//     region (reached via its detour through the primary),
//   - messaging rule-sets go to the primary region,
//   - local-network IP ranges go direct,
//   - everything else falls through to the primary region.
func classificationRules(primaryTag, secondaryTag string) []Rule {
	return []Rule{
		{
			Action:   "route",
			Outbound: secondaryTag,
			DomainSuffix: []string{
				"myip.ru",
				"rutracker.org",
				"rutrk.org",
				"rutracker.cc",
				"hostinger.com",
				"cloudflare-ech.com",
				"sociogramm.ru",
				"sentry.io",
				"greasyfork.org",
				"oculus.com",
				"byteoversea.com",
				"trae-api-sg.mchost.guru",
				"trae.ai",
				"byteintlapi.com",
				"ahrefs.com",
				"speedtest.net",
				"2ip.ru",
			},
			RuleSet: []string{
				"openai",
				"anthropic",
				"twitter",
				"instagram",
				"facebook",
				"github",
				"tiktok",
				"hetzner",
				"x",
				"meta",
				"oculus",
				"youtube",
			},
		},
		{
			Action:   "route",
			Outbound: primaryTag,
			RuleSet:  []string{"telegram-sites", "telegram-ips", "whatsapp"},
		},
		{
			Action:   "route",
			Outbound: "direct",
			RuleSet:  []string{"ru-ips"},
		},
		{
			Action:   "route",
			Outbound: primaryTag,
		},
	}
}
