package category

// builtin maps well-known domains to a default category. Subdomains inherit
// through parent lookup, so only registrable domains are listed.
var builtin = map[string]string{
	// Social Media
	"facebook.com":  "Social Media",
	"instagram.com": "Social Media",
	"twitter.com":   "Social Media",
	"x.com":         "Social Media",
	"tiktok.com":    "Social Media",
	"linkedin.com":  "Social Media",
	"reddit.com":    "Social Media",
	"pinterest.com": "Social Media",
	"snapchat.com":  "Social Media",
	"discord.com":   "Social Media",
	"telegram.org":  "Social Media",

	// Entertainment
	"youtube.com":     "Entertainment",
	"netflix.com":     "Entertainment",
	"hulu.com":        "Entertainment",
	"disneyplus.com":  "Entertainment",
	"spotify.com":     "Entertainment",
	"primevideo.com":  "Entertainment",
	"soundcloud.com":  "Entertainment",
	"crunchyroll.com": "Entertainment",

	// Gaming
	"twitch.tv":          "Gaming",
	"steampowered.com":   "Gaming",
	"steamcommunity.com": "Gaming",
	"epicgames.com":      "Gaming",
	"roblox.com":         "Gaming",
	"battle.net":         "Gaming",
	"ea.com":             "Gaming",

	// Shopping
	"amazon.com":     "Shopping",
	"ebay.com":       "Shopping",
	"aliexpress.com": "Shopping",
	"etsy.com":       "Shopping",
	"walmart.com":    "Shopping",
	"temu.com":       "Shopping",

	// News
	"cnn.com":              "News",
	"bbc.com":              "News",
	"bbc.co.uk":            "News",
	"nytimes.com":          "News",
	"theguardian.com":      "News",
	"news.ycombinator.com": "News",
	"news.google.com":      "News",

	// AI
	"chatgpt.com":       "AI",
	"openai.com":        "AI",
	"claude.ai":         "AI",
	"gemini.google.com": "AI",
	"perplexity.ai":     "AI",
	"character.ai":      "AI",
}
