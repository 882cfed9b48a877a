package protocol

import "strings"

const (
	TickChannelPrefix      = "ticks."
	AnalyticsChannelPrefix = "analytics."
)

// ParseSymbols splits a comma separated symbols query parameter into a
// normalized, deduplicated list. Blank entries are dropped.
func ParseSymbols(raw string) []string {
	seen := make(map[string]bool)
	var symbols []string
	for _, part := range strings.Split(raw, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		symbols = append(symbols, sym)
	}
	return symbols
}

// Channels maps a symbol list onto the pubsub channels for one feed kind.
func Channels(prefix string, symbols []string) []string {
	channels := make([]string, len(symbols))
	for i, sym := range symbols {
		channels[i] = prefix + sym
	}
	return channels
}
