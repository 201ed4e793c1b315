package pubsub

// Matches reports whether a published topic satisfies a subscription
// pattern. Topics are "/"-delimited; pattern segments are matched left
// to right: a literal segment must match exactly, "+" matches exactly
// one segment and "#" matches the rest of the topic. "#" is only valid
// as the final pattern segment.
//
// This runs on every inbound message, so it walks both strings without
// allocating.
func Matches(topic, pattern string) bool {
	// Exact subscriptions are the common case.
	if topic == pattern {
		return true
	}

	ti, pi := 0, 0
	for pi < len(pattern) {
		pEnd := segmentEnd(pattern, pi)
		seg := pattern[pi:pEnd]

		if seg == "#" {
			// Multi-level wildcard must terminate the pattern.
			return pEnd == len(pattern)
		}

		// Pattern has segments left but the topic is exhausted.
		if ti > len(topic) {
			return false
		}

		tEnd := segmentEnd(topic, ti)
		if seg != "+" && topic[ti:tEnd] != seg {
			return false
		}

		ti = tEnd + 1
		pi = pEnd + 1
	}

	// Topic must be exhausted too: no trailing "#" consumed the rest.
	return ti == len(topic)+1
}

func segmentEnd(s string, start int) int {
	for i := start; i < len(s); i++ {
		if s[i] == '/' {
			return i
		}
	}
	return len(s)
}
