package evaluate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonObjectRE = regexp.MustCompile(`(?s)\{.*?\}`)

// ParseResult decodes a model response into a Result. It tries the whole
// response as JSON first, then the first brace-delimited fragment; if
// neither decodes, the result carries score 0 and a reason quoting the raw
// response so the failure is visible in the review UI.
func ParseResult(raw string) Result {
	s := strings.TrimSpace(raw)

	// Models wrap JSON in fenced code blocks often enough to strip them.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := strings.TrimPrefix(s[idx+3:], "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}

	if res, ok := decodeResult(s); ok {
		return res
	}
	if m := jsonObjectRE.FindString(s); m != "" {
		if res, ok := decodeResult(m); ok {
			return res
		}
	}

	return Result{
		Score:  0,
		Reason: fmt.Sprintf("could not parse evaluation response: %s", abbreviate(s, 500)),
	}
}

func decodeResult(s string) (Result, bool) {
	var res Result
	if err := json.Unmarshal([]byte(s), &res); err != nil {
		return Result{}, false
	}
	if res.Reason == "" && res.Score == 0 {
		return Result{}, false
	}
	return res, true
}

func abbreviate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
