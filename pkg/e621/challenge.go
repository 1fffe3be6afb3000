package e621

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var challengeTitles = []string{
	"just a moment",
	"attention required",
	"access denied",
	"ddos-guard",
	"checking your browser",
}

var challengeIDs = map[string]bool{
	"challenge-form":       true,
	"challenge-running":    true,
	"challenge-stage":      true,
	"cf-challenge-running": true,
	"cf-wrapper":           true,
	"cf-please-wait":       true,
	"turnstile-wrapper":    true,
}

var challengeClasses = []string{"g-recaptcha", "h-captcha", "cf-turnstile", "cf-browser-verification"}

// DetectChallenge inspects an HTML document for the markers of an anti-bot
// interstitial. It returns the marker that matched.
func DetectChallenge(body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	return findChallenge(doc)
}

func findChallenge(n *html.Node) (string, bool) {
	if n.Type == html.ElementNode {
		if marker, ok := inspectElement(n); ok {
			return marker, true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if marker, ok := findChallenge(c); ok {
			return marker, true
		}
	}
	return "", false
}

func inspectElement(n *html.Node) (string, bool) {
	switch n.DataAtom {
	case atom.Title:
		title := strings.ToLower(strings.TrimSpace(textOf(n)))
		for _, t := range challengeTitles {
			if strings.Contains(title, t) {
				return "title: " + title, true
			}
		}
	case atom.Form:
		if action := attr(n, "action"); strings.Contains(action, "__cf_chl") || strings.Contains(action, "captcha") {
			return "form: " + action, true
		}
	case atom.Script:
		if src := attr(n, "src"); strings.Contains(src, "challenges.cloudflare.com") || strings.Contains(src, "hcaptcha.com") || strings.Contains(src, "recaptcha") {
			return "script: " + src, true
		}
	}

	if id := attr(n, "id"); challengeIDs[id] {
		return "id: " + id, true
	}
	classes := strings.Fields(attr(n, "class"))
	for _, c := range classes {
		for _, want := range challengeClasses {
			if c == want {
				return "class: " + c, true
			}
		}
	}
	return "", false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
