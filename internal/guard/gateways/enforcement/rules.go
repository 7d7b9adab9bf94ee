package enforcement

import "github.com/haukened/siteguard/internal/guard/domain"

// Rule is one entry of a declarativeNetRequest dynamic ruleset.
type Rule struct {
	ID        int       `json:"id"`
	Priority  int       `json:"priority"`
	Action    Action    `json:"action"`
	Condition Condition `json:"condition"`
}

type Action struct {
	Type     string    `json:"type"`
	Redirect *Redirect `json:"redirect,omitempty"`
}

type Redirect struct {
	URL           string `json:"url,omitempty"`
	ExtensionPath string `json:"extensionPath,omitempty"`
}

type Condition struct {
	URLFilter     string   `json:"urlFilter"`
	ResourceTypes []string `json:"resourceTypes"`
}

// Only top-level navigations are redirected.
var blockedResourceTypes = []string{"main_frame"}

// ToRules converts directives into ruleset entries. Absolute targets become
// url redirects; anything else is treated as a path inside the extension.
// Priority follows domain depth; at equal depth the browser prefers allow.
func ToRules(directives []domain.Directive) []Rule {
	out := make([]Rule, 0, len(directives))
	for _, d := range directives {
		action := Action{Type: "allow"}
		if !d.Allow {
			action = Action{Type: "redirect", Redirect: redirectFor(d.RedirectTarget)}
		}
		out = append(out, Rule{
			ID:       d.ID,
			Priority: Specificity(d.Pattern),
			Action:   action,
			Condition: Condition{
				URLFilter:     d.Pattern,
				ResourceTypes: blockedResourceTypes,
			},
		})
	}
	return out
}

func redirectFor(target string) *Redirect {
	if isAbsoluteURL(target) {
		return &Redirect{URL: target}
	}
	return &Redirect{ExtensionPath: target}
}
