package registry

import "regexp"

// Denylist flags tool names matching any configured destructive-action
// pattern (e.g. "(?i)delete_.*", "(?i).*_drop$"), generalized from the
// teacher's hardcoded per-tool-name map into operator-configurable
// regexes, since this gateway's tool surface is not domain-fixed the
// way the teacher's Kubernetes/CAPI/Flux tool set was.
type Denylist struct {
	patterns []*regexp.Regexp
}

func NewDenylist(patterns []string) (*Denylist, error) {
	compiled, err := compileAll(patterns)
	if err != nil {
		return nil, err
	}
	return &Denylist{patterns: compiled}, nil
}

// Matches reports whether name looks like a destructive action.
func (d *Denylist) Matches(name string) bool {
	for _, re := range d.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// DefaultPatterns is the out-of-the-box denylist: common destructive
// verbs seen across tool-providing MCP servers in the wild.
var DefaultPatterns = []string{
	`(?i)^delete_`,
	`(?i)^remove_`,
	`(?i)^drop_`,
	`(?i)^destroy_`,
	`(?i)^terminate_`,
	`(?i)_delete$`,
	`(?i)force_`,
}
