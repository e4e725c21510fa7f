// Package geo assigns samples to geographic groups by their labels
// and orders them for plotting.
package geo

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
	"strings"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("geo")

// Rule assigns samples whose label contains Match to Group.
type Rule struct {
	Match string `json:"match"`
	Group string `json:"group"`
}

// Grouping describes how samples are grouped and in which order the
// groups are shown.
type Grouping struct {
	// Order is the group display order.
	Order []string `json:"order"`
	// Rules are tried in order, the first match wins.
	Rules []Rule `json:"rules"`
	// Fallback is the group of samples matching no rule.
	Fallback string `json:"fallback"`
}

// Default returns the state/county grouping: Iowa, the Nebraska
// counties and Kansas.
func Default() *Grouping {
	return &Grouping{
		Order: []string{
			"Iowa",
			"Nebraska_Thurston",
			"Nebraska_Dodge",
			"Nebraska_Douglas",
			"Nebraska_Sarpy",
			"Kansas",
			"Other",
		},
		Rules: []Rule{
			{"Iowa", "Iowa"},
			{"Kansas", "Kansas"},
			{"Sarpy", "Nebraska_Sarpy"},
			{"Dodge", "Nebraska_Dodge"},
			{"Douglas", "Nebraska_Douglas"},
			{"Thurston", "Nebraska_Thurston"},
		},
		Fallback: "Other",
	}
}

// LoadGrouping reads a grouping from a JSON file.
func LoadGrouping(fn string) (*Grouping, error) {
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	g := &Grouping{}
	if err := json.Unmarshal(b, g); err != nil {
		return nil, err
	}
	if g.Fallback == "" {
		g.Fallback = "Other"
	}
	log.Infof("Loaded %d grouping rules from %s", len(g.Rules), fn)
	return g, nil
}

// Assign returns the group of a sample label.
func (g *Grouping) Assign(label string) string {
	for _, r := range g.Rules {
		if strings.Contains(label, r.Match) {
			return r.Group
		}
	}
	return g.Fallback
}

// rank returns the position of the group in the display order.
// Groups not listed come after all the listed ones.
func (g *Grouping) rank(group string) int {
	for i, o := range g.Order {
		if o == group {
			return i
		}
	}
	return len(g.Order)
}

// Sort orders samples by group rank and then by label. It returns
// the original indices in the new order and the group of every
// sample in the new order.
func (g *Grouping) Sort(labels []string) (order []int, groups []string) {
	order = make([]int, len(labels))
	assigned := make([]string, len(labels))
	ranks := make([]int, len(labels))
	for i, l := range labels {
		order[i] = i
		assigned[i] = g.Assign(l)
		ranks[i] = g.rank(assigned[i])
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if ranks[ia] != ranks[ib] {
			return ranks[ia] < ranks[ib]
		}
		return labels[ia] < labels[ib]
	})
	groups = make([]string, len(labels))
	for i, o := range order {
		groups[i] = assigned[o]
	}
	return order, groups
}

// Span is a contiguous run of samples of the same group.
type Span struct {
	Group string
	// Start is the first index, End is one past the last.
	Start, End int
}

// Center returns the x position of the span center.
func (s Span) Center() float64 {
	return float64(s.Start+s.End-1) / 2
}

// Spans splits sorted groups into contiguous spans.
func Spans(groups []string) (spans []Span) {
	for i, g := range groups {
		if len(spans) > 0 && spans[len(spans)-1].Group == g {
			spans[len(spans)-1].End = i + 1
			continue
		}
		spans = append(spans, Span{Group: g, Start: i, End: i + 1})
	}
	return
}

// Split splits a group name like Nebraska_Thurston into the parent
// (Nebraska) and child (Thurston) names. Groups without a parent
// return an empty parent.
func Split(group string) (parent, child string) {
	i := strings.IndexByte(group, '_')
	if i < 0 {
		return "", group
	}
	return group[:i], group[i+1:]
}

// ReadLabels reads sample labels, one per line.
func ReadLabels(fn string) ([]string, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	return labels, scanner.Err()
}
