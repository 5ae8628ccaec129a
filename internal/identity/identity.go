// Package identity rotates the client identity (User-Agent) sent on outbound fetches.
package identity

import (
	"math/rand/v2"
	"strings"
)

// DefaultUserAgent is sent when rotation is disabled or the pool is empty.
const DefaultUserAgent = "NewsPipeline/1.0 (+https://github.com/newspipeline)"

// Pool hands out client identity strings.
type Pool struct {
	agents []string
	pick   func(n int) int
}

// NewPool keeps the non-blank agents; when disabled, the pool always yields the default.
func NewPool(enabled bool, agents []string) *Pool {
	p := &Pool{pick: rand.IntN}
	if !enabled {
		return p
	}
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			p.agents = append(p.agents, a)
		}
	}
	return p
}

// UserAgent returns a random identity from the pool or the default.
func (p *Pool) UserAgent() string {
	if p == nil || len(p.agents) == 0 {
		return DefaultUserAgent
	}
	return p.agents[p.pick(len(p.agents))]
}
