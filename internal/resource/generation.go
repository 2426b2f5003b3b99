package resource

import "sync/atomic"

// Generation counts scene lifetimes. Each clear advances it, which invalidates
// every Token taken before.
type Generation struct {
	n atomic.Uint64
}

func (g *Generation) Token() Token {
	return Token{g: g, n: g.n.Load()}
}

func (g *Generation) Advance() uint64 {
	return g.n.Add(1)
}

func (g *Generation) Current() uint64 {
	return g.n.Load()
}

// Token is captured when an asynchronous load starts and checked before its
// result is committed. The zero Token never expires.
type Token struct {
	g *Generation
	n uint64
}

func (t Token) Valid() bool {
	return t.g == nil || t.g.n.Load() == t.n
}
