package service

import (
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// CodeGenerator produces the 6-digit public codes customers read out at
// the counter. Codes are uniform over [100000, 999999]; uniqueness among
// active sales is enforced by the store, not here.
type CodeGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewCodeGenerator creates a code generator with its own seeded source.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Generate returns a fresh 6-digit code. It never fails; collisions are
// handled by the create workflow's retry loop.
func (g *CodeGenerator) Generate() string {
	g.mu.Lock()
	n := 100000 + g.rng.Intn(900000)
	g.mu.Unlock()
	return strconv.Itoa(n)
}
