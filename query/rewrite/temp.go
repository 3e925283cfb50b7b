package rewrite

import (
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

var selectFrom = regexp.MustCompile(`(?is)^SELECT(.*?)FROM`)

// TempNamer generates global temporary table names. Global temporary tables
// are visible to every session of the engine, so names combine a random seed
// chosen when the namer is created with a monotonic counter. One namer
// belongs to one connection.
type TempNamer struct {
	seed    string
	counter atomic.Uint64
}

// NewTempNamer creates a namer with a random seed.
func NewTempNamer() *TempNamer {
	return NewTempNamerWithSeed(strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")))
}

// NewTempNamerWithSeed creates a namer with a fixed seed.
func NewTempNamerWithSeed(seed string) *TempNamer {
	return &TempNamer{seed: seed}
}

// Seed returns the random component of generated names.
func (n *TempNamer) Seed() string { return n.seed }

// Next returns a fresh name such as "##db_temp_0_9F1C...".
func (n *TempNamer) Next() string {
	i := n.counter.Add(1) - 1
	return "##db_temp_" + strconv.FormatUint(i, 10) + "_" + n.seed
}

// Rewrite turns the leading "SELECT ... FROM" of text into
// "SELECT ... INTO <table> FROM" and returns the generated table name.
// The caller owns the table's lifetime.
func (n *TempNamer) Rewrite(text string) (table, rewritten string) {
	table = n.Next()
	return table, replaceFirst(selectFrom, text, "SELECT${1} INTO "+table+" FROM")
}
