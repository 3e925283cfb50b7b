package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
)

// EngineVersion describes the server behind a connection.
type EngineVersion struct {
	// Raw is the product version as reported by the server.
	Raw           string
	Version       *version.Version
	Level         string
	Edition       string
	EngineEdition int
}

// AtLeast reports whether the server version satisfies ">= min".
func (v *EngineVersion) AtLeast(min string) bool {
	if v == nil || v.Version == nil {
		return false
	}
	want, err := version.NewVersion(min)
	if err != nil {
		return false
	}
	return v.Version.GreaterThanOrEqual(want)
}

// Satisfies checks the version against a constraint such as ">= 11, < 17".
func (v *EngineVersion) Satisfies(constraint string) (bool, error) {
	c, err := version.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	if v == nil || v.Version == nil {
		return false, nil
	}
	return c.Check(v.Version), nil
}

// ParseVersion parses the leading version number of raw, ignoring any
// trailing build description ("16.2 (Debian ...)", "8.0.36-log").
func ParseVersion(raw string) (*version.Version, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty version string")
	}
	s := fields[0]
	if i := strings.IndexAny(s, "-+"); i > 0 {
		s = s[:i]
	}
	v, err := version.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", raw, err)
	}
	return v, nil
}

// QueryEngineVersion reads the server version through t.
func QueryEngineVersion(ctx context.Context, t Transport, d Dialect) (*EngineVersion, error) {
	rows, err := t.QueryContext(ctx, d.VersionQuery())
	if err != nil {
		return nil, fmt.Errorf("query engine version: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query engine version: %w", err)
		}
		return nil, fmt.Errorf("query engine version: no rows")
	}
	ev := &EngineVersion{}
	if err := rows.Scan(&ev.Raw, &ev.Level, &ev.Edition, &ev.EngineEdition); err != nil {
		return nil, fmt.Errorf("scan engine version: %w", err)
	}
	v, err := ParseVersion(ev.Raw)
	if err != nil {
		return nil, err
	}
	ev.Version = v
	return ev, nil
}
