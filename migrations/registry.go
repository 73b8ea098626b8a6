// Package migrations exposes the embedded carrier schema so hosts can feed it
// to whichever migration runner they operate.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"sort"
	"strings"

	carriers "github.com/goliatone/go-carriers"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// carrierTables are the tables every dialect's migration set must create.
// The stores in store/sql read and write exactly these.
var carrierTables = []string{
	"carrier_shipments",
	"carrier_batches",
	"carrier_rate_limit_state",
	"carrier_activity",
}

// RequiredTables returns the carrier tables a complete migration set creates.
func RequiredTables() []string {
	return slices.Clone(carrierTables)
}

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	RequiredTables    []string
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithDialectSourceLabel(label string) Option {
	return func(r *Registration) {
		trimmed := strings.TrimSpace(label)
		if trimmed != "" {
			r.SourceLabel = trimmed
		}
	}
}

func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		next := normalize(targets)
		if len(next) > 0 {
			r.ValidationTargets = next
		}
	}
}

// WithRequiredTables overrides the carrier tables schema validation checks
// for. Hosts that trimmed the migration set to a subset of stores use this.
func WithRequiredTables(tables ...string) Option {
	return func(r *Registration) {
		next := normalize(tables)
		if len(next) > 0 {
			r.RequiredTables = next
		}
	}
}

func WithFilesystems(filesystems ...FilesystemSpec) Option {
	return func(r *Registration) {
		copied := make([]FilesystemSpec, 0, len(filesystems))
		for _, fsys := range filesystems {
			dialect := strings.TrimSpace(strings.ToLower(fsys.Dialect))
			if dialect == "" || fsys.FS == nil {
				continue
			}
			copied = append(copied, FilesystemSpec{
				Dialect: dialect,
				Path:    fsys.Path,
				FS:      fsys.FS,
			})
		}
		if len(copied) > 0 {
			r.Filesystems = copied
		}
	}
}

// Filesystems resolves the embedded carrier migrations into one spec per
// dialect and verifies each dialect's set creates every carrier table. Pass a
// source to validate an external migration tree laid out the same way.
func Filesystems(sources ...fs.FS) ([]FilesystemSpec, error) {
	root := carriers.MigrationsFS()
	if len(sources) > 0 && sources[0] != nil {
		root = sources[0]
	}

	base, basePath, err := migrationsRoot(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite filesystem: %w", err)
	}

	filesystems := []FilesystemSpec{
		{
			Dialect: DialectPostgres,
			Path:    basePath,
			FS:      base,
		},
		{
			Dialect: DialectSQLite,
			Path:    pathJoin(basePath, "sqlite"),
			FS:      sqliteFS,
		},
	}

	for _, fsys := range filesystems {
		if err := validateSchemaCoverage(fsys, carrierTables); err != nil {
			return nil, err
		}
	}

	return filesystems, nil
}

func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-carriers",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
		RequiredTables:    RequiredTables(),
	}

	filesystems, err := Filesystems()
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&reg)
	}

	if len(reg.ValidationTargets) == 0 {
		return reg, fmt.Errorf("migrations: validation targets are required")
	}
	if strings.TrimSpace(reg.SourceLabel) == "" {
		return reg, fmt.Errorf("migrations: source label is required")
	}
	if len(reg.Filesystems) == 0 {
		return reg, fmt.Errorf("migrations: filesystems are required")
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	targets := normalize(reg.ValidationTargets)
	for _, fsys := range reg.Filesystems {
		if !slices.Contains(targets, fsys.Dialect) {
			continue
		}
		if fsys.FS == nil {
			return reg, fmt.Errorf("migrations: filesystem for %s is nil", fsys.Dialect)
		}
		if err := validateSchemaCoverage(fsys, reg.RequiredTables); err != nil {
			return reg, err
		}
		if err := registerFn(ctx, fsys.Dialect, reg.SourceLabel, fsys.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s (%s): %w", fsys.Dialect, fsys.Path, err)
		}
	}

	return reg, nil
}

var createTablePattern = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([A-Za-z0-9_]+)"?`)

// validateSchemaCoverage confirms the filesystem's up migrations create every
// required carrier table, so a mispackaged tree fails at registration instead
// of at the first query.
func validateSchemaCoverage(fsys FilesystemSpec, tables []string) error {
	matches, err := fs.Glob(fsys.FS, "*.up.sql")
	if err != nil {
		return fmt.Errorf("migrations: glob %s %s: %w", fsys.Dialect, fsys.Path, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("migrations: %s filesystem %q has no *.up.sql files", fsys.Dialect, fsys.Path)
	}

	created := make(map[string]bool, len(tables))
	for _, name := range matches {
		content, readErr := fs.ReadFile(fsys.FS, name)
		if readErr != nil {
			return fmt.Errorf("migrations: read %s %s: %w", fsys.Dialect, name, readErr)
		}
		for _, match := range createTablePattern.FindAllStringSubmatch(string(content), -1) {
			created[strings.ToLower(match[1])] = true
		}
	}

	var missing []string
	for _, table := range tables {
		if !created[table] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("migrations: %s filesystem %q does not create tables: %s",
			fsys.Dialect, fsys.Path, strings.Join(missing, ", "))
	}
	return nil
}

func migrationsRoot(root fs.FS) (fs.FS, string, error) {
	sub, err := fs.Sub(root, "data/sql/migrations")
	if err == nil {
		return sub, "data/sql/migrations", nil
	}

	entries, readErr := fs.ReadDir(root, ".")
	if readErr == nil {
		for _, entry := range entries {
			if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
				return root, ".", nil
			}
		}
	}

	return nil, "", fmt.Errorf("migrations: data/sql/migrations not found: %w", err)
}

func normalize(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(strings.ToLower(value))
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func pathJoin(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(suffix, "/")
}
