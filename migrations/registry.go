package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"strings"

	banking "github.com/goliatone/go-banking"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	DefaultLabel = "go-banking"

	treeRoot  = "data/sql/migrations"
	sqliteDir = "sqlite"
)

// Source is the migration directory for one SQL dialect.
type Source struct {
	Dialect string
	Path    string
	FS      fs.FS
}

// Plan is what Register resolved and handed to the register function.
type Plan struct {
	Label    string
	Dialects []string
	Sources  []Source
	tree     fs.FS
}

type RegisterFunc func(ctx context.Context, dialect string, label string, fsys fs.FS) error

type Option func(*Plan)

func WithLabel(label string) Option {
	return func(p *Plan) {
		if trimmed := strings.TrimSpace(label); trimmed != "" {
			p.Label = trimmed
		}
	}
}

// WithDialects limits registration to the named dialects.
func WithDialects(dialects ...string) Option {
	return func(p *Plan) {
		var kept []string
		for _, dialect := range dialects {
			dialect = strings.ToLower(strings.TrimSpace(dialect))
			if dialect != "" && !slices.Contains(kept, dialect) {
				kept = append(kept, dialect)
			}
		}
		if len(kept) > 0 {
			p.Dialects = kept
		}
	}
}

// WithTree replaces the embedded migration tree.
func WithTree(root fs.FS) Option {
	return func(p *Plan) {
		if root != nil {
			p.tree = root
		}
	}
}

// Sources splits a migration tree into the postgres root and the sqlite
// subdirectory. A nil root selects the embedded tree. Both dialects must
// carry the same, complete set of versions.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = banking.GetMigrationsFS()
	}
	base, basePath, err := locateTree(root)
	if err != nil {
		return nil, err
	}
	sqliteFS, err := fs.Sub(base, sqliteDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite directory: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: basePath, FS: base},
		{Dialect: DialectSQLite, Path: joinPath(basePath, sqliteDir), FS: sqliteFS},
	}
	var reference []string
	for i, source := range sources {
		versions, err := Versions(source.FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s %q: %w", source.Dialect, source.Path, err)
		}
		if len(versions) == 0 {
			return nil, fmt.Errorf("migrations: %s %q has no *.up.sql files", source.Dialect, source.Path)
		}
		if i == 0 {
			reference = versions
			continue
		}
		if !slices.Equal(reference, versions) {
			return nil, fmt.Errorf("migrations: %s versions %v differ from %s versions %v",
				source.Dialect, versions, sources[0].Dialect, reference)
		}
	}
	return sources, nil
}

// Register resolves the migration sources and hands each selected dialect
// to registerFn, typically persistence.Client.RegisterSQLMigrations.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Plan, error) {
	plan := Plan{
		Label:    DefaultLabel,
		Dialects: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&plan)
		}
	}
	if registerFn == nil {
		return plan, fmt.Errorf("migrations: register function is required")
	}

	sources, err := Sources(plan.tree)
	if err != nil {
		return plan, err
	}
	plan.Sources = sources

	for _, dialect := range plan.Dialects {
		index := slices.IndexFunc(sources, func(s Source) bool { return s.Dialect == dialect })
		if index < 0 {
			return plan, fmt.Errorf("migrations: no migrations for dialect %q", dialect)
		}
		source := sources[index]
		if err := registerFn(ctx, source.Dialect, plan.Label, source.FS); err != nil {
			return plan, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
	}
	return plan, nil
}

// Versions lists the migration names in fsys (the file name without the
// .up.sql suffix) in order. Every up file needs a matching down file.
func Versions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(ups)
	out := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("missing down migration for %s", name)
		}
		out = append(out, name)
	}
	return out, nil
}

// DialectForDriver maps a database/sql driver name to a migration dialect.
func DialectForDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("migrations: unsupported driver %q", driver)
	}
}

// locateTree accepts either a filesystem containing data/sql/migrations or
// one already rooted at the migration directory.
func locateTree(root fs.FS) (fs.FS, string, error) {
	if info, err := fs.Stat(root, treeRoot); err == nil && info.IsDir() {
		sub, err := fs.Sub(root, treeRoot)
		if err != nil {
			return nil, "", fmt.Errorf("migrations: %w", err)
		}
		return sub, treeRoot, nil
	}
	if matches, _ := fs.Glob(root, "*.sql"); len(matches) > 0 {
		return root, ".", nil
	}
	return nil, "", fmt.Errorf("migrations: %s not found", treeRoot)
}

func joinPath(base string, suffix string) string {
	if base == "." {
		return suffix
	}
	return strings.TrimSuffix(base, "/") + "/" + suffix
}
