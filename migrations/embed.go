// Package migrations embeds all SQL migration files so the binary is
// self-contained regardless of working directory.
package migrations

import (
	"embed"
	"sort"
	"strings"
)

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS

// Schema returns all migration SQL concatenated in filename order, ready to
// hand to RunMigrations. Used at startup and by repository tests.
func Schema() (string, error) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		data, err := FS.ReadFile(name)
		if err != nil {
			return "", err
		}
		b.Write(data)
		b.WriteString("\n")
	}
	return b.String(), nil
}
