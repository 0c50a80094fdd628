package sis

import (
	"context"
	"database/sql"
	"fmt"
)

// RosterEntry is one student row from the SIS.
type RosterEntry struct {
	StudentID string
	Name      string
	Class     string
}

// GetRoster returns the SIS student roster ordered by class and code.
// An empty class matches all classes.
func (p *Pool) GetRoster(ctx context.Context, class string) ([]RosterEntry, error) {
	query := `
		SELECT code, full_name, class_name
		FROM students
		WHERE (? = '' OR class_name = ?)
		ORDER BY class_name, code
	`

	rows, err := p.db.QueryContext(ctx, query, class, class)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	var roster []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		var className sql.NullString
		if err := rows.Scan(&entry.StudentID, &entry.Name, &className); err != nil {
			return nil, fmt.Errorf("scan roster row: %w", err)
		}
		entry.Class = className.String
		roster = append(roster, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roster rows: %w", err)
	}

	return roster, nil
}

// GetClasses returns the distinct class names in the SIS.
func (p *Pool) GetClasses(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT class_name
		FROM students
		WHERE class_name IS NOT NULL AND class_name != ''
		ORDER BY class_name
	`)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	var classes []string
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("scan class row: %w", err)
		}
		classes = append(classes, class)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate class rows: %w", err)
	}

	return classes, nil
}
