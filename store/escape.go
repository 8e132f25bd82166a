package store

import "github.com/lib/pq"

// EscapeLiteral returns s quoted and escaped so it is safe to splice into a
// SQL statement as a literal value, per spec §4.A. An empty string maps to
// the unquoted token NULL, matching the contract that callers use this
// function even when a value is conceptually absent.
func EscapeLiteral(s string) string {
	if s == "" {
		return "NULL"
	}
	return pq.QuoteLiteral(s)
}

// EscapeIdentifier returns s quoted so it is safe to splice into a SQL
// statement as an identifier (table or column name).
func EscapeIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// EscapeLiteralPtr is EscapeLiteral for an optional string, mapping a nil
// pointer to NULL the same way an empty string does.
func EscapeLiteralPtr(s *string) string {
	if s == nil {
		return "NULL"
	}
	return EscapeLiteral(*s)
}
