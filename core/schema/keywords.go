package schema

import "strings"

// sqlKeywords are SQLite's reserved words. Identifiers are rendered into SQL
// unquoted, so none of them can name a table, column or index.
var sqlKeywords = func() map[string]bool {
	words := strings.Fields(`
		abort action add after all alter always analyze and as asc attach
		autoincrement before begin between by cascade case cast check collate
		column commit conflict constraint create cross current current_date
		current_time current_timestamp database default deferrable deferred
		delete desc detach distinct do drop each else end escape except exclude
		exclusive exists explain fail filter first following for foreign from
		full generated glob group groups having if ignore immediate in index
		indexed initially inner insert instead intersect into is isnull join key
		last left like limit match materialized natural no not nothing notnull
		null nulls of offset on or order others outer over partition plan pragma
		preceding primary query raise range recursive references regexp reindex
		release rename replace restrict returning right rollback row rows
		savepoint select set table temp temporary then ties to transaction
		trigger unbounded union unique update using vacuum values view virtual
		when where window with without`)
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}()

// IsKeyword reports whether name is an SQLite keyword, ignoring case.
func IsKeyword(name string) bool {
	return sqlKeywords[strings.ToLower(name)]
}
