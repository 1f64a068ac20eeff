// internal/repository/postgres/role_sql.go
package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// roleSpaces is every rune strings.TrimSpace removes. Postgres BTRIM trims
// only ' ' by default.
var roleSpaces = []rune{
	'\t', '\n', '\v', '\f', '\r', ' ', 0x85, 0xA0,
	0x1680, 0x2000, 0x2001, 0x2002, 0x2003, 0x2004, 0x2005, 0x2006,
	0x2007, 0x2008, 0x2009, 0x200A, 0x2028, 0x2029, 0x202F, 0x205F, 0x3000,
}

// canonicalRoleExpr is the SQL twin of canonicalRole.
var canonicalRoleExpr = func() string {
	var b strings.Builder
	b.WriteString("LOWER(BTRIM(role, E'")
	for _, r := range roleSpaces {
		fmt.Fprintf(&b, `\u%04X`, r)
	}
	b.WriteString("'))")
	return b.String()
}()

func canonicalRole(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// NormalizeRolesSQL renders the role repair as a standalone script for
// operators who apply changes by hand.
func NormalizeRolesSQL(table string) string {
	return fmt.Sprintf(
		"UPDATE %s SET role = %s, updated_at = NOW() WHERE role IS NOT NULL AND role <> %s;\n",
		pq.QuoteIdentifier(table), canonicalRoleExpr, canonicalRoleExpr,
	)
}

// SetRoleSQL renders a single role assignment with quoted literals.
func SetRoleSQL(table, userID, role string) string {
	return fmt.Sprintf(
		"UPDATE %s SET role = %s, updated_at = NOW() WHERE id = %s;\n",
		pq.QuoteIdentifier(table),
		pq.QuoteLiteral(strings.TrimSpace(role)),
		pq.QuoteLiteral(userID),
	)
}
