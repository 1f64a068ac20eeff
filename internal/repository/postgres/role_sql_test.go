package postgres

import (
	"testing"
	"unicode"

	"workwise-service/internal/pkg/session"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRolesSQL(t *testing.T) {
	got := NormalizeRolesSQL("profiles")
	assert.Contains(t, got, `UPDATE "profiles" SET role = LOWER(BTRIM(role, E'\u0009\u000A\u000B\u000C\u000D\u0020\u0085\u00A0`)
	assert.Contains(t, got, `WHERE role IS NOT NULL AND role <> LOWER(BTRIM(role, E'`)
	assert.Contains(t, NormalizeRolesSQL(`we"ird`), `"we""ird"`)
}

func TestRoleSpacesMatchTrimSpace(t *testing.T) {
	set := map[rune]bool{}
	for _, r := range roleSpaces {
		assert.True(t, unicode.IsSpace(r), "%U is not whitespace", r)
		set[r] = true
	}
	for r := rune(0); r <= unicode.MaxRune; r++ {
		if unicode.IsSpace(r) {
			assert.True(t, set[r], "%U missing from trim set", r)
		}
	}
}

func TestCanonicalRoleAgreesWithResolution(t *testing.T) {
	for _, raw := range []string{"admin\t", "\nAdmin\r\n", " ADMIN", "admin　"} {
		assert.Equal(t, "admin", canonicalRole(raw), "%q", raw)
		assert.Equal(t, "admin", string(session.NormalizeRole(raw)), "%q", raw)
	}
	assert.Equal(t, "administrator", canonicalRole(" Administrator "))
}

func TestSetRoleSQLQuotesValues(t *testing.T) {
	got := SetRoleSQL("profiles", "abc'; DROP TABLE profiles; --", " admin ")
	assert.Equal(t,
		"UPDATE \"profiles\" SET role = 'admin', updated_at = NOW() WHERE id = 'abc''; DROP TABLE profiles; --';\n",
		got,
	)
}
