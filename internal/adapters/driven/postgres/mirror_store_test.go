package postgres

import (
	"strings"
	"testing"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

func TestUpsertQuery(t *testing.T) {
	spec := domain.TableSpec{
		Entity:     "Parceiro",
		LocalTable: "mirror_partners",
		KeyField:   "codigo",
		Fields:     []string{"codigo", "nome", "documento"},
	}

	query := upsertQuery(spec)

	for _, want := range []string{
		`INSERT INTO "mirror_partners" (tenant_id, "codigo", "nome", "documento", current, loaded_at)`,
		`VALUES ($1, $2, $3, $4, true, $5)`,
		`ON CONFLICT (tenant_id, "codigo") DO UPDATE SET`,
		`"nome" = EXCLUDED."nome"`,
		`"documento" = EXCLUDED."documento"`,
		`current = true`,
		`loaded_at = EXCLUDED.loaded_at`,
		`RETURNING (xmax = 0)`,
	} {
		if !strings.Contains(query, want) {
			t.Errorf("query missing %q:\n%s", want, query)
		}
	}

	// The natural key is the conflict target, never reassigned.
	if strings.Contains(query, `"codigo" = EXCLUDED."codigo"`) {
		t.Errorf("query must not reassign the key column:\n%s", query)
	}
}

func TestUpsertQuery_SingleField(t *testing.T) {
	spec := domain.TableSpec{
		Entity:     "LocalEstoque",
		LocalTable: "mirror_stock_locations",
		KeyField:   "codigo",
		Fields:     []string{"codigo", "descricao"},
	}

	query := upsertQuery(spec)

	if !strings.Contains(query, `VALUES ($1, $2, $3, true, $4)`) {
		t.Errorf("unexpected placeholder layout:\n%s", query)
	}
}
