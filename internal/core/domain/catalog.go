package domain

// TableSpec describes one mirrored entity type: what to request from the
// ERP API and where to store it locally. The whole per-entity surface of
// the engine is parameterized by this type; one generic pipeline replaces
// per-entity sync code.
type TableSpec struct {
	// Entity is the ERP-side entity name sent to the loading endpoint.
	Entity string
	// LocalTable is the mirrored postgres table.
	LocalTable string
	// KeyField is the natural key column, unique per tenant.
	KeyField string
	// Fields is the ERP field list to request. KeyField must be included.
	Fields []string
	// Map optionally rewrites a fetched record before reconciliation
	// (renaming ERP fields to local columns, dropping unused ones).
	// Nil means the record is stored as-is.
	Map func(Record) Record
}

// MapRecord applies the spec's mapping function, if any.
func (s TableSpec) MapRecord(r Record) Record {
	if s.Map == nil {
		return r
	}
	return s.Map(r)
}

// Catalog returns the fixed, ordered list of mirrored tables. A tenant
// pass syncs every entry in this order; the order is deterministic so
// referenced entities (partners, products) land before their dependents.
func Catalog() []TableSpec {
	return []TableSpec{
		{
			Entity:     "Parceiro",
			LocalTable: "mirror_partners",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "nome", "documento", "cidade", "uf", "ativo"},
		},
		{
			Entity:     "Vendedor",
			LocalTable: "mirror_sellers",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "nome", "email", "ativo"},
		},
		{
			Entity:     "Produto",
			LocalTable: "mirror_products",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "descricao", "unidade", "grupo", "ativo"},
		},
		{
			Entity:     "GrupoProduto",
			LocalTable: "mirror_product_groups",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "descricao"},
		},
		{
			Entity:     "TabelaPreco",
			LocalTable: "mirror_price_tables",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "descricao", "ativa"},
		},
		{
			Entity:     "PrecoProduto",
			LocalTable: "mirror_product_prices",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "tabela", "produto", "preco"},
		},
		{
			Entity:     "CondicaoPagamento",
			LocalTable: "mirror_payment_terms",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "descricao", "parcelas"},
		},
		{
			Entity:     "Transportadora",
			LocalTable: "mirror_carriers",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "nome", "documento"},
		},
		{
			Entity:     "LocalEstoque",
			LocalTable: "mirror_stock_locations",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "descricao"},
		},
		{
			Entity:     "SaldoEstoque",
			LocalTable: "mirror_stock_balances",
			KeyField:   "codigo",
			Fields:     []string{"codigo", "produto", "local", "saldo"},
		},
	}
}
