package domain

// Record is one entity row fetched from the ERP API, keyed by field name.
// The ERP wire format is positional (values indexed by field number plus a
// field metadata block); the gateway decodes it into named fields before
// it reaches the engine. Business field semantics are opaque to the engine.
type Record map[string]string

// Key returns the value of the given natural key field, or "" if absent.
func (r Record) Key(field string) string {
	return r[field]
}

// Page is one page of records from the ERP entity loading endpoint.
type Page struct {
	Records []Record
	HasMore bool
}
