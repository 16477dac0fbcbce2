package erp

import (
	"encoding/json"
	"fmt"

	"github.com/coreline-labs/erpsync-core/internal/core/domain"
)

// The entity loading endpoint returns rows positionally: a field metadata
// block mapping field names to value indexes, and each row as a plain
// value array. decodePage rebuilds named records from the two.

// fieldMeta is one entry of the response's field metadata block.
type fieldMeta struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// loadResponse is the wire shape of one entity page.
type loadResponse struct {
	Fields  []fieldMeta       `json:"fields"`
	Rows    [][]json.RawMessage `json:"rows"`
	HasMore bool              `json:"has_more"`
}

// decodePage converts a positional payload into named records.
// Values beyond a row's length are treated as absent; non-string values
// are kept as their raw JSON text, matching the stringly typed mirror.
func decodePage(body []byte) (*domain.Page, error) {
	var resp loadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode entity page: %w", err)
	}

	page := &domain.Page{
		Records: make([]domain.Record, 0, len(resp.Rows)),
		HasMore: resp.HasMore,
	}
	for _, row := range resp.Rows {
		record := make(domain.Record, len(resp.Fields))
		for _, field := range resp.Fields {
			if field.Index < 0 || field.Index >= len(row) {
				continue
			}
			record[field.Name] = decodeValue(row[field.Index])
		}
		page.Records = append(page.Records, record)
	}
	return page, nil
}

// decodeValue renders one positional value as a string. JSON strings are
// unquoted; numbers, booleans and nulls keep their literal text (null
// becomes the empty string).
func decodeValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if string(raw) == "null" {
		return ""
	}
	return string(raw)
}
