// ABOUTME: Executes DAX queries against a dataset and flattens the first result table.
// ABOUTME: Column order follows the key order of the returned row objects.

package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Table is a query result with every value already stringified.
type Table struct {
	Columns []string
	Rows    [][]string
}

// HeaderLine joins the column names with sep and a trailing newline. It is
// empty for a table without columns.
func (t *Table) HeaderLine(sep string) string {
	if len(t.Columns) == 0 {
		return ""
	}
	return strings.Join(t.Columns, sep) + "\n"
}

// Lines renders every row as sep-joined values with a trailing newline.
func (t *Table) Lines(sep string) []string {
	lines := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		lines = append(lines, strings.Join(row, sep)+"\n")
	}
	return lines
}

type queryRequest struct {
	Queries            []queryText        `json:"queries"`
	SerializerSettings serializerSettings `json:"serializerSettings"`
}

type queryText struct {
	Query string `json:"query"`
}

type serializerSettings struct {
	IncludeNulls bool `json:"includeNulls"`
}

type queryResponse struct {
	Results []queryResult `json:"results"`
}

type queryResult struct {
	Tables []struct {
		Rows []json.RawMessage `json:"rows"`
	} `json:"tables"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) ExecuteQuery(ctx context.Context, datasetID, query string) (*Table, error) {
	const op = "query dataset"

	payload := queryRequest{
		Queries:            []queryText{{Query: query}},
		SerializerSettings: serializerSettings{IncludeNulls: true},
	}

	resp, body, err := c.do(ctx, http.MethodPost, c.groupPath("datasets", datasetID, "executeQueries"), payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var res queryResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%s: decoding response: %w", op, err)
	}
	if len(res.Results) == 0 {
		return nil, fmt.Errorf("%s: response has no results", op)
	}

	first := res.Results[0]
	if first.Error != nil {
		return nil, &QueryError{Code: first.Error.Code, Message: first.Error.Message}
	}
	if len(first.Tables) == 0 {
		return &Table{}, nil
	}

	table, err := buildTable(first.Tables[0].Rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return table, nil
}

// buildTable takes its columns from the first row. Keys that only appear in
// later rows are appended; keys missing from a row render empty.
func buildTable(rows []json.RawMessage) (*Table, error) {
	t := &Table{}
	seen := map[string]bool{}

	decoded := make([]map[string]string, 0, len(rows))
	for i, raw := range rows {
		keys, values, err := decodeRow(raw)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				t.Columns = append(t.Columns, k)
			}
		}
		decoded = append(decoded, values)
	}

	for _, values := range decoded {
		row := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			row[i] = values[col]
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}

// decodeRow reads a JSON object keeping its key order.
func decodeRow(raw json.RawMessage) ([]string, map[string]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, errors.New("row is not an object")
	}

	var keys []string
	values := map[string]string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, nil, err
		}

		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = stringify(v)
	}

	return keys, values, nil
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		data, _ := json.Marshal(val)
		return string(data)
	}
}
