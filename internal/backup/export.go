package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/customers"
	"github.com/tillworks/tillworks/internal/inventory"
	"github.com/tillworks/tillworks/internal/procurement"
	"github.com/tillworks/tillworks/internal/sales"
)

// Format selects the export serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnknownFormat indicates an unsupported export format.
var ErrUnknownFormat = errors.New("backup: unknown format")

// DefaultTypeKeys lists every exportable collection.
var DefaultTypeKeys = []string{
	catalog.KeySuperCategories,
	catalog.KeySubCategories,
	catalog.KeyProducts,
	customers.KeyCustomers,
	sales.KeySales,
	inventory.KeyItems,
	inventory.KeyTransactions,
	procurement.KeySuppliers,
	procurement.KeyPurchaseOrders,
}

var sectionHeader = regexp.MustCompile(`=== ([A-Za-z0-9_]+) ===`)

// cellKind classifies fields whose stored JSON representation is not a
// string, so CSV import can restore the type the collection's readers
// expect. Fields not listed here stay strings.
type cellKind int

const (
	kindNumber cellKind = iota + 1
	kindBool
	kindJSON
)

var typedFields = map[string]map[string]cellKind{
	catalog.KeyProducts: {
		"price": kindNumber, "stock": kindNumber, "hamaliValue": kindNumber,
	},
	sales.KeySales: {
		"timestamp": kindNumber, "subtotal": kindNumber, "hamaliCharges": kindNumber,
		"total": kindNumber, "isCashSale": kindBool, "items": kindJSON,
	},
	inventory.KeyItems: {
		"openingStock": kindNumber, "purchases": kindNumber, "sales": kindNumber,
		"adjustments": kindNumber, "closingStock": kindNumber, "reorderLevel": kindNumber,
	},
	inventory.KeyTransactions: {
		"quantity": kindNumber,
	},
	procurement.KeyPurchaseOrders: {
		"total": kindNumber, "items": kindJSON,
	},
}

// ExportSelected serializes the requested collections. JSON produces a
// pretty-printed key-to-collection map; CSV produces one section per key
// with a header row taken from the first record's field order.
func (s *Service) ExportSelected(ctx context.Context, typeKeys []string, format Format) (string, error) {
	switch format {
	case FormatJSON:
		return s.exportJSON(ctx, typeKeys)
	case FormatCSV:
		return s.exportCSV(ctx, typeKeys)
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func (s *Service) exportJSON(ctx context.Context, typeKeys []string) (string, error) {
	out := make(map[string]json.RawMessage, len(typeKeys))
	for _, key := range typeKeys {
		raw, ok, err := s.store.GetRaw(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			raw = "[]"
		}
		out[key] = json.RawMessage(raw)
	}
	payload, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func (s *Service) exportCSV(ctx context.Context, typeKeys []string) (string, error) {
	var b strings.Builder
	for _, key := range typeKeys {
		raw, ok, err := s.store.GetRaw(ctx, key)
		if err != nil {
			return "", err
		}
		if !ok {
			raw = "[]"
		}
		b.WriteString("\n\n=== ")
		b.WriteString(strings.ToUpper(key))
		b.WriteString(" ===\n")

		var rows []json.RawMessage
		if err := json.Unmarshal([]byte(raw), &rows); err != nil {
			// Not a sequence: single key/value dump.
			w := csv.NewWriter(&b)
			_ = w.Write([]string{key, raw})
			w.Flush()
			continue
		}
		if len(rows) == 0 {
			continue
		}
		fields := fieldOrder(rows[0])
		w := csv.NewWriter(&b)
		if err := w.Write(fields); err != nil {
			return "", err
		}
		for _, row := range rows {
			var record map[string]interface{}
			if err := json.Unmarshal(row, &record); err != nil {
				return "", fmt.Errorf("backup: decode %s record: %w", key, err)
			}
			line := make([]string, len(fields))
			for i, field := range fields {
				line[i] = cell(record[field])
			}
			if err := w.Write(line); err != nil {
				return "", err
			}
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// ImportSelected is the inverse of ExportSelected. Each selected key present
// in the parsed payload is overwritten wholesale; import never merges.
func (s *Service) ImportSelected(ctx context.Context, raw string, typeKeys []string, format Format) error {
	switch format {
	case FormatJSON:
		return s.importJSON(ctx, raw, typeKeys)
	case FormatCSV:
		return s.importCSV(ctx, raw, typeKeys)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func (s *Service) importJSON(ctx context.Context, raw string, typeKeys []string) error {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fmt.Errorf("backup: parse import payload: %w", err)
	}
	for _, key := range typeKeys {
		value, ok := parsed[key]
		if !ok {
			continue
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, value); err != nil {
			return fmt.Errorf("backup: compact %s: %w", key, err)
		}
		if err := s.store.SetRaw(ctx, key, compact.String()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) importCSV(ctx context.Context, raw string, typeKeys []string) error {
	matches := sectionHeader.FindAllStringSubmatchIndex(raw, -1)
	for i, match := range matches {
		section := raw[match[2]:match[3]]
		key := matchTypeKey(section, typeKeys)
		if key == "" {
			continue
		}
		body := raw[match[1]:]
		if i+1 < len(matches) {
			body = raw[match[1]:matches[i+1][0]]
		}
		records, err := parseSection(body)
		if err != nil {
			return fmt.Errorf("backup: parse %s section: %w", key, err)
		}
		coerced, err := coerceRecords(key, records)
		if err != nil {
			return fmt.Errorf("backup: parse %s section: %w", key, err)
		}
		payload, err := json.Marshal(coerced)
		if err != nil {
			return err
		}
		if err := s.store.SetRaw(ctx, key, string(payload)); err != nil {
			return err
		}
	}
	return nil
}

func parseSection(body string) ([]map[string]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(body)))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	records := []map[string]string{}
	if len(rows) < 2 {
		return records, nil
	}
	header := rows[0]
	for _, row := range rows[1:] {
		record := make(map[string]string, len(header))
		for i, field := range header {
			if i < len(row) {
				record[field] = row[i]
			} else {
				record[field] = ""
			}
		}
		records = append(records, record)
	}
	return records, nil
}

// coerceRecords restores the stored JSON types of known fields so the
// rebuilt collection stays readable by its typed consumers. Empty cells are
// dropped (the stored shape omits absent fields); unknown fields stay
// strings.
func coerceRecords(key string, records []map[string]string) ([]map[string]interface{}, error) {
	kinds := typedFields[key]
	out := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		coerced := make(map[string]interface{}, len(record))
		for field, value := range record {
			if value == "" {
				continue
			}
			switch kinds[field] {
			case kindNumber:
				n, err := strconv.ParseFloat(value, 64)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", field, err)
				}
				coerced[field] = n
			case kindBool:
				b, err := strconv.ParseBool(value)
				if err != nil {
					return nil, fmt.Errorf("field %s: %w", field, err)
				}
				coerced[field] = b
			case kindJSON:
				if !json.Valid([]byte(value)) {
					return nil, fmt.Errorf("field %s: invalid embedded json", field)
				}
				coerced[field] = json.RawMessage(value)
			default:
				coerced[field] = value
			}
		}
		out = append(out, coerced)
	}
	return out, nil
}

func matchTypeKey(section string, typeKeys []string) string {
	for _, key := range typeKeys {
		if strings.EqualFold(section, key) {
			return key
		}
	}
	return ""
}

// fieldOrder lists the first record's field names in their serialized
// order, which becomes the CSV header.
func fieldOrder(record json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(record))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	var fields []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fields
		}
		key, ok := keyTok.(string)
		if !ok {
			return fields
		}
		fields = append(fields, key)
		if err := skipValue(dec); err != nil {
			return fields
		}
	}
	return fields
}

func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}

func cell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		payload, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(payload)
	}
}
