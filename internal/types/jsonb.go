package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// These ensure all JSONB types implement both sql.Scanner and driver.Valuer,
// catching any method signature drift at compile time rather than at runtime.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*Capabilities)(nil)
	_ driver.Valuer = Capabilities(nil)
	_ sql.Scanner   = (*ChargingMeta)(nil)
	_ driver.Valuer = ChargingMeta(nil)
)

// scanJSONB is a generic helper that scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Capabilities is a free-form capability flag set carried on membership edges
// beyond the role itself (e.g. {"export_reports": true}). Stored as JSONB.
type Capabilities map[string]bool

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (c *Capabilities) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	return scanJSONB(c, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (c Capabilities) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

// Has reports whether the flag is present and enabled.
func (c Capabilities) Has(flag string) bool {
	return c[flag]
}

// ChargingMeta carries opaque charging metadata on a plan association:
// external purchase ids, gateway transaction references, promo codes.
// The core never interprets it beyond round-tripping.
type ChargingMeta map[string]any

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (m *ChargingMeta) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}
	return scanJSONB(m, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (m ChargingMeta) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
