package gov

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// NetworkState represents a federated network state and its partnerships.
type NetworkState struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Name         string      `gorm:"size:128;uniqueIndex;not null" json:"name"`
	Description  string      `gorm:"type:text" json:"description"`
	Population   int64       `gorm:"not null;default:0" json:"population"`
	Partnerships StringSlice `gorm:"type:text" json:"partnerships"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// HasPartner reports whether name is already listed as a partner.
func (n *NetworkState) HasPartner(name string) bool {
	for _, p := range n.Partnerships {
		if p == name {
			return true
		}
	}
	return false
}

// StringSlice is stored as a JSON array in a text column.
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSlice) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = StringSlice{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("string slice: unsupported source %T", src)
	}
	if len(raw) == 0 {
		*s = StringSlice{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}
