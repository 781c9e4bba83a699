package utils

import (
	"encoding/json"
	"fmt"
	"time"
)

// RFC3339Date сериализуется в JSON как строка RFC3339 в UTC
type RFC3339Date struct {
	time.Time
}

func (d RFC3339Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Time.UTC().Format(time.RFC3339))
}

func (d *RFC3339Date) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	t, err := ParseRFC3339(str, time.Time{})
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// ParseRFC3339 разбирает value, пустая строка возвращает fallback
func ParseRFC3339(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("время %q не в формате RFC3339: %w", value, err)
	}
	return t, nil
}
