package tools

import "encoding/json"

func marshalSchema(schema map[string]any) (string, error) {
	b, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
