// Copyright (c) 2022 Exograd SAS.
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that the above
// copyright notice and this permission notice appear in all copies.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES
// WITH REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY
// SPECIAL, DIRECT, INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES
// WHATSOEVER RESULTING FROM LOSS OF USE, DATA OR PROFITS, WHETHER IN AN
// ACTION OF CONTRACT, NEGLIGENCE OR OTHER TORTIOUS ACTION, ARISING OUT OF OR
// IN CONNECTION WITH THE USE OR PERFORMANCE OF THIS SOFTWARE.

package daemon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/template"

	"gopkg.in/yaml.v3"
)

var TemplateFuncMap = map[string]interface{}{
	"env": func(name string) string {
		return os.Getenv(name)
	},

	"envDefault": func(name, defaultValue string) string {
		if value, found := os.LookupEnv(name); found {
			return value
		}

		return defaultValue
	},
}

// LoadCfg reads a YAML configuration file, renders it as a template, and
// decodes it into dest using JSON struct tags.
func LoadCfg(filePath string, dest interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", filePath, err)
	}

	if err := DecodeCfg(data, dest); err != nil {
		return fmt.Errorf("cannot load %s: %w", filePath, err)
	}

	return nil
}

func DecodeCfg(data []byte, dest interface{}) error {
	data, err := RenderCfg(data)
	if err != nil {
		return fmt.Errorf("cannot render configuration: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))

	var yamlValue interface{}
	if err := decoder.Decode(&yamlValue); err != nil && err != io.EOF {
		return fmt.Errorf("cannot decode yaml data: %w", err)
	}

	jsonValue, err := YAMLValueToJSONValue(yamlValue)
	if err != nil {
		return fmt.Errorf("invalid yaml data: %w", err)
	}

	jsonData, err := json.Marshal(jsonValue)
	if err != nil {
		return fmt.Errorf("cannot generate json data: %w", err)
	}

	if err := json.Unmarshal(jsonData, dest); err != nil {
		return fmt.Errorf("cannot decode json data: %w", err)
	}

	return nil
}

func RenderCfg(data []byte) ([]byte, error) {
	tpl := template.New("")
	tpl = tpl.Option("missingkey=error")
	tpl = tpl.Funcs(TemplateFuncMap)

	if _, err := tpl.Parse(string(data)); err != nil {
		return nil, err
	}

	var buf bytes.Buffer

	if err := tpl.Execute(&buf, struct{}{}); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// YAMLValueToJSONValue converts a value decoded by yaml.v3 to a value which
// can be encoded to JSON, i.e. with string keys only.
func YAMLValueToJSONValue(yamlValue interface{}) (interface{}, error) {
	switch v := yamlValue.(type) {
	case map[string]interface{}:
		jsonValue := make(map[string]interface{}, len(v))

		for key, child := range v {
			jsonChild, err := YAMLValueToJSONValue(child)
			if err != nil {
				return nil, fmt.Errorf("invalid member %q: %w", key, err)
			}

			jsonValue[key] = jsonChild
		}

		return jsonValue, nil

	case map[interface{}]interface{}:
		jsonValue := make(map[string]interface{}, len(v))

		for key, child := range v {
			keyString, ok := key.(string)
			if !ok {
				return nil, fmt.Errorf("invalid non-string key %#v", key)
			}

			jsonChild, err := YAMLValueToJSONValue(child)
			if err != nil {
				return nil, fmt.Errorf("invalid member %q: %w", keyString, err)
			}

			jsonValue[keyString] = jsonChild
		}

		return jsonValue, nil

	case []interface{}:
		jsonValue := make([]interface{}, len(v))

		for i, child := range v {
			jsonChild, err := YAMLValueToJSONValue(child)
			if err != nil {
				return nil, fmt.Errorf("invalid element %d: %w", i, err)
			}

			jsonValue[i] = jsonChild
		}

		return jsonValue, nil

	default:
		return yamlValue, nil
	}
}
