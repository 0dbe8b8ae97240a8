// Package configuration implements the reading of generic Unix-type
// configuration files and typed access helpers over their key-value maps.
package configuration

import (
	"fmt"
	"strconv"
)

type genericConfigProvider interface {
	Read(filenames ...string) (envMap map[string]string, err error)
}

// Handler is the principal implementation of the configuration layer.
type Handler struct {
	configReader genericConfigProvider
}

// NewHandler returns a pointer to a new configuration [Handler].
func NewHandler(configReader genericConfigProvider) *Handler {
	return &Handler{
		configReader: configReader,
	}
}

// ReadGeneric reads one or more configuration files into a map
// (map[key]value).
func (c *Handler) ReadGeneric(filenames ...string) (map[string]string, error) {
	envMap, err := c.configReader.Read(filenames...)
	if err != nil {
		return envMap, fmt.Errorf("(config) %w", err)
	}

	return envMap, nil
}

// MapKeyToString returns the string value of a map key, or an empty string
// when the key is absent.
func (c *Handler) MapKeyToString(envMap map[string]string, key string) string {
	if value, exists := envMap[key]; exists {
		return value
	}

	return ""
}

// MapKeyToInt returns the integer value of a map key, or -1 when the key is
// absent or not parseable.
func (c *Handler) MapKeyToInt(envMap map[string]string, key string) int {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return -1
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}

	return intValue
}

// MapKeyToUInt64 returns the unsigned integer value of a map key, or 0 when
// the key is absent or not parseable.
func (c *Handler) MapKeyToUInt64(envMap map[string]string, key string) uint64 {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return 0
	}

	uintValue, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}

	return uintValue
}

// MapKeyToBool returns the boolean value of a map key, or false when the
// key is absent or not parseable.
func (c *Handler) MapKeyToBool(envMap map[string]string, key string) bool {
	value := c.MapKeyToString(envMap, key)
	if value == "" {
		return false
	}

	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return false
	}

	return boolValue
}
