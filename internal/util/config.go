package util

import (
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

var listSeparator = regexp.MustCompile(`\s*,\s*`)

// SplitList splits a comma separated label list, dropping empty entries
func SplitList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var items []string
	for _, item := range listSeparator.Split(s, -1) {
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetList reads a list setting that may be given either as a comma separated
// string (flag or environment variable) or as a YAML sequence (config file)
func GetList(key string) []string {
	switch v := viper.Get(key).(type) {
	case nil:
		return nil
	case string:
		return SplitList(v)
	default:
		var items []string
		for _, item := range viper.GetStringSlice(key) {
			items = append(items, SplitList(item)...)
		}
		return items
	}
}
