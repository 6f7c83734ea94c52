package util

import (
	"strconv"
	"strings"
)

// KeywordArgs splits a list of key=value arguments into a map. Bare values
// (no =) go under the empty key.
func KeywordArgs(args []string) map[string]string {
	ret := map[string]string{}
	for _, arg := range args {
		p := strings.SplitN(arg, "=", 2)
		if len(p) == 2 {
			ret[p[0]] = p[1]
		} else {
			ret[""] = p[0]
		}
	}
	return ret
}

// ParseArg converts a string value to a float64 if it looks numeric.
func ParseArg(value string) interface{} {
	if num, err := strconv.ParseFloat(value, 64); err == nil {
		return num
	}
	return value
}

// ParseArgs splits command line style arguments into a command and typed
// keyword fields.
func ParseArgs(args []string) (string, map[string]interface{}) {
	kwargs := KeywordArgs(args)
	command := ""
	fields := map[string]interface{}{}
	for field, value := range kwargs {
		if field == "" {
			command = value
		} else {
			fields[field] = ParseArg(value)
		}
	}
	return command, fields
}
