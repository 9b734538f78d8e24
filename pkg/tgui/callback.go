package tgui

import (
	"strings"
)

// Data formats inline callback data as "plugin:action:payload".
// Payload is kept as-is; it must not contain the separator in the
// plugin/action parts (payload itself may).
func Data(plugin, action, payload string) string {
	plugin = strings.TrimSpace(plugin)
	action = strings.TrimSpace(action)
	if payload == "" {
		return plugin + ":" + action
	}
	return plugin + ":" + action + ":" + payload
}

// ParseData splits callback data produced by Data back into its parts.
// Payload may contain ':' so only the first two separators are consumed.
func ParseData(data string) (plugin, action, payload string) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) > 0 {
		plugin = parts[0]
	}
	if len(parts) > 1 {
		action = parts[1]
	}
	if len(parts) > 2 {
		payload = parts[2]
	}
	return plugin, action, payload
}
