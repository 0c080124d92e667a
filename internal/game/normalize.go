package game

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/acrc-community/acrc/internal/models"
)

// Defaults for fields a server does not report.
const (
	UnknownServer = "Unknown Server"
	UnknownTrack  = "Unknown Track"
)

// Normalize maps a details document onto ServerLiveInfo.
// Keys are matched case-insensitively and missing fields fall back to defaults.
// The document itself is kept as Raw.
func Normalize(raw map[string]any) *models.ServerLiveInfo {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(map[string]any, len(raw))
	for _, k := range keys {
		key := strings.ToLower(k)
		// exact lowercase key wins, otherwise the first spelling in byte order
		if _, ok := fields[key]; ok && k != key {
			continue
		}
		fields[key] = raw[k]
	}

	info := &models.ServerLiveInfo{
		Name:        UnknownServer,
		Map:         UnknownTrack,
		Cars:        []string{},
		Description: "",
		Raw:         raw,
	}

	if s := text(fields["name"]); s != "" {
		info.Name = s
	}
	if s := track(fields["track"]); s != "" {
		info.Map = s
	} else if s := text(fields["map"]); s != "" {
		info.Map = s
	}
	info.Description = text(fields["description"])
	info.Cars = cars(fields["cars"])
	info.Clients = clients(fields["clients"])

	if n, ok := number(fields["port"]); ok && n > 0 && n <= 65535 {
		info.Port = n
	}

	for _, key := range []string{"maxclients", "max_clients", "maxplayers"} {
		if n, ok := number(fields[key]); ok {
			info.MaxClients = n
			break
		}
	}

	return info
}

func text(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// track accepts a plain name or an object with a name.
func track(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		for k, name := range t {
			if strings.EqualFold(k, "name") {
				return text(name)
			}
		}
	}

	return ""
}

// clients accepts a count or the list of connected clients.
func clients(v any) int {
	if list, ok := v.([]any); ok {
		return len(list)
	}
	n, _ := number(v)

	return n
}

// cars accepts model names or entry objects carrying a model name.
func cars(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		switch c := item.(type) {
		case string:
			if s := strings.TrimSpace(c); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, key := range []string{"model", "Model", "name", "Name"} {
				if s := text(c[key]); s != "" {
					out = append(out, s)
					break
				}
			}
		}
	}

	return out
}

func number(v any) (int, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		if f, err := n.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}

	return 0, false
}
