package procio

import (
	"runtime"
	"strings"
)

// envEdit is one change applied over the inherited environment.
type envEdit struct {
	key    string
	value  string
	remove bool
}

// mergeEnv applies edits over base, a list of "key=value" entries. Each key
// appears once in the result, holding the value written last; keys keep the
// position of their first appearance. Keys compare case-insensitively on
// Windows.
func mergeEnv(base []string, edits []envEdit) []string {
	type entry struct {
		kv      string
		removed bool
	}
	var entries []entry
	index := make(map[string]int)
	set := func(k, kv string, remove bool) {
		nk := normalizeEnvKey(k)
		if i, ok := index[nk]; ok {
			entries[i] = entry{kv: kv, removed: remove}
			return
		}
		index[nk] = len(entries)
		entries = append(entries, entry{kv: kv, removed: remove})
	}
	for _, kv := range base {
		k, _, ok := splitEnv(kv)
		if !ok {
			continue
		}
		set(k, kv, false)
	}
	for _, e := range edits {
		set(e.key, e.key+"="+e.value, e.remove)
	}
	env := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.removed {
			env = append(env, e.kv)
		}
	}
	return env
}

// splitEnv splits "key=value". The search for '=' starts at the second byte
// so Windows' hidden per-drive entries such as "=C:=C:\dir" keep their key.
func splitEnv(kv string) (key, value string, ok bool) {
	if len(kv) == 0 {
		return "", "", false
	}
	i := strings.IndexByte(kv[1:], '=')
	if i < 0 {
		return "", "", false
	}
	return kv[:i+1], kv[i+2:], true
}

func normalizeEnvKey(k string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(k)
	}
	return k
}

// lookupEnv returns the value of key in env.
func lookupEnv(env []string, key string) (string, bool) {
	nk := normalizeEnvKey(key)
	for i := len(env) - 1; i >= 0; i-- {
		k, v, ok := splitEnv(env[i])
		if ok && normalizeEnvKey(k) == nk {
			return v, true
		}
	}
	return "", false
}
