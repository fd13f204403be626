package router

import (
	"sort"
	"strings"

	"github.com/kenelite/go-accel/internal/config"
)

type platform struct {
	prefix   string
	upstream string
}

// newPlatforms orders platforms longest prefix first so /cr/ghcr wins over /cr.
func newPlatforms(cfgs []config.PlatformConfig) []platform {
	out := make([]platform, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, platform{prefix: strings.TrimSuffix(c.Prefix, "/"), upstream: c.UpstreamRef})
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].prefix) > len(out[j].prefix) })
	return out
}

// matchPlatform finds the platform owning path and returns the remainder of
// the path after its prefix. Prefixes only match whole segments.
func matchPlatform(platforms []platform, path string) (platform, string, bool) {
	for _, p := range platforms {
		if path == p.prefix {
			return p, "/", true
		}
		if strings.HasPrefix(path, p.prefix+"/") {
			return p, path[len(p.prefix):], true
		}
	}
	return platform{}, "", false
}

func singleJoiningSlash(a, b string) string {
	as := strings.HasSuffix(a, "/")
	bs := strings.HasPrefix(b, "/")
	switch {
	case as && bs:
		return a + b[1:]
	case !as && !bs:
		return a + "/" + b
	default:
		return a + b
	}
}
