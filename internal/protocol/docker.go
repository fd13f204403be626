package protocol

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-containerregistry/pkg/v1/types"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// Manifest types are matched by family, so the schema version suffix is dropped.
var (
	dockerManifestMediaType = strings.TrimSuffix(string(types.DockerManifestSchema2), ".v2+json")
	ociManifestMediaType    = strings.TrimSuffix(ocispec.MediaTypeImageManifest, ".v1+json")
	dockerLayerMediaType    = string(types.DockerLayer)
)

// IsDockerRequest reports whether the request targets a container registry.
// Any single weak signal is enough: the /v2 API root anywhere in the path,
// a docker/ user agent (any case), or a manifest media type in Accept or
// Content-Type (exact case).
func IsDockerRequest(r *http.Request, u *url.URL) bool {
	path := pathOf(r, u)
	if path == "/v2" || strings.Contains(path, "/v2/") {
		return true
	}
	if strings.Contains(strings.ToLower(header(r, "User-Agent")), "docker/") {
		return true
	}
	if containsAny(header(r, "Accept"), dockerManifestMediaType, ociManifestMediaType, dockerLayerMediaType) {
		return true
	}
	return containsAny(header(r, "Content-Type"), dockerManifestMediaType, ociManifestMediaType)
}
