package protocol

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	gitUploadPack  = "git-upload-pack"
	gitReceivePack = "git-receive-pack"
	gitLFSMedia    = "application/vnd.git-lfs"
)

var lfsObjectPath = regexp.MustCompile(`/objects/[a-fA-F0-9]{64}$`)

// IsGitRequest reports whether the request speaks the Git smart HTTP protocol.
func IsGitRequest(r *http.Request, u *url.URL) bool {
	path := pathOf(r, u)
	if strings.HasSuffix(path, "/info/refs") ||
		strings.HasSuffix(path, "/"+gitUploadPack) ||
		strings.HasSuffix(path, "/"+gitReceivePack) {
		return true
	}
	if strings.Contains(header(r, "User-Agent"), "git/") {
		return true
	}
	if ru := requestURL(r, u); ru != nil {
		if svc := ru.Query().Get("service"); svc == gitUploadPack || svc == gitReceivePack {
			return true
		}
	}
	return containsAny(header(r, "Content-Type"), gitUploadPack, gitReceivePack)
}

// IsGitLFSRequest reports whether the request belongs to the Git LFS batch
// or transfer API.
func IsGitLFSRequest(r *http.Request, u *url.URL) bool {
	path := pathOf(r, u)
	if strings.Contains(path, "/info/lfs") || strings.Contains(path, "/objects/batch") {
		return true
	}
	if lfsObjectPath.MatchString(path) {
		return true
	}
	if strings.Contains(header(r, "Accept"), gitLFSMedia) || strings.Contains(header(r, "Content-Type"), gitLFSMedia) {
		return true
	}
	return strings.Contains(header(r, "User-Agent"), "git-lfs/")
}
