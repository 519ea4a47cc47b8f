package weburl

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/fridayweigh/weights/src/config"
)

type Q struct {
	Name  string
	Value string
}

var baseUrl = config.Config.BaseUrl

func SetGlobalBaseUrl(u string) {
	baseUrl = strings.TrimSuffix(u, "/")
}

// Path builds a root-relative path. Pages served to the browser use these so
// the app works behind any host.
func Path(path string, query []Q) string {
	result := "/" + trim(path)
	if q := encodeQuery(query); q != "" {
		result += "?" + q
	}
	return result
}

// Url builds an absolute URL against the configured base URL.
func Url(path string, query []Q) string {
	return strings.TrimSuffix(baseUrl, "/") + Path(path, query)
}

func trim(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}

func encodeQuery(query []Q) string {
	result := url.Values{}
	for _, q := range query {
		result.Set(q.Name, q.Value)
	}
	return result.Encode()
}

var RegexHomepage = regexp.MustCompile("^/$")

func BuildHomepage() string {
	return Path("/", nil)
}

var RegexHealth = regexp.MustCompile("^/health$")

func BuildHealth() string {
	return Path("/health", nil)
}

var RegexAssets = regexp.MustCompile("^/assets/(?P<filepath>.+)$")

func BuildAsset(filepath string) string {
	return Path("/assets/"+trim(filepath), nil)
}

// Everything under /api answers with JSON and never renders HTML.
var RegexApi = regexp.MustCompile("^/api(/|$)")

var RegexApiLogin = regexp.MustCompile("^/api/login$")

func BuildApiLogin() string {
	return Path("/api/login", nil)
}

var RegexApiLogout = regexp.MustCompile("^/api/logout$")

func BuildApiLogout() string {
	return Path("/api/logout", nil)
}

var RegexApiChangePassword = regexp.MustCompile("^/api/change-password$")

func BuildApiChangePassword() string {
	return Path("/api/change-password", nil)
}

var RegexApiData = regexp.MustCompile("^/api/data$")

func BuildApiData() string {
	return Path("/api/data", nil)
}

var RegexApiWeight = regexp.MustCompile("^/api/weight$")

func BuildApiWeight() string {
	return Path("/api/weight", nil)
}

var RegexApiExport = regexp.MustCompile("^/api/export/(?P<format>sqlite|csv|json)$")

func BuildApiExport(format string) string {
	return Path("/api/export/"+format, nil)
}

var RegexApiWebsocket = regexp.MustCompile("^/api/ws$")

func BuildApiWebsocket() string {
	return Path("/api/ws", nil)
}

var RegexCatchAll = regexp.MustCompile("^")
