package rules

import (
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/AdguardTeam/contentfilter/internal/ufnet"
)

// ClassifyParams are the properties of an intercepted request that are used to
// guess its content type.
type ClassifyParams struct {
	// Header contains the request headers.  Only Accept and X-Requested-With
	// are used.  It may be nil.
	Header http.Header

	// URL is the full request URL.
	URL string

	// PageURL is the URL of the page that loads the resource.
	PageURL string

	// IsMainFrame is true if the request is made for the top-level frame.
	IsMainFrame bool
}

// typeUnknown is the permissive classification of requests without any usable
// signal, so that filters restricted by content type still apply to them.
const typeUnknown = TypeOther | TypeMedia | TypeImage | TypeFont | TypeStylesheet | TypeScript

// Classify guesses the content type of the request.  The frame role and the
// headers come first, then the file extension, then the Accept header.  A
// recognized script, stylesheet, or font extension is authoritative.
func Classify(p *ClassifyParams) (ct ContentType) {
	accept := p.Header.Get("Accept")

	if p.IsMainFrame {
		if p.URL == p.PageURL {
			ct = TypeDocument
		}
	} else if strings.Contains(accept, "text/html") {
		ct = TypeSubdocument
	}

	switch ufnet.Scheme(p.URL) {
	case "ws", "wss":
		ct |= TypeWebSocket
	}

	if p.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		ct |= TypeXHR
	}

	switch ext := urlExtension(p.URL); ext {
	case "":
		// Go on.
	case "js":
		return ct | TypeScript
	case "css":
		return ct | TypeStylesheet
	case "otf", "ttf", "ttc", "woff", "woff2":
		return ct | TypeFont
	case "php":
		// Dynamic pages say nothing about the content.
	default:
		if mediaType := mediaTypeByExtension(ext); mediaType != "" {
			return otherIfNone(ct | typeFromMediaType(mediaType))
		}
	}

	if accept != "" && accept != "*/*" {
		first, _, _ := strings.Cut(accept, ",")

		return otherIfNone(ct | typeFromMediaType(first))
	}

	return ct | typeUnknown
}

// otherIfNone makes sure a classified request has at least one type, since a
// zero type can't be matched by any filter.
func otherIfNone(ct ContentType) (res ContentType) {
	if ct == 0 {
		return TypeOther
	}

	return ct
}

// urlExtension returns the lower-cased file extension of the URL path without
// the leading dot.
func urlExtension(u string) (ext string) {
	u, _, _ = strings.Cut(u, "#")
	u, _, _ = strings.Cut(u, "?")

	if i := strings.Index(u, "//"); i >= 0 {
		rest := u[i+2:]
		j := strings.IndexByte(rest, '/')
		if j < 0 {
			return ""
		}

		u = rest[j:]
	}

	ext = path.Ext(u)
	if ext == "" {
		return ""
	}

	return strings.ToLower(ext[1:])
}

// extensionMediaTypes are the media types of the common web resources.  The
// platform's table is used for the rest.
var extensionMediaTypes = map[string]string{
	"js":     "application/javascript",
	"vbs":    "text/vbscript",
	"coffee": "application/vnd.coffeescript",
	"json":   "application/json",

	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"png":  "image/png",
	"webp": "image/webp",
	"svg":  "image/svg+xml",
	"tiff": "image/tiff",
	"psd":  "image/vnd.adobe.photoshop",
	"ico":  "image/x-icon",

	"css":  "text/css",
	"less": "text/css",

	"wav":   "audio/wav",
	"mp3":   "audio/mpeg",
	"ogg":   "audio/ogg",
	"mp4":   "video/mp4",
	"avi":   "video/x-msvideo",
	"flv":   "video/x-flv",
	"webm":  "video/webm",
	"mpeg":  "video/mpeg",
	"3gp":   "video/3gpp",
	"3g2":   "video/3gpp2",
	"mov":   "video/quicktime",
	"qt":    "video/quicktime",
	"mkv":   "video/x-matroska",
	"m3u8":  "application/vnd.apple.mpegurl",
	"m3u":   "audio/x-mpegurl",
	"gifv":  "video/mp4",
	"eot":   "application/vnd.ms-fontobject",
	"swf":   "application/x-shockwave-flash",
	"html":  "text/html",
	"htm":   "text/html",
	"mhtml": "multipart/related",
	"mht":   "multipart/related",
}

// mediaTypeByExtension returns the media type for the file extension without
// parameters or an empty string if it's unknown.
func mediaTypeByExtension(ext string) (mediaType string) {
	if mediaType = extensionMediaTypes[ext]; mediaType != "" {
		return mediaType
	}

	mediaType, _, _ = strings.Cut(mime.TypeByExtension("."+ext), ";")

	return mediaType
}

// typeFromMediaType maps the media type to the content type.  Text types other
// than the known ones return zero, since most of them are documents.
func typeFromMediaType(mediaType string) (ct ContentType) {
	mediaType, _, _ = strings.Cut(mediaType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch mediaType {
	case
		"application/javascript",
		"application/x-javascript",
		"text/javascript",
		"application/json":
		return TypeScript
	case "text/css":
		return TypeStylesheet
	}

	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return 0
	case strings.HasPrefix(mediaType, "image/"):
		return TypeImage
	case
		strings.HasPrefix(mediaType, "video/"),
		strings.HasPrefix(mediaType, "audio/"):
		return TypeMedia
	case
		strings.HasPrefix(mediaType, "font/"),
		strings.HasPrefix(mediaType, "application/font"),
		strings.HasPrefix(mediaType, "application/x-font-"),
		mediaType == "application/vnd.ms-fontobject":
		return TypeFont
	default:
		return TypeOther
	}
}

// ClassifyResponse returns the content type of a response by its media type.
// HTML is a document for the top-level frame and a subdocument otherwise.
func ClassifyResponse(mediaType string, isMainFrame bool) (ct ContentType) {
	mediaType, _, _ = strings.Cut(mediaType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	switch mediaType {
	case "text/html", "application/xhtml+xml":
		if isMainFrame {
			return TypeDocument
		}

		return TypeSubdocument
	case "":
		return TypeOther
	}

	return otherIfNone(typeFromMediaType(mediaType))
}
