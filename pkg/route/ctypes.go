package route

// ContentTypes maps file extensions to MIME types for file-backed payloads.
// Unknown extensions fall back to text/plain.
var ContentTypes = map[string]string{
	".htm":  "text/html",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".csh":  "application/x-csh",
	".sh":   "application/x-sh",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",

	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".mid":  "audio/midi",
	".midi": "audio/midi",
	".oga":  "audio/ogg",
	".wav":  "audio/x-wav",
	".weba": "audio/webm",
	".3g2":  "audio/3gpp2",

	".mpeg": "video/mpeg",
	".ogv":  "video/ogg",
	".avi":  "video/x-msvideo",
	".3gp":  "video/3gpp",
	".webm": "video/webm",

	".7z":  "application/x-7z-compressed",
	".bz":  "application/x-bzip",
	".bz2": "application/x-bzip2",
	".jar": "application/java-archive",
	".tar": "application/x-tar",
	".zip": "application/zip",
	".rar": "application/x-rar-compressed",

	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".eot":   "application/vnd.ms-fontobject",

	".bin": "application/octet-stream",
	".swf": "application/x-shockwave-flash",
	".pdf": "application/pdf",
}

// ContentTypeForFile returns the MIME type for a file path based on its
// extension, falling back to text/plain for unmapped extensions.
func ContentTypeForFile(path string) string {
	if ctype, ok := ContentTypes[extensionOf(path)]; ok {
		return ctype
	}
	return "text/plain"
}
