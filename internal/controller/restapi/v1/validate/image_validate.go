package validate

const (
	MaxFileSize       int64 = 25 * 1024 * 1024
	MaxBatchFiles     int   = 20
	DefaultQueryLimit int   = 50
	MaxQueryLimit     int   = 500
)

var AllowedContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
}

var AllowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}
