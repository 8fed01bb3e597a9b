package dispatcher

import (
	"fmt"
	"strings"
)

// processedBlobKey mirrors job.blobKey's discipline for the processed/
// prefix; duplicated here because job.blobKey and job.extFor are unexported.
func processedBlobKey(jobID string, uploadTS int64, contentType string) string {
	return fmt.Sprintf("processed/%s_%d%s", jobID, uploadTS, extForContentType(contentType))
}

func extForContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
