// Package s3local is a tiny S3 stand-in that keeps buckets as folders on
// disk. It only understands what backups need: creating a bucket, putting an
// object, and reading one back.
package s3local

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/fridayweigh/weights/src/logging"
)

type s3Error struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	xml.NewEncoder(w).Encode(s3Error{Code: code, Message: msg})
}

// Handler serves buckets out of root, which must already exist.
func Handler(root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key := bucketKey(r)
		logging.Debug().Str("method", r.Method).Str("bucket", bucket).Str("key", key).Msg("s3local request")

		if bucket == "" {
			writeError(w, http.StatusBadRequest, "InvalidBucketName", "no bucket given")
			return
		}
		bucketDir := filepath.Join(root, bucket)

		switch r.Method {
		case http.MethodPut:
			if key == "" {
				if err := os.MkdirAll(bucketDir, fs.ModePerm); err != nil {
					writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
					return
				}
				w.Header().Set("Location", fmt.Sprintf("/%s", bucket))
				return
			}

			if _, err := os.Stat(bucketDir); errors.Is(err, fs.ErrNotExist) {
				writeError(w, http.StatusNotFound, "NoSuchBucket", "The specified bucket does not exist")
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
				return
			}
			if err := os.WriteFile(filepath.Join(bucketDir, key), body, 0o644); err != nil {
				writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
				return
			}
		case http.MethodGet:
			contents, err := os.ReadFile(filepath.Join(bucketDir, key))
			if err != nil {
				writeError(w, http.StatusNotFound, "NoSuchKey", "The specified key does not exist")
				return
			}
			w.Write(contents)
		default:
			writeError(w, http.StatusNotImplemented, "NotImplemented", r.Method+" is not supported")
		}
	})
}

// Keys are flattened into a single folder; slashes become tildes.
func bucketKey(r *http.Request) (string, string) {
	p := strings.TrimPrefix(r.URL.Path, "/")
	slashIdx := strings.IndexByte(p, '/')
	if slashIdx == -1 {
		return p, ""
	}
	return p[:slashIdx], strings.ReplaceAll(p[slashIdx+1:], "/", "~")
}

// ObjectPath is where Handler stores key from bucket under root.
func ObjectPath(root, bucket, key string) string {
	return filepath.Join(root, bucket, strings.ReplaceAll(key, "/", "~"))
}
