package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrDisabled = errors.New("storage: image store is not configured")

// Image is a stored blob; PublicID is the key used to delete it
type Image struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// ImageStore keeps plan images outside the database
type ImageStore interface {
	// Upload stores body under folder, normally FacilityFolder of the uploader
	Upload(ctx context.Context, folder, filename, contentType string, body io.Reader) (*Image, error)
	Delete(ctx context.Context, publicID string) error
}

// DisabledStore rejects uploads and ignores deletes
type DisabledStore struct{}

func (DisabledStore) Upload(context.Context, string, string, string, io.Reader) (*Image, error) {
	return nil, ErrDisabled
}

func (DisabledStore) Delete(context.Context, string) error { return nil }

// FacilityFolder is the key prefix owned by one facility, plans/<slug>
func FacilityFolder(facility string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(facility))
	if slug == "" {
		slug = "unassigned"
	}
	return "plans/" + slug
}

// objectKey builds <folder>/<yyyy>/<mm>/<uuid><ext> so uploads never collide
func objectKey(folder, filename string, now time.Time) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(folder, now.Format("2006"), now.Format("01"), uuid.NewString()+ext)
}
