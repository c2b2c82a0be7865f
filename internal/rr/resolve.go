package rr

import (
	"sort"

	"github.com/banshee-data/inspection.report/internal/monitoring"
)

// ResolutionStats counts how the image identity of each response was found.
type ResolutionStats struct {
	ByID       int `json:"by_id"`
	ByFilename int `json:"by_filename"`
	Unresolved int `json:"unresolved"`
}

// ImageResolver maps a stored response reference to a stable ImageKey in
// three stages: the stored image id, else the (filename, test) pair looked
// up in the current catalog, else the raw filename.
type ImageResolver struct {
	testID int64
	byID   map[int64]CatalogImage
	byName map[string]CatalogImage
	stats  ResolutionStats
	warned map[string]bool
}

// NewImageResolver indexes the catalog of one test. Images belonging to
// other tests are ignored. When two images share a filename the lowest id
// wins.
func NewImageResolver(testID int64, catalog []CatalogImage) *ImageResolver {
	imgs := make([]CatalogImage, 0, len(catalog))
	for _, img := range catalog {
		if img.TestID == testID {
			imgs = append(imgs, img)
		}
	}
	sort.Slice(imgs, func(i, j int) bool { return imgs[i].ID < imgs[j].ID })

	r := &ImageResolver{
		testID: testID,
		byID:   make(map[int64]CatalogImage, len(imgs)),
		byName: make(map[string]CatalogImage, len(imgs)),
		warned: make(map[string]bool),
	}
	for _, img := range imgs {
		r.byID[img.ID] = img
		if _, dup := r.byName[img.Filename]; !dup && img.Filename != "" {
			r.byName[img.Filename] = img
		}
	}
	return r
}

// Resolve returns the identity and current display name of an image.
func (r *ImageResolver) Resolve(imageID *int64, filename string) (ImageKey, string, Resolution) {
	if imageID != nil && *imageID != 0 {
		r.stats.ByID++
		name := filename
		if img, ok := r.byID[*imageID]; ok {
			name = img.Filename
		}
		return ImageByID(*imageID), name, ResolvedByID
	}

	if img, ok := r.byName[filename]; ok && filename != "" {
		r.stats.ByFilename++
		r.warnOnce("filename:"+filename, "image %q in test %d matched by filename to image #%d", filename, r.testID, img.ID)
		return ImageByID(img.ID), img.Filename, ResolvedByFilename
	}

	r.stats.Unresolved++
	r.warnOnce("raw:"+filename, "image %q in test %d not found in catalog, using stored filename as identity", filename, r.testID)
	return ImageByFilename(filename), filename, Unresolved
}

// Stats returns the counts accumulated since the resolver was created.
func (r *ImageResolver) Stats() ResolutionStats { return r.stats }

func (r *ImageResolver) warnOnce(key, format string, args ...interface{}) {
	if r.warned[key] {
		return
	}
	r.warned[key] = true
	monitoring.Logf("[rr] "+format, args...)
}
