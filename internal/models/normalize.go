package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NormalizeTags turns any stored representation of tags into an ordered list.
// It never fails: input it cannot interpret becomes a single tag.
//
//	nil, "" or whitespace  -> []
//	[]string               -> unchanged
//	[]interface{}          -> elements stringified, nulls dropped
//	`["a","b"]` (string)   -> ["a", "b"]
//	"a"                    -> ["a"]
func NormalizeTags(raw interface{}) []string {
	switch v := raw.(type) {
	case nil:
		return []string{}
	case []string:
		if v == nil {
			return []string{}
		}
		return v
	case []interface{}:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				tags = append(tags, s)
				continue
			}
			tags = append(tags, fmt.Sprint(item))
		}
		return tags
	case json.RawMessage:
		return normalizeJSONTags([]byte(v))
	case []byte:
		return normalizeJSONTags(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return []string{}
		}
		var parsed []interface{}
		if err := json.Unmarshal([]byte(v), &parsed); err == nil {
			return NormalizeTags(parsed)
		}
		return []string{v}
	default:
		return []string{fmt.Sprint(v)}
	}
}

func normalizeJSONTags(data []byte) []string {
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return NormalizeTags(string(data))
	}
	return NormalizeTags(decoded)
}

// SplitTagsField parses the comma separated tags form field.
// Pieces are trimmed and empty pieces dropped; order and duplicates are kept.
func SplitTagsField(field string) []string {
	tags := []string{}
	for _, piece := range strings.Split(field, ",") {
		if tag := strings.TrimSpace(piece); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ReconcileImages derives the canonical photo fields from whatever a record
// carries. Records holding only a cover image get a one-element list; the
// returned cover is always the first image or nil. Applying it to its own
// output returns the same values.
func ReconcileImages(images []string, cover *string) ([]string, *string, []CarImage) {
	var out []string
	switch {
	case len(images) > 0:
		out = images
	case cover != nil && *cover != "":
		out = []string{*cover}
	default:
		out = []string{}
	}

	var outCover *string
	if len(out) > 0 {
		first := out[0]
		outCover = &first
	}

	carImages := make([]CarImage, len(out))
	for i, url := range out {
		carImages[i] = CarImage{URL: url}
	}
	return out, outCover, carImages
}

// RawCar is a cars row before read-repair. Tags and images are scanned as
// JSON so that any legacy shape in the column can be normalized.
type RawCar struct {
	ID          uuid.UUID
	Title       string
	Description *string
	Tags        json.RawMessage
	UserID      uuid.UUID
	Images      json.RawMessage
	CoverImage  *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Normalize converts the row into its canonical Car.
func (r *RawCar) Normalize() *Car {
	car := &Car{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Tags:        NormalizeTags(jsonOrNil(r.Tags)),
		UserID:      r.UserID,
		CoverImage:  r.CoverImage,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if images := jsonOrNil(r.Images); images != nil {
		for _, url := range NormalizeTags(images) {
			if strings.TrimSpace(url) != "" {
				car.Images = append(car.Images, url)
			}
		}
	}
	car.Reconcile()
	return car
}

func jsonOrNil(raw json.RawMessage) interface{} {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}
