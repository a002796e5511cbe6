package minio

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/biosustain/lifelike-annotator/internal/annotator/resolver"
	"github.com/biosustain/lifelike-annotator/internal/annotator/tokenizer"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/pkg/errors"
)

// parsedChar is the wire form one extracted glyph takes in the parsed-document
// objects the PDF parsing service writes to the object store.
type parsedChar struct {
	Text   string  `json:"text"`
	X0     float64 `json:"x0"`
	Y0     float64 `json:"y0"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Page   int     `json:"page"`
	Space  bool    `json:"space,omitempty"`
}

type parsedCropBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type parsedObject struct {
	Chars     []parsedChar          `json:"chars"`
	CropBoxes map[int]parsedCropBox `json:"crop_boxes,omitempty"`
}

// DocumentSource reads parsed documents from the object store. One object per
// file, keyed by the file's hash id, in the parsed bucket.
type DocumentSource struct {
	repo   ObjectStorageRepository
	bucket string
	logger logging.Logger
}

// NewDocumentSource builds a source over the given repository. The bucket is
// normally client.GetBucketName("parsed").
func NewDocumentSource(repo ObjectStorageRepository, bucket string, log logging.Logger) *DocumentSource {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DocumentSource{repo: repo, bucket: bucket, logger: log.Named("document_source")}
}

// DocumentChars returns the positioned char stream and per-page crop boxes
// for the given file.
func (s *DocumentSource) DocumentChars(ctx context.Context, hashID string) ([]tokenizer.Char, map[int]resolver.CropBox, error) {
	if hashID == "" {
		return nil, nil, errors.Validation("file hash id is required")
	}

	res, err := s.repo.Download(ctx, s.bucket, objectKey(hashID))
	if err != nil {
		return nil, nil, err
	}

	var doc parsedObject
	if err := json.Unmarshal(res.Data, &doc); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrCodeSerialization, "parsed document is not valid JSON")
	}

	chars := make([]tokenizer.Char, len(doc.Chars))
	for i, c := range doc.Chars {
		chars[i] = tokenizer.Char{
			Text:   c.Text,
			X0:     c.X0,
			Y0:     c.Y0,
			X1:     c.X1,
			Y1:     c.Y1,
			Height: c.Height,
			Width:  c.Width,
			Page:   c.Page,
			Space:  c.Space,
		}
	}

	var boxes map[int]resolver.CropBox
	if len(doc.CropBoxes) > 0 {
		boxes = make(map[int]resolver.CropBox, len(doc.CropBoxes))
		for page, b := range doc.CropBoxes {
			boxes[page] = resolver.CropBox{X: b.X, Y: b.Y}
		}
	}

	s.logger.Debug("loaded parsed document",
		logging.String("file", hashID),
		logging.Int("chars", len(chars)))
	return chars, boxes, nil
}

func objectKey(hashID string) string {
	return fmt.Sprintf("%s.json", hashID)
}
