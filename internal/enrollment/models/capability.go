package models

import "context"

// Rect is a pixel-space bounding box.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Face is one detection in an image.
type Face struct {
	Box        Rect    `json:"box"`
	Confidence float64 `json:"confidence"`
}

// FaceDetector locates faces in a raw image. Implementations wrap an
// external vision model.
type FaceDetector interface {
	Detect(ctx context.Context, image []byte) ([]Face, error)
}

// DescriptorExtractor turns a detected face into a descriptor.
type DescriptorExtractor interface {
	Extract(ctx context.Context, image []byte, face Face) (Descriptor, error)
}
