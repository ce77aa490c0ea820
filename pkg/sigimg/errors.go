package sigimg

import "errors"

// ErrNotImage is returned when the upload cannot be decoded as an image.
var ErrNotImage = errors.New("file is not a supported image")

// ErrTooLarge is returned when the image dimensions exceed MaxPixels.
var ErrTooLarge = errors.New("image dimensions too large")
