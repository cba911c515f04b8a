package document

import "errors"

var (
	ErrUnsupportedFormat  = errors.New("unsupported file format")
	ErrPayloadTooLarge    = errors.New("file size exceeds the limit")
	ErrUnreadableDocument = errors.New("document could not be read")
	ErrEmptyDocument      = errors.New("document contains no text")
)
