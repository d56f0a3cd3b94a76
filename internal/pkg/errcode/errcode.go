package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrTooMany
	ErrInternal
	ErrNoDocuments
	ErrUnsupportedFile
	ErrUploadFailed
	ErrAIUnavailable
	ErrEmbedFailed
	ErrGenerateFailed
	ErrIndexFailed
	ErrStorage
)
