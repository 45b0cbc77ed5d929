// models/errors.go
package models

import "errors"

// Pipeline xato sinflari. Sentinel errorlar errors.Is bilan tekshiriladi,
// kontekst fmt.Errorf("...: %w") bilan qo'shiladi.
var (
	// ErrUnsupportedFormat - fayl buzilgan yoki container o'qib bo'lmaydi.
	// Fatal, retry qilinmaydi, user ko'radi.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEncodingFailed - codec/ffmpeg xatosi. Shu tier uchun fatal,
	// retry qilinmaydi. Video fail bo'lishi tierning required flagiga bog'liq.
	ErrEncodingFailed = errors.New("encoding failed")

	// ErrStorageUnavailable - vaqtinchalik I/O xato. Backoff bilan retry
	// qilinadi, budget tugagach fatalga aylanadi.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStaleAttempt - eski generation natijasi. Userga ko'rsatilmaydi,
	// faqat log qilinadi va tashlab yuboriladi.
	ErrStaleAttempt = errors.New("stale attempt")

	// ErrVersionConflict - optimistic lock to'qnashuvi, yangi read bilan
	// lokal retry qilinadi.
	ErrVersionConflict = errors.New("version conflict")

	// ErrInvalidTransition - ruxsat etilmagan status o'tishi
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrVideoNotFound = errors.New("video not found")
)
