// models/status.go
package models

import "fmt"

// Status - video holat mashinasi.
// uploading -> processing -> {ready, failed}, failed -> processing (resubmit)
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusFailed     Status = "failed"
)

// Ruxsat etilgan o'tishlar. Boshqa hamma o'tish xato.
var statusTransitions = map[Status][]Status{
	StatusUploading:  {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusReady, StatusFailed},
	StatusFailed:     {StatusProcessing}, // faqat resubmit orqali
	StatusReady:      {},
}

func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Terminal - ready yoki failed holatmi
func (s Status) Terminal() bool {
	return s == StatusReady || s == StatusFailed
}

func (s Status) CanTransition(to Status) bool {
	for _, t := range statusTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition - guarded o'tish. Callerlar statusni to'g'ridan-to'g'ri
// yozmaydi, faqat shu funksiya orqali.
func (v *Video) Transition(to Status) error {
	if !v.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, to)
	}
	v.Status = to
	return nil
}

// Visibility - kim ko'ra oladi
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityUnlisted, VisibilityPrivate:
		return true
	}
	return false
}

// Publishable - ready bo'lganda published_at qo'yiladimi.
// private video hech qachon publish qilinmaydi.
func (v Visibility) Publishable() bool {
	return v == VisibilityPublic || v == VisibilityUnlisted
}
