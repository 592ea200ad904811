package announcement

import "errors"

var (
	// ErrTemplateNotFound is returned when a trigger names an unknown template.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateDisabled is returned when a manual trigger names a disabled template.
	ErrTemplateDisabled = errors.New("template is disabled")
	// ErrRecordNotFound is returned by status transitions on an unknown record.
	ErrRecordNotFound = errors.New("record not found")
)
