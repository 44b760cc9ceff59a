package models

import (
	"time"

	"github.com/google/uuid"
)

// EditorSession summarises one open editing workspace.
type EditorSession struct {
	SessionID    uuid.UUID `json:"session_id"`
	PageTemplate string    `json:"page_template,omitempty"`

	SectionCount int  `json:"section_count"`
	HistoryDepth int  `json:"history_depth"`
	CanUndo      bool `json:"can_undo"`
	CanRedo      bool `json:"can_redo"`
	Editing      bool `json:"editing"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
