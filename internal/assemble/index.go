package assemble

import (
	"tgblog/internal/models"
)

// Index gives the assembler random access to messages by id and to the
// members of each group. It is read-only once built.
type Index struct {
	msgs            []*models.RawMessage
	byID            map[int64]*models.RawMessage
	groups          map[int64][]*models.RawMessage
	representatives map[int64]*models.RawMessage
}

// NewIndex indexes msgs, which must already carry their group ids and be
// ordered by id.
func NewIndex(msgs []*models.RawMessage) *Index {
	idx := &Index{
		msgs:            msgs,
		byID:            make(map[int64]*models.RawMessage, len(msgs)),
		groups:          make(map[int64][]*models.RawMessage),
		representatives: make(map[int64]*models.RawMessage),
	}

	for _, m := range msgs {
		idx.byID[m.ID] = m
		if m.GroupID != nil {
			gid := *m.GroupID
			idx.groups[gid] = append(idx.groups[gid], m)
		}
	}

	for gid, members := range idx.groups {
		idx.representatives[gid] = pickRepresentative(members)
	}

	return idx
}

// Message returns the message with the given id.
func (idx *Index) Message(id int64) (*models.RawMessage, bool) {
	m, ok := idx.byID[id]
	return m, ok
}

// Members returns the messages that make up m's post: its whole group, or
// just m when it is not grouped.
func (idx *Index) Members(m *models.RawMessage) []*models.RawMessage {
	if m.GroupID == nil {
		return []*models.RawMessage{m}
	}
	return idx.groups[*m.GroupID]
}

// Representative returns the message whose id and text stand for m's post.
func (idx *Index) Representative(m *models.RawMessage) *models.RawMessage {
	if m.GroupID == nil {
		return m
	}
	if rep, ok := idx.representatives[*m.GroupID]; ok {
		return rep
	}
	return m
}

// Len returns the number of indexed messages.
func (idx *Index) Len() int {
	return len(idx.msgs)
}

// GroupCount returns the number of groups.
func (idx *Index) GroupCount() int {
	return len(idx.groups)
}

// pickRepresentative returns the first member with text, else the first member.
func pickRepresentative(members []*models.RawMessage) *models.RawMessage {
	for _, m := range members {
		if !m.Text.IsEmpty() {
			return m
		}
	}
	return members[0]
}
