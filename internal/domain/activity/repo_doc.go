package activity

import (
	"context"
	"fmt"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

type docRepo struct {
	store docstore.Store
}

func NewDocRepo(store docstore.Store) Repository {
	return &docRepo{store: store}
}

func (r *docRepo) Append(ctx context.Context, e *Entry) error {
	id, err := r.store.Insert(ctx, Collection, toDoc(e))
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	e.ID = id
	return nil
}

func (r *docRepo) Recent(ctx context.Context, f Filter) ([]*Entry, error) {
	q := docstore.Query{OrderBy: "timestamp", Desc: true, Limit: f.Limit}
	if f.Role != "" {
		q.Where = append(q.Where, docstore.Contains("actor_role", f.Role))
	}
	if f.EntityType != "" {
		q.Where = append(q.Where, docstore.Contains("entity_type", f.EntityType))
	}
	docs, err := r.store.Find(ctx, Collection, q)
	if err != nil {
		return nil, fmt.Errorf("recent activity: %w", err)
	}
	out := make([]*Entry, 0, len(docs))
	for _, d := range docs {
		out = append(out, fromDoc(d))
	}
	return out, nil
}

func toDoc(e *Entry) docstore.Document {
	return docstore.Document{
		"actor_role":  e.ActorRole,
		"actor_name":  e.ActorName,
		"action":      e.Action,
		"entity_type": e.EntityType,
		"entity_id":   e.EntityID,
		"icon":        e.Icon,
		"link":        e.Link,
		"timestamp":   docstore.FormatTime(e.Timestamp),
	}
}

func fromDoc(d docstore.Document) *Entry {
	return &Entry{
		ID:         d.ID(),
		ActorRole:  d.String("actor_role"),
		ActorName:  d.String("actor_name"),
		Action:     d.String("action"),
		EntityType: d.String("entity_type"),
		EntityID:   d.String("entity_id"),
		Icon:       d.String("icon"),
		Link:       d.String("link"),
		Timestamp:  d.Time("timestamp"),
	}
}

// Present renders a stored entry for live-update clients.
func Present(d docstore.Document) (any, error) {
	return fromDoc(d), nil
}
