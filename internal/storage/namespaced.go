package storage

import (
	"context"
	"strings"
)

// Namespaced scopes a shared store to one id prefix. GetAll and Clear only
// see ids under the prefix, and returned ids have the prefix stripped.
type Namespaced struct {
	inner  AssetStore
	prefix string
}

func NewNamespaced(inner AssetStore, prefix string) *Namespaced {
	return &Namespaced{inner: inner, prefix: prefix}
}

func (n *Namespaced) Put(ctx context.Context, id, payload string) (string, error) {
	if _, err := n.inner.Put(ctx, n.prefix+id, payload); err != nil {
		return "", err
	}
	return id, nil
}

func (n *Namespaced) Get(ctx context.Context, id string) (string, bool, error) {
	return n.inner.Get(ctx, n.prefix+id)
}

func (n *Namespaced) Delete(ctx context.Context, id string) error {
	return n.inner.Delete(ctx, n.prefix+id)
}

func (n *Namespaced) GetAll(ctx context.Context) (map[string]string, error) {
	all, err := n.inner.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for id, payload := range all {
		if rest, ok := strings.CutPrefix(id, n.prefix); ok {
			out[rest] = payload
		}
	}
	return out, nil
}

func (n *Namespaced) Clear(ctx context.Context) error {
	all, err := n.inner.GetAll(ctx)
	if err != nil {
		return err
	}
	for id := range all {
		if !strings.HasPrefix(id, n.prefix) {
			continue
		}
		if err := n.inner.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Close is a no-op: the shared backend outlives any one namespace.
func (n *Namespaced) Close() error {
	return nil
}
