// Package folder materializes a folder-tree path into metadata catalog
// nodes, creating the levels that do not exist yet.
package folder

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pilotfs/uploadgateway/pkg/apierrors"
	"github.com/pilotfs/uploadgateway/pkg/catalog"
	"github.com/pilotfs/uploadgateway/pkg/foldercache"
	"github.com/pilotfs/uploadgateway/pkg/lockclient"
	"github.com/pilotfs/uploadgateway/pkg/metrics"
)

// Node is one level of a materialized folder path.
type Node struct {
	GEID         string
	Name         string
	Level        int
	ParentGEID   string
	ParentName   string
	RelativePath string
	IsNew        bool
}

// Materializer walks a "/"-separated relative path one level at a time,
// resolving each segment against the process cache, then the catalog, and
// creating a node when neither has it.
type Materializer struct {
	catalog *catalog.Client
	locks   *lockclient.Client
	cache   *foldercache.Cache
	zone    int
	metrics *metrics.Metrics
}

// New creates a Materializer. zone is 0 for greenroom, 1 for core.
func New(catalogClient *catalog.Client, locks *lockclient.Client, cache *foldercache.Cache, zone int) *Materializer {
	return &Materializer{catalog: catalogClient, locks: locks, cache: cache, zone: zone}
}

// WithMetrics attaches m so lock-contention on folder creation is recorded;
// returns the Materializer for chaining at construction time.
func (m *Materializer) WithMetrics(metricsClient *metrics.Metrics) *Materializer {
	m.metrics = metricsClient
	return m
}

// Materialize resolves every path segment of relativePath under bucket/
// projectCode, batch-creates any node neither the cache nor the catalog
// already had, and returns the leaf (deepest) node whose GEID is threaded
// to catalog file registration as parent_folder_geid. folderTags is
// attached as tags on every newly created folder item.
func (m *Materializer) Materialize(ctx context.Context, bucket, projectCode, relativePath, creator string, folderTags []string) (*Node, error) {
	chain, err := m.resolveChain(ctx, projectCode, relativePath, creator)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, nil
	}

	var toCreate []Node
	for _, n := range chain {
		if n.IsNew {
			toCreate = append(toCreate, n)
		}
	}
	if len(toCreate) > 0 {
		if err := m.createMissing(ctx, bucket, projectCode, creator, toCreate, folderTags); err != nil {
			return nil, err
		}
	}

	leaf := chain[len(chain)-1]
	return &leaf, nil
}

// resolveChain walks the path, resolving each segment against the cache
// then the catalog, generating a fresh node when neither has it. Root-level
// folders must already exist.
func (m *Materializer) resolveChain(ctx context.Context, projectCode, relativePath, creator string) ([]Node, error) {
	segments := strings.Split(strings.Trim(relativePath, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return nil, nil
	}

	var chain []Node
	for level, name := range segments {
		parentPath := strings.Join(segments[:level], "/")

		node, err := m.resolve(ctx, projectCode, name, parentPath, creator)
		if err != nil {
			return nil, err
		}

		if node.IsNew {
			if level == 0 {
				return nil, fmt.Errorf("folder: cannot create folder directly under project node")
			}
			parent := chain[level-1]
			node.ParentGEID = parent.GEID
			node.ParentName = parent.Name
		}
		node.Level = level
		node.RelativePath = parentPath
		chain = append(chain, node)
	}
	return chain, nil
}

// createMissing batch-creates every new node in toCreate, wrapped in an
// all-or-nothing bulk lock over the new folders' "{bucket}/{parent}/{name}"
// keys, released on both success and failure.
func (m *Materializer) createMissing(ctx context.Context, bucket, projectCode, owner string, toCreate []Node, folderTags []string) error {
	lockKeys := make([]string, len(toCreate))
	items := make([]catalog.Item, len(toCreate))
	for i, n := range toCreate {
		lockKeys[i] = fmt.Sprintf("%s/%s/%s", bucket, n.RelativePath, n.Name)
		item := NewItemPayload(n, projectCode, owner, m.zone)
		item.Tags = folderTags
		items[i] = item
	}

	if err := m.locks.AcquireBulk(ctx, lockKeys, "write"); err != nil {
		m.metrics.RecordLockContention("folder_create")
		return err
	}

	if err := m.catalog.BatchCreate(ctx, items, m.zone); err != nil {
		_ = m.locks.ReleaseBulk(ctx, lockKeys, "write")
		return apierrors.Internal("folder_creation", err)
	}

	return m.locks.ReleaseBulk(ctx, lockKeys, "write")
}

func (m *Materializer) resolve(ctx context.Context, projectCode, name, parentPath, creator string) (Node, error) {
	zoneLabel := "greenroom"
	if m.zone == 1 {
		zoneLabel = "core"
	}
	key := foldercache.Key(zoneLabel, projectCode, parentPath, name)

	if cached, ok := m.cache.Get(key); ok {
		return Node{GEID: cached.GlobalEntityID, Name: name, ParentGEID: cached.ParentGEID, ParentName: cached.ParentName}, nil
	}

	items, err := m.catalog.Search(ctx, catalog.SearchParams{
		ParentPath:    parentPath,
		Name:          name,
		ContainerCode: projectCode,
		Zone:          m.zone,
		Recursive:     true,
	})
	if err != nil {
		return Node{}, fmt.Errorf("folder: search %s/%s: %w", parentPath, name, err)
	}

	var node Node
	if len(items) > 0 {
		node = Node{GEID: items[0].ID, Name: items[0].Name}
	} else {
		node = Node{GEID: uuid.NewString(), Name: name, IsNew: true}
	}

	m.cache.Put(key, foldercache.Node{
		GlobalEntityID: node.GEID,
		ParentGEID:     node.ParentGEID,
		ParentName:     node.ParentName,
		Owner:          creator,
		ProjectCode:    projectCode,
		RelativePath:   parentPath,
	})
	return node, nil
}

// NewItemPayload builds the catalog.Item batch-create payload for a newly
// materialized folder node.
func NewItemPayload(node Node, projectCode, owner string, zone int) catalog.Item {
	return catalog.Item{
		ID:            node.GEID,
		Name:          node.Name,
		Parent:        node.ParentGEID,
		ParentPath:    node.RelativePath,
		Type:          "folder",
		Zone:          zone,
		Size:          0,
		Owner:         owner,
		ContainerCode: projectCode,
		ContainerType: "project",
		LocationURI:   "",
		VersionID:     "",
		Tags:          []string{},
	}
}
